package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/irfansharif/blog/pkg/article"
)

// formField identifies a form input.
type formField int

const (
	fieldTitle formField = iota
	fieldAuthor
	fieldContent
	numFields
)

func (f formField) String() string {
	switch f {
	case fieldTitle:
		return "title"
	case fieldAuthor:
		return "author"
	case fieldContent:
		return "content"
	}
	return "unknown"
}

// FormModel is the add article form: single-line title and author inputs
// and a multi-line content area. It holds the field values; the controller
// decides what submitting and cancelling do.
type FormModel struct {
	title    textinput.Model
	author   textinput.Model
	content  textarea.Model
	focus    formField
	disabled bool
	keys     KeyMap
	styles   Styles
}

// NewForm creates an empty form with the title focused.
func NewForm(keys KeyMap, styles Styles) FormModel {
	title := textinput.New()
	title.Placeholder = "Enter article title"
	title.CharLimit = 0
	title.Width = 54

	author := textinput.New()
	author.Placeholder = "Enter author name"
	author.CharLimit = 0
	author.Width = 54

	content := textarea.New()
	content.Placeholder = "Write your article content here..."
	content.ShowLineNumbers = false
	content.CharLimit = 0
	content.SetWidth(56)
	content.SetHeight(6)

	return FormModel{
		title:   title,
		author:  author,
		content: content,
		keys:    keys,
		styles:  styles,
	}
}

// Update handles messages for the focused field. Input is ignored while the
// form is disabled.
func (m FormModel) Update(msg tea.Msg) (FormModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.disabled {
			return m, nil
		}
		switch {
		case key.Matches(keyMsg, m.keys.NextField):
			return m.setFocus((m.focus + 1) % numFields)
		case key.Matches(keyMsg, m.keys.PrevField):
			return m.setFocus((m.focus + numFields - 1) % numFields)
		case keyMsg.Type == tea.KeyEnter && m.focus != fieldContent:
			return m.setFocus(m.focus + 1)
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldAuthor:
		m.author, cmd = m.author.Update(msg)
	case fieldContent:
		m.content, cmd = m.content.Update(msg)
	}
	return m, cmd
}

func (m FormModel) setFocus(f formField) (FormModel, tea.Cmd) {
	m.focus = f
	m.title.Blur()
	m.author.Blur()
	m.content.Blur()

	switch f {
	case fieldTitle:
		return m, m.title.Focus()
	case fieldAuthor:
		return m, m.author.Focus()
	default:
		return m, m.content.Focus()
	}
}

// Focus focuses the title field.
func (m FormModel) Focus() (FormModel, tea.Cmd) {
	return m.setFocus(fieldTitle)
}

// Draft returns the field values verbatim.
func (m FormModel) Draft() article.Draft {
	return article.Draft{
		Title:   m.title.Value(),
		Author:  m.author.Value(),
		Content: m.content.Value(),
	}
}

// Focused returns the focused field.
func (m FormModel) Focused() formField { return m.focus }

// Content returns the content field's value.
func (m FormModel) Content() string { return m.content.Value() }

// SetContent replaces the content field's value.
func (m FormModel) SetContent(s string) FormModel {
	m.content.SetValue(s)
	return m
}

// Reset clears all three fields.
func (m FormModel) Reset() FormModel {
	m.title.Reset()
	m.author.Reset()
	m.content.Reset()
	return m
}

// SetDisabled enables or disables the form.
func (m FormModel) SetDisabled(disabled bool) FormModel {
	m.disabled = disabled
	return m
}

// Disabled reports whether the form ignores input.
func (m FormModel) Disabled() bool { return m.disabled }

// SetWidth fits the fields to the given width.
func (m FormModel) SetWidth(w int) FormModel {
	w = max(w-8, 20) // border, padding and prompt
	m.title.Width = w - 2
	m.author.Width = w - 2
	m.content.SetWidth(w)
	return m
}

// View renders the form.
func (m FormModel) View() string {
	label := func(f formField, s string) string {
		if f == m.focus && !m.disabled {
			return m.styles.FocusLabel.Render(s)
		}
		return m.styles.FormLabel.Render(s)
	}

	hint := "[tab] next field  [ctrl+s] add article  [ctrl+e] $EDITOR  [esc] cancel"
	if m.disabled {
		hint = "Not connected; the form is disabled."
	}

	return m.styles.FormBox.Render(lipgloss.JoinVertical(lipgloss.Left,
		label(fieldTitle, "Article Title"),
		m.title.View(),
		"",
		label(fieldAuthor, "Author Name"),
		m.author.View(),
		"",
		label(fieldContent, "Content"),
		m.content.View(),
		"",
		m.styles.FormHint.Render(hint),
	))
}
