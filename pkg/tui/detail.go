package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/irfansharif/blog/pkg/article"
)

// renderDetail renders a full article: title, byline and the content as
// paragraphs wrapped to width. A nil article renders nothing.
func renderDetail(a *article.Article, width int, styles Styles) string {
	if a == nil {
		return ""
	}
	width = max(width, 10)

	var sb strings.Builder
	sb.WriteString(styles.DetailTitle.Render(wordwrap.String(a.Title, width)))
	sb.WriteString("\n")
	sb.WriteString(styles.DetailMeta.Render(previewMeta(*a)))
	sb.WriteString("\n")
	for _, p := range article.Paragraphs(a.Content) {
		sb.WriteString("\n")
		sb.WriteString(styles.Paragraph.Render(wordwrap.String(p, width)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDetailHelp renders the detail view's actions. Delete is only offered
// when canDelete is set; back always is.
func renderDetailHelp(canDelete bool, styles Styles) string {
	parts := []string{"[esc] back", "[↑/↓] scroll"}
	if canDelete {
		parts = append(parts, styles.DangerKey.Render("[x] delete"))
	}
	parts = append(parts, "[q]uit")
	return strings.Join(parts, "  ")
}

// DetailModel shows one article in a scrollable viewport.
type DetailModel struct {
	viewport viewport.Model
	article  *article.Article
	styles   Styles
}

// NewDetail returns an empty detail view.
func NewDetail(width, height int, styles Styles) DetailModel {
	return DetailModel{
		viewport: viewport.New(width, height),
		styles:   styles,
	}
}

// SetArticle replaces the displayed article; nil clears the view.
func (m DetailModel) SetArticle(a *article.Article) DetailModel {
	reset := m.article == nil || a == nil || m.article.ID != a.ID
	m.article = a
	m.viewport.SetContent(renderDetail(a, m.viewport.Width, m.styles))
	if reset {
		m.viewport.GotoTop()
	}
	return m
}

// SetSize resizes the viewport and rewraps the content.
func (m DetailModel) SetSize(width, height int) DetailModel {
	m.viewport.Width = width
	m.viewport.Height = height
	m.viewport.SetContent(renderDetail(m.article, width, m.styles))
	return m
}

// Update scrolls the viewport.
func (m DetailModel) Update(msg tea.Msg) (DetailModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the visible part of the article.
func (m DetailModel) View() string {
	if m.article == nil {
		return ""
	}
	return m.viewport.View()
}
