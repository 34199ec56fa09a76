package tui

import (
	"fmt"
	"strings"

	"github.com/irfansharif/blog/pkg/article"
)

const emptyListMessage = "No articles yet. Press 'a' to add one!"

// truncateString truncates a string to the given width, adding ellipsis if needed.
func truncateString(s string, width int) string {
	if width <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// previewMeta is the byline shown under a title.
func previewMeta(a article.Article) string {
	return fmt.Sprintf("By %s on %s", a.Author, a.Date)
}

// renderPreview renders a single article for the list: its title and byline.
func renderPreview(a article.Article, selected bool, width int, styles Styles) string {
	var sb strings.Builder

	title := truncateString(a.Title, width-4) // selection marker and padding
	if title == "" {
		title = "Untitled"
	}
	meta := truncateString(previewMeta(a), width-4)

	if selected {
		sb.WriteString(styles.SelectionMarker.Render(""))
		sb.WriteString(styles.SelectedTitle.Render(title))
		sb.WriteString("\n  ")
		sb.WriteString(styles.SelectedDesc.Render(meta))
	} else {
		sb.WriteString("  ")
		sb.WriteString(styles.ListItemTitle.Render(title))
		sb.WriteString("\n  ")
		sb.WriteString(styles.ListItemDesc.Render(meta))
	}
	return sb.String()
}

// renderEmptyState renders the empty list message.
func renderEmptyState(styles Styles) string {
	return styles.Muted.Render(emptyListMessage)
}

// renderListHeader renders the section title and the add form toggle. The
// toggle is dimmed while it can't be used.
func renderListHeader(formOpen, disabled bool, styles Styles) string {
	label := "[a] Add New Article"
	if formOpen {
		label = "[esc] Hide Form"
	}
	button := styles.AddButton.Render(label)
	if disabled {
		button = styles.Muted.Render(label)
	}
	return styles.SectionTitle.Render("All Articles") + "  " + button
}

// renderPreviews renders the visible window of previews around cursor,
// fitting height lines.
func renderPreviews(articles []article.Article, cursor, width, height int, styles Styles) string {
	if len(articles) == 0 {
		return renderEmptyState(styles)
	}

	const itemHeight = 3 // two lines and a blank line
	visibleItems := height / itemHeight
	if visibleItems < 1 {
		visibleItems = 1
	}

	start := 0
	if cursor >= visibleItems {
		start = cursor - visibleItems + 1
	}
	end := min(start+visibleItems, len(articles))

	var sb strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteString("\n\n")
		}
		sb.WriteString(renderPreview(articles[i], i == cursor, width, styles))
	}
	return sb.String()
}
