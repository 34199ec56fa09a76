package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all the lipgloss styles for the TUI.
type Styles struct {
	// App-level styles
	App     lipgloss.Style
	Header  lipgloss.Style
	Intro   lipgloss.Style
	Footer  lipgloss.Style
	UserID  lipgloss.Style
	Loading lipgloss.Style

	// List styles
	SectionTitle    lipgloss.Style
	AddButton       lipgloss.Style
	ListItemTitle   lipgloss.Style
	ListItemDesc    lipgloss.Style
	SelectedTitle   lipgloss.Style
	SelectedDesc    lipgloss.Style
	SelectionMarker lipgloss.Style

	// Form styles
	FormBox    lipgloss.Style
	FormLabel  lipgloss.Style
	FocusLabel lipgloss.Style
	FormHint   lipgloss.Style
	ComposeBox lipgloss.Style

	// Detail styles
	DetailTitle lipgloss.Style
	DetailMeta  lipgloss.Style
	Paragraph   lipgloss.Style
	DangerKey   lipgloss.Style

	// Status styles
	Spinner lipgloss.Style
	Banner  lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}
	highlight := lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8CFF"}
	special := lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F5F", Dark: "#FF8888"}
	text := lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#fafafa"}

	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Intro: lipgloss.NewStyle().
			Foreground(text),

		Footer: lipgloss.NewStyle().
			Foreground(subtle).
			MarginTop(1),

		UserID: lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true),

		Loading: lipgloss.NewStyle().
			Foreground(subtle),

		SectionTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		AddButton: lipgloss.NewStyle().
			Foreground(special),

		ListItemTitle: lipgloss.NewStyle().
			Foreground(text),

		ListItemDesc: lipgloss.NewStyle().
			Foreground(subtle),

		SelectedTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		SelectedDesc: lipgloss.NewStyle().
			Foreground(highlight),

		SelectionMarker: lipgloss.NewStyle().
			Foreground(highlight).
			SetString("› "),

		FormBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1),

		FormLabel: lipgloss.NewStyle().
			Foreground(subtle),

		FocusLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		FormHint: lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true),

		ComposeBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle),

		DetailTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		DetailMeta: lipgloss.NewStyle().
			Foreground(subtle),

		Paragraph: lipgloss.NewStyle().
			Foreground(text),

		DangerKey: lipgloss.NewStyle().
			Foreground(errorColor),

		Spinner: lipgloss.NewStyle().
			Foreground(special),

		Banner: lipgloss.NewStyle().
			Foreground(special),

		Error: lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(subtle),
	}
}
