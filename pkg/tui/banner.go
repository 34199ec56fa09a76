package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Status messages shown in the banner.
const (
	statusInitFailed      = "Error initializing the document service. Please check your setup."
	statusConfigMissing   = "Error: service configuration is incomplete. Cannot connect to database."
	statusAuthFailed      = "Error during authentication. Please try again."
	statusLoadFailed      = "Failed to load articles."
	statusMissingFields   = "Please fill in all fields to add an article."
	statusNotConnected    = "Database not initialized. Please wait or refresh."
	statusAddPending      = "Still saving the previous article..."
	statusDeletePending   = "Still deleting the previous article..."
	statusAdded           = "Article added successfully!"
	statusDeleted         = "Article deleted successfully!"
	statusAddFailedFmt    = "Error adding article: %s"
	statusDeleteFailedFmt = "Error deleting article: %s"
	statusEditorFailedFmt = "Error opening editor: %s"
)

// clearStatusMsg clears the banner if no newer status has been set since the
// one numbered seq.
type clearStatusMsg struct{ seq int }

// Clock schedules the banner's auto-dismiss.
type Clock interface {
	Now() time.Time
	// After returns a command delivering msg once d has elapsed.
	After(d time.Duration, msg tea.Msg) tea.Cmd
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// isError reports whether status gets the error treatment.
func isError(status string) bool {
	return strings.HasPrefix(status, "Error")
}

// renderBanner renders a status message, or nothing for an empty one.
func renderBanner(status string, styles Styles) string {
	if status == "" {
		return ""
	}
	if isError(status) {
		return styles.Error.Render(status)
	}
	return styles.Banner.Render(status)
}
