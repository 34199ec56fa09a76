package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/irfansharif/blog/pkg/config"
	"github.com/irfansharif/blog/pkg/docstore"
	"github.com/irfansharif/blog/pkg/docstore/memstore"
)

// manualClock is a Clock whose time only moves when advanced. Timers are
// recorded when scheduled and fired by advance.
type manualClock struct {
	now    time.Time
	timers []timer
}

type timer struct {
	at  time.Time
	msg tea.Msg
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) After(d time.Duration, msg tea.Msg) tea.Cmd {
	c.timers = append(c.timers, timer{at: c.now.Add(d), msg: msg})
	return nil
}

// advance moves time forward by d and returns the messages of the timers
// that came due, in the order they were due.
func (c *manualClock) advance(d time.Duration) []tea.Msg {
	c.now = c.now.Add(d)
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
	var due []tea.Msg
	for len(c.timers) > 0 && !c.timers[0].at.After(c.now) {
		due = append(due, c.timers[0].msg)
		c.timers = c.timers[1:]
	}
	return due
}

// harness drives a Model the way a bubbletea program would: commands run on
// their own goroutines and the messages they produce are fed back through
// Update, one at a time, on the test goroutine.
type harness struct {
	t     *testing.T
	m     Model
	clock *manualClock
	store *memstore.Store
	msgs  chan tea.Msg

	// statuses records every banner message shown, in order.
	statuses []string
}

// harnessConfig describes the environment a harness starts in.
type harnessConfig struct {
	admins      []string
	read, write string
	env         config.Env
	loadErr     error
	connectErr  error
	failSignIn  bool
	tokenFor    string
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	var ids int
	store, err := memstore.New(docstore.Options{APIKey: "test"}, memstore.WithIDs(func() string {
		ids++
		return fmt.Sprintf("doc-%d", ids)
	}))
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		t:     t,
		clock: newManualClock(),
		store: store,
		msgs:  make(chan tea.Msg, 1024),
	}
	if cfg.tokenFor != "" {
		cfg.env.InitialAuthToken = store.IssueToken(cfg.tokenFor)
	}
	if cfg.failSignIn {
		store.FailNext(memstore.OpSignIn, errors.New("identity service unavailable"))
	}

	h.m = New(Options{
		LoadService: func() (config.Env, error) {
			return cfg.env, cfg.loadErr
		},
		Connect: func(ctx context.Context, svc config.Service) (docstore.Client, error) {
			if cfg.connectErr != nil {
				return nil, cfg.connectErr
			}
			return store, nil
		},
		Policy:          policyFor(cfg.admins),
		ReadCollection:  cfg.read,
		WriteCollection: cfg.write,
		Clock:           h.clock,
	})
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

// run executes cmd in the background, expanding batches.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				h.run(c)
			}
			return
		}
		if msg != nil {
			h.msgs <- msg
		}
	}()
}

// isAppMsg reports whether msg is one the controller produces for itself.
// Cursor blinks and spinner ticks are dropped to keep runs deterministic.
func isAppMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case bootstrapMsg, tokenSignInFailedMsg, signInFailedMsg, authStateMsg,
		snapshotMsg, articleAddedMsg, articleDeletedMsg, clearStatusMsg:
		return true
	}
	return false
}

// send feeds msg through Update and runs the resulting command.
func (h *harness) send(msg tea.Msg) {
	seq := h.m.statusSeq
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	h.recordStatus(seq)
	h.run(cmd)
}

// recordStatus notes the banner message if one was set since seq.
func (h *harness) recordStatus(seq int) {
	if h.m.statusSeq != seq && h.m.status != "" {
		h.statuses = append(h.statuses, h.m.status)
	}
}

// settle processes messages until none have arrived for a while.
func (h *harness) settle() {
	const quiet = 50 * time.Millisecond
	for {
		select {
		case msg := <-h.msgs:
			if isAppMsg(msg) {
				h.send(msg)
			}
		case <-time.After(quiet):
			return
		}
	}
}

func (h *harness) start() {
	h.run(h.m.Init())
	h.settle()
}

func (h *harness) advance(d time.Duration) {
	for _, msg := range h.clock.advance(d) {
		h.send(msg)
	}
	h.settle()
}

// keyMsg builds a key press from its name.
func keyMsg(name string) tea.KeyMsg {
	types := map[string]tea.KeyType{
		"enter":     tea.KeyEnter,
		"tab":       tea.KeyTab,
		"shift+tab": tea.KeyShiftTab,
		"esc":       tea.KeyEsc,
		"backspace": tea.KeyBackspace,
		"up":        tea.KeyUp,
		"down":      tea.KeyDown,
		"space":     tea.KeySpace,
		"ctrl+s":    tea.KeyCtrlS,
		"ctrl+c":    tea.KeyCtrlC,
	}
	if t, ok := types[name]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
}

// typeText types s into whatever has focus, one key per rune.
func (h *harness) typeText(s string) {
	for _, r := range s {
		switch r {
		case '\n':
			h.send(tea.KeyMsg{Type: tea.KeyEnter})
			continue
		case '\t':
			h.send(tea.KeyMsg{Type: tea.KeyTab})
			continue
		}
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// identity prints the signed in identity; anonymous ids are random.
func identity(u *docstore.User) string {
	switch {
	case u == nil:
		return "none"
	case u.Anonymous:
		return "anonymous"
	default:
		return u.UID
	}
}

// state renders the controller state for comparison.
func (h *harness) state() string {
	s := h.m.Session()
	var sb strings.Builder
	fmt.Fprintf(&sb, "loading=%t connected=%t identity=%s\n", s.Loading, s.Connected(), identity(s.User))

	status := h.m.Status()
	if status == "" {
		status = "<none>"
	}
	fmt.Fprintf(&sb, "status: %s\n", status)

	d := h.m.form.Draft()
	fmt.Fprintf(&sb, "form: open=%t disabled=%t focus=%s title=%q author=%q content=%q\n",
		h.m.formOpen, h.m.form.Disabled(), h.m.form.Focused(), d.Title, d.Author, d.Content)

	selected := s.SelectedID
	if selected == "" {
		selected = "<none>"
	}
	fmt.Fprintf(&sb, "selected: %s\n", selected)

	if len(s.Articles) == 0 {
		sb.WriteString("articles: <none>\n")
	} else {
		sb.WriteString("articles:\n")
		for i, a := range s.Articles {
			cursor := " "
			if i == h.m.cursor {
				cursor = ">"
			}
			date := a.Date
			if date == "" {
				date = "-"
			}
			fmt.Fprintf(&sb, " %s %s %s %q by %s\n", cursor, a.ID, date, a.Title, a.Author)
		}
	}

	stats := h.store.Stats()
	fmt.Fprintf(&sb, "writes: adds=%d deletes=%d\n", stats.Adds, stats.Deletes)
	return sb.String()
}
