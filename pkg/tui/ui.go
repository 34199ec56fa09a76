package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/irfansharif/blog/pkg/article"
	"github.com/irfansharif/blog/pkg/authz"
	"github.com/irfansharif/blog/pkg/config"
	"github.com/irfansharif/blog/pkg/docstore"
)

// Session is the state every view renders from. Only the controller writes
// it: connection and identity during bootstrap, articles from the
// subscription, the rest from user actions.
type Session struct {
	Client     docstore.Client
	User       *docstore.User
	Articles   []article.Article
	SelectedID string
	Loading    bool

	// Writes in flight; a second add or delete waits for the first.
	Adding   bool
	Deleting bool
}

// Connected reports whether a client is established.
func (s Session) Connected() bool { return s.Client != nil }

// Identity returns the signed in identity, or "".
func (s Session) Identity() string {
	if s.User == nil {
		return ""
	}
	return s.User.UID
}

// Selected returns the selected article. It is nil when nothing is selected
// or the selected id is not among the articles.
func (s Session) Selected() *article.Article {
	if s.SelectedID == "" {
		return nil
	}
	a, ok := article.Find(s.Articles, s.SelectedID)
	if !ok {
		return nil
	}
	return &a
}

// Options configures the App Controller.
type Options struct {
	LoadService ServiceLoader
	Connect     Connector
	Policy      authz.Policy

	// ReadCollection is listened to for the article list. WriteCollection
	// receives new articles and deletes; {uid} expands to the identity.
	ReadCollection  string
	WriteCollection string

	StatusTimeout time.Duration
	Editor        string
	Clock         Clock
	Logger        *slog.Logger
}

// Model is the App Controller: it owns the session, reacts to user input and
// service events, and renders everything from that state.
type Model struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
	keys   KeyMap
	styles Styles
	width  int
	height int

	session Session

	auth     *docstore.Listener[*docstore.User]
	articles *docstore.Listener[docstore.Event]
	// subscribedFor is the identity the article listener was opened for;
	// gen numbers listeners so events from replaced ones are dropped.
	subscribedFor string
	gen           int

	// UI state
	cursor   int
	formOpen bool
	form     FormModel
	detail   DetailModel
	compose  *ComposePane
	spinner  spinner.Model

	status    string
	statusSeq int
}

// New creates the App Controller. Nothing happens until Init runs.
func New(opts Options) Model {
	if opts.Policy == nil {
		opts.Policy = authz.NewAllowList(nil)
	}
	if opts.ReadCollection == "" {
		opts.ReadCollection = config.DefaultReadCollection
	}
	if opts.WriteCollection == "" {
		opts.WriteCollection = config.DefaultWriteCollection
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = config.DefaultStatusTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	styles := DefaultStyles()
	keys := DefaultKeyMap()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		log:     opts.Logger,
		keys:    keys,
		styles:  styles,
		session: Session{Loading: true},
		form:    NewForm(keys, styles),
		detail:  NewDetail(76, 12, styles),
		spinner: s,
	}
	return m.resize(80, 24)
}

// Session returns the current session state.
func (m Model) Session() Session { return m.session }

// Status returns the banner's current message.
func (m Model) Status() string { return m.status }

// Init starts the bootstrap: load configuration, connect and sign in.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		bootstrap(m.ctx, m.opts.LoadService, m.opts.Connect, m.log),
		m.spinner.Tick,
	)
}

// Close releases the listeners and the client.
func (m Model) Close() error {
	m.cancel()
	if m.compose != nil {
		m.compose.Close()
	}
	if m.articles != nil {
		m.articles.Stop()
	}
	if m.auth != nil {
		m.auth.Stop()
	}
	if m.session.Client != nil {
		return m.session.Client.Close()
	}
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := m.update(msg)
	m.form = m.form.SetDisabled(m.disabled())
	m.detail = m.detail.SetArticle(m.session.Selected())
	return m, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		if m.session.Loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case bootstrapMsg:
		if msg.client == nil {
			m.session.Loading = false
			return m.setStatus(msg.status)
		}
		m.session.Client = msg.client
		m.auth = msg.client.AuthState()
		return m, tea.Batch(
			waitForAuth(m.auth),
			signIn(m.ctx, msg.client, msg.token, m.log),
		)

	case tokenSignInFailedMsg:
		m.log.Error("error signing in with custom token; falling back to anonymous", "err", msg.err)
		m, cmd := m.setStatus(statusAuthFailed)
		return m, tea.Batch(cmd, signInAnonymously(m.ctx, m.session.Client, m.log))

	case signInFailedMsg:
		m.log.Error("error signing in anonymously", "err", msg.err)
		m.session.Loading = false
		return m.setStatus(statusAuthFailed)

	case authStateMsg:
		m.session.User = msg.user
		m.session.Loading = false
		if msg.user != nil {
			m.log.Info("auth state changed", "uid", msg.user.UID, "anonymous", msg.user.Anonymous)
		} else {
			m.log.Info("auth state changed, no user")
		}
		m, cmd := m.subscribe()
		return m, tea.Batch(waitForAuth(m.auth), cmd)

	case snapshotMsg:
		return m.handleSnapshot(msg)

	case articleAddedMsg:
		m.session.Adding = false
		if msg.err != nil {
			m.log.Error("error adding article", "err", msg.err)
			return m.setStatus(fmt.Sprintf(statusAddFailedFmt, msg.err))
		}
		m.log.Info("article added", "id", msg.id)
		m.form = m.form.Reset()
		m.formOpen = false
		return m.setStatus(statusAdded)

	case articleDeletedMsg:
		m.session.Deleting = false
		if msg.err != nil {
			m.log.Error("error deleting article", "id", msg.id, "err", msg.err)
			return m.setStatus(fmt.Sprintf(statusDeleteFailedFmt, msg.err))
		}
		m.log.Info("article deleted", "id", msg.id)
		if m.session.SelectedID == msg.id {
			m.session.SelectedID = ""
		}
		return m.setStatus(statusDeleted)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case composeTickMsg:
		if m.compose != nil {
			return m, m.compose.Update(msg)
		}
		return m, nil

	case composeExitMsg:
		return m.finishCompose(msg)
	}

	// Cursor blinks and the like.
	if m.formOpen && m.compose == nil {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

// subscribe keeps exactly one article listener open while there is both a
// connection and an identity, replacing it when the identity changes. The
// previous identity's articles are dropped with its listener.
func (m Model) subscribe() (Model, tea.Cmd) {
	uid := m.session.Identity()
	if m.articles != nil && m.subscribedFor == uid && m.session.Connected() {
		return m, nil
	}
	if m.articles != nil {
		m.articles.Stop()
		m.articles = nil
		m.subscribedFor = ""
		m.session.Articles = nil
		m.cursor = 0
	}
	if !m.session.Connected() || uid == "" {
		return m, nil
	}

	m.gen++
	m.articles = m.session.Client.Listen(m.opts.ReadCollection)
	m.subscribedFor = uid
	m.log.Debug("listening for articles", "collection", m.opts.ReadCollection, "uid", uid)
	return m, waitForSnapshot(m.articles, m.gen)
}

func (m Model) handleSnapshot(msg snapshotMsg) (Model, tea.Cmd) {
	if msg.gen != m.gen || m.articles == nil {
		return m, nil
	}
	next := waitForSnapshot(m.articles, m.gen)

	if msg.event.Err != nil {
		m.log.Error("error fetching articles", "err", msg.event.Err)
		m, cmd := m.setStatus(statusLoadFailed)
		return m, tea.Batch(cmd, next)
	}

	articles, skipped := article.FromSnapshot(msg.event.Snapshot)
	for _, err := range skipped {
		m.log.Warn("skipping article", "err", err)
	}
	m.session.Articles = articles
	if m.cursor >= len(articles) {
		m.cursor = max(0, len(articles)-1)
	}
	m.log.Debug("articles fetched and updated", "count", len(articles))
	return m, next
}

// setStatus shows status in the banner and schedules its dismissal. A newer
// status cancels the pending dismissal of an older one.
func (m Model) setStatus(status string) (Model, tea.Cmd) {
	m.status = status
	m.statusSeq++
	if status == "" {
		return m, nil
	}
	return m, m.opts.Clock.After(m.opts.StatusTimeout, clearStatusMsg{seq: m.statusSeq})
}

// disabled reports whether adding articles is unavailable.
func (m Model) disabled() bool {
	return m.session.Loading || !m.session.Connected()
}

// canDelete reports whether the signed in identity may delete articles.
func (m Model) canDelete() bool {
	return m.session.User != nil && m.opts.Policy.CanDelete(m.session.User.UID)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.compose != nil {
		return m, m.compose.Update(msg)
	}
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if m.session.Loading {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case m.session.SelectedID != "":
		return m.handleDetailKeys(msg)
	case m.formOpen:
		return m.handleFormKeys(msg)
	default:
		return m.handleListKeys(msg)
	}
}

func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.session.Articles)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Top):
		m.cursor = 0

	case key.Matches(msg, m.keys.Bottom):
		m.cursor = max(0, len(m.session.Articles)-1)

	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(m.session.Articles) {
			return m.selectArticle(m.session.Articles[m.cursor].ID)
		}

	case key.Matches(msg, m.keys.Add):
		if m.disabled() {
			return m, nil
		}
		m.formOpen = true
		var cmd tea.Cmd
		m.form, cmd = m.form.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) handleFormKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.formOpen = false
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.disabled() {
			return m, nil
		}
		return m.addArticle(m.form.Draft())

	case key.Matches(msg, m.keys.Compose):
		return m.openCompose()
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		return m.back(), nil

	case key.Matches(msg, m.keys.Delete):
		if !m.canDelete() {
			return m, nil
		}
		return m.deleteArticle(m.session.SelectedID)
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// selectArticle opens the detail view for id and clears the banner.
func (m Model) selectArticle(id string) (Model, tea.Cmd) {
	m.session.SelectedID = id
	return m.setStatus("")
}

// back returns to the list.
func (m Model) back() Model {
	m.session.SelectedID = ""
	return m
}

// addArticle validates d and writes it to the write collection. The new
// article only shows up in the list once a snapshot includes it.
func (m Model) addArticle(d article.Draft) (Model, tea.Cmd) {
	if err := d.Validate(); err != nil {
		return m.setStatus(statusMissingFields)
	}
	if !m.session.Connected() {
		return m.setStatus(statusNotConnected)
	}
	if m.session.Adding {
		return m.setStatus(statusAddPending)
	}

	m.session.Adding = true
	collection := config.WritePath(m.opts.WriteCollection, m.session.Identity())
	fields := d.Fields(m.opts.Clock.Now())
	return m, addArticle(m.ctx, m.session.Client, collection, fields)
}

// deleteArticle removes article id from the write collection. Without a
// connection, an id, or permission it does nothing.
func (m Model) deleteArticle(id string) (Model, tea.Cmd) {
	if !m.session.Connected() || id == "" || !m.canDelete() {
		return m, nil
	}
	if m.session.Deleting {
		return m.setStatus(statusDeletePending)
	}

	collection := config.WritePath(m.opts.WriteCollection, m.session.Identity())
	docPath, err := docstore.DocPath(collection, id)
	if err != nil {
		return m.setStatus(fmt.Sprintf(statusDeleteFailedFmt, err))
	}
	m.session.Deleting = true
	return m, deleteArticle(m.ctx, m.session.Client, docPath, id)
}

func (m Model) openCompose() (Model, tea.Cmd) {
	if m.disabled() {
		return m, nil
	}
	w, h := m.composeSize()
	pane, cmd, err := OpenCompose(m.opts.Editor, m.form.Content(), w, h)
	if err != nil {
		m.log.Error("error opening editor", "err", err)
		return m.setStatus(fmt.Sprintf(statusEditorFailedFmt, err))
	}
	m.compose = pane
	return m, cmd
}

func (m Model) finishCompose(msg composeExitMsg) (Model, tea.Cmd) {
	pane := m.compose
	m.compose = nil
	if pane == nil {
		return m, nil
	}
	defer pane.Close()

	if msg.err != nil {
		m.log.Warn("editor exited with an error; keeping previous content", "err", msg.err)
		return m.setStatus(fmt.Sprintf(statusEditorFailedFmt, msg.err))
	}
	content, err := pane.Result()
	if err != nil {
		return m.setStatus(fmt.Sprintf(statusEditorFailedFmt, err))
	}
	m.form = m.form.SetContent(strings.TrimSuffix(content, "\n"))
	return m, nil
}

func (m Model) composeSize() (int, int) {
	return max(m.width-4, 20), max(m.height-6, 5)
}

func (m Model) resize(width, height int) Model {
	m.width = width
	m.height = height
	m.form = m.form.SetWidth(width - 4)
	m.detail = m.detail.SetSize(max(width-4, 10), max(height-12, 3))
	if m.compose != nil {
		m.compose.Resize(m.composeSize())
	}
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.compose != nil {
		return m.styles.App.Render(
			m.styles.Header.Render("Editing article content") + "\n" +
				m.styles.Muted.Render("Save and quit the editor to return to the form.") + "\n\n" +
				m.styles.ComposeBox.Render(m.compose.View()),
		)
	}

	if m.session.Loading {
		return m.styles.App.Render(m.spinner.View() + m.styles.Loading.Render(" Loading blog..."))
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render("Simple Blog"))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Intro.Render("Hello. This is a shared blog. Feel free to add an article!"))
	sb.WriteString("\n")
	if uid := m.session.Identity(); uid != "" {
		sb.WriteString(m.styles.UserID.Render("Your User ID: " + uid))
		sb.WriteString("\n")
	}
	if banner := renderBanner(m.status, m.styles); banner != "" {
		sb.WriteString("\n")
		sb.WriteString(banner)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	var help string
	if m.session.SelectedID != "" {
		sb.WriteString(m.detail.View())
		help = renderDetailHelp(m.canDelete(), m.styles)
	} else {
		sb.WriteString(renderListHeader(m.formOpen, m.disabled(), m.styles))
		sb.WriteString("\n\n")
		if m.formOpen {
			sb.WriteString(m.form.View())
			sb.WriteString("\n\n")
			help = "[ctrl+s] submit  [tab] next field  [ctrl+e] editor  [esc] hide form"
		} else {
			help = "[a]dd new article  [enter] read  [↑/↓] move  [q]uit"
		}
		used := lipgloss.Height(sb.String())
		sb.WriteString(renderPreviews(m.session.Articles, m.cursor, m.width-4, m.height-used-5, m.styles))
	}

	// Push the footer to the bottom.
	content := sb.String()
	remaining := m.height - lipgloss.Height(content) - 2 /* padding */ - 2 /* footer */
	if remaining > 0 {
		sb.WriteString(strings.Repeat("\n", remaining))
	}
	sb.WriteString(m.styles.Footer.Render(help))

	return m.styles.App.Render(sb.String())
}
