package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/irfansharif/blog/pkg/config"
	"github.com/irfansharif/blog/pkg/docstore"
)

// ServiceLoader reads the document service configuration.
type ServiceLoader func() (config.Env, error)

// Connector opens a client for the configured service.
type Connector func(ctx context.Context, svc config.Service) (docstore.Client, error)

// Messages
type (
	// bootstrapMsg carries the outcome of loading the service config and
	// connecting. On failure client is nil and status says why.
	bootstrapMsg struct {
		client docstore.Client
		token  string
		status string
	}
	tokenSignInFailedMsg struct{ err error }
	signInFailedMsg      struct{ err error }
	authStateMsg         struct{ user *docstore.User }
	snapshotMsg          struct {
		gen   int
		event docstore.Event
	}
	articleAddedMsg struct {
		id  string
		err error
	}
	articleDeletedMsg struct {
		id  string
		err error
	}
)

// bootstrap loads the service configuration and connects. It never retries.
func bootstrap(ctx context.Context, load ServiceLoader, connect Connector, log *slog.Logger) tea.Cmd {
	return func() tea.Msg {
		env, err := load()
		if err != nil {
			log.Error("failed to load service configuration", "err", err)
			return bootstrapMsg{status: statusInitFailed}
		}
		if env.Service.APIKey == "" {
			log.Error("service configuration is missing an api key; check " + config.EnvServiceConfig)
			return bootstrapMsg{status: statusConfigMissing}
		}
		client, err := connect(ctx, env.Service)
		if err != nil {
			log.Error("failed to initialize the document service", "backend", env.Service.BackendName(), "err", err)
			return bootstrapMsg{status: statusInitFailed}
		}
		log.Info("connected to document service", "backend", env.Service.BackendName(), "project", env.Service.ProjectID)
		return bootstrapMsg{client: client, token: env.InitialAuthToken}
	}
}

// signIn signs in with token when there is one, anonymously otherwise. The
// resulting identity arrives through the auth state listener.
func signIn(ctx context.Context, client docstore.Client, token string, log *slog.Logger) tea.Cmd {
	if token == "" {
		return signInAnonymously(ctx, client, log)
	}
	return func() tea.Msg {
		if _, err := client.SignInWithCustomToken(ctx, token); err != nil {
			return tokenSignInFailedMsg{err: err}
		}
		log.Info("signed in with custom token")
		return nil
	}
}

func signInAnonymously(ctx context.Context, client docstore.Client, log *slog.Logger) tea.Cmd {
	return func() tea.Msg {
		if _, err := client.SignInAnonymously(ctx); err != nil {
			return signInFailedMsg{err: err}
		}
		log.Info("signed in anonymously")
		return nil
	}
}

// waitForAuth delivers the next auth state change. It returns nil once the
// listener is stopped.
func waitForAuth(l *docstore.Listener[*docstore.User]) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-l.C
		if !ok {
			return nil
		}
		return authStateMsg{user: u}
	}
}

// waitForSnapshot delivers the next event of the article listener opened as
// generation gen.
func waitForSnapshot(l *docstore.Listener[docstore.Event], gen int) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-l.C
		if !ok {
			return nil
		}
		return snapshotMsg{gen: gen, event: ev}
	}
}

func addArticle(ctx context.Context, client docstore.Client, collection string, fields docstore.Fields) tea.Cmd {
	return func() tea.Msg {
		id, err := client.Add(ctx, collection, fields)
		return articleAddedMsg{id: id, err: err}
	}
}

func deleteArticle(ctx context.Context, client docstore.Client, docPath, id string) tea.Cmd {
	return func() tea.Msg {
		return articleDeletedMsg{id: id, err: client.Delete(ctx, docPath)}
	}
}
