package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/irfansharif/blog/pkg/authz"
	"github.com/irfansharif/blog/pkg/config"
	"github.com/irfansharif/blog/pkg/docstore"
	"github.com/irfansharif/blog/pkg/docstore/memstore"
	"github.com/irfansharif/blog/pkg/docstore/postgres"
	"github.com/irfansharif/blog/pkg/docstore/sqlite"
	"github.com/irfansharif/blog/pkg/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := openLog(cfg)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog()

	model := tui.New(tui.Options{
		LoadService:     config.LoadEnv,
		Connect:         connector(cfg, logger),
		Policy:          authz.NewAllowList(cfg.Admins),
		ReadCollection:  cfg.ReadCollection,
		WriteCollection: cfg.WriteCollection,
		StatusTimeout:   cfg.StatusTimeout,
		Editor:          os.Getenv("EDITOR"),
		Logger:          logger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	final, err := p.Run()
	if m, ok := final.(tui.Model); ok {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("error closing document store", "err", cerr)
		}
	}
	if err != nil {
		logger.Error("program exited with an error", "err", err)
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// connector opens the backend named in the service configuration.
func connector(cfg config.Config, logger *slog.Logger) tui.Connector {
	return func(ctx context.Context, svc config.Service) (docstore.Client, error) {
		opts, err := svc.Options(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		switch backend := svc.BackendName(); backend {
		case config.BackendMemory:
			return memstore.New(opts)
		case config.BackendSQLite:
			if err := os.MkdirAll(filepath.Dir(opts.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
			return sqlite.Open(ctx, opts, logger)
		case config.BackendPostgres:
			return postgres.Open(ctx, opts, logger)
		default:
			return nil, fmt.Errorf("unknown backend %q", backend)
		}
	}
}

// openLog returns a logger writing to the configured log file. The terminal
// belongs to the UI, so nothing is logged there.
func openLog(cfg config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}
