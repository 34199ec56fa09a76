// Package sqlite is the embedded document store: a single SQLite file that
// any number of blog clients on one machine can share. Changes made by other
// processes are picked up by polling collection revisions.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/irfansharif/blog/pkg/docstore"
	"github.com/irfansharif/blog/pkg/docstore/migrations"
	"github.com/irfansharif/blog/pkg/docstore/sqlstore"
)

const defaultPollInterval = 2 * time.Second

// Client is a docstore.Client backed by SQLite.
type Client struct {
	*sqlstore.Store

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ docstore.Client = (*Client)(nil)

// OpenDB opens and migrates the database at dsn.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrations.Run(db.DB, migrations.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Open connects to the store described by opts. opts.DSN is the database
// file path.
func Open(ctx context.Context, opts docstore.Options, log *slog.Logger) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("sqlite: dsn is required")
	}
	db, err := OpenDB(opts.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		Store:  sqlstore.New(db, opts.ProjectID, nil, log.With("store", "sqlite")),
		cancel: cancel,
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(pollCtx, interval)
	}()

	log.Info("opened sqlite document store", "dsn", opts.DSN, "project", opts.ProjectID)
	return c, nil
}

func (c *Client) poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RefreshChanged(ctx)
		}
	}
}

// Close stops polling, every listener, and the database.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return c.Store.Close()
}
