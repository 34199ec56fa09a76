// Package postgres is the shared document store: many blog clients on many
// machines point at one PostgreSQL database. Writers NOTIFY a channel inside
// the write transaction and every client LISTENs on it.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/irfansharif/blog/pkg/docstore"
	"github.com/irfansharif/blog/pkg/docstore/migrations"
	"github.com/irfansharif/blog/pkg/docstore/sqlstore"
)

// Channel is the notification channel collection changes are sent on.
const Channel = "docstore_changes"

const pingInterval = 90 * time.Second

type change struct {
	Project    string `json:"project"`
	Collection string `json:"collection"`
}

// Client is a docstore.Client backed by PostgreSQL.
type Client struct {
	*sqlstore.Store

	listener *pq.Listener
	log      *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var _ docstore.Client = (*Client)(nil)

func notify(ctx context.Context, tx *sqlx.Tx, project, collection string) error {
	payload, err := json.Marshal(change{Project: project, Collection: collection})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload))
	return err
}

// OpenDB connects to and migrates the database at dsn.
func OpenDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.Run(db.DB, migrations.Postgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Open connects to the store described by opts. opts.DSN is a lib/pq
// connection string.
func Open(ctx context.Context, opts docstore.Options, log *slog.Logger) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	db, err := OpenDB(ctx, opts.DSN)
	if err != nil {
		return nil, err
	}
	log = log.With("store", "postgres")

	listener := pq.NewListener(opts.DSN, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Warn("notification listener", "event", ev, "error", err)
			}
		})
	if err := listener.Listen(Channel); err != nil {
		_ = listener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		Store:    sqlstore.New(db, opts.ProjectID, notify, log),
		listener: listener,
		log:      log,
		cancel:   cancel,
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.watch(loopCtx)
	}()

	log.Info("opened postgres document store", "project", opts.ProjectID)
	return c, nil
}

func (c *Client) watch(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case n, ok := <-c.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// The connection was re-established; notifications may have
				// been lost in between.
				c.RefreshChanged(ctx)
				continue
			}
			var ch change
			if err := json.Unmarshal([]byte(n.Extra), &ch); err != nil {
				c.log.Warn("bad notification payload", "payload", n.Extra, "error", err)
				continue
			}
			if ch.Project != c.Project() {
				continue
			}
			c.Refresh(ctx, ch.Collection)

		case <-ping.C:
			if err := c.listener.Ping(); err != nil {
				c.log.Warn("listener ping", "error", err)
			}
		}
	}
}

// Close stops the notification loop, every listener, and the database.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	if err := c.listener.Close(); err != nil {
		c.log.Warn("closing listener", "error", err)
	}
	return c.Store.Close()
}
