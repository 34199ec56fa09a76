// Package sqlstore implements docstore.Client over a SQL database. The sqlite
// and postgres packages open the database and decide how changes made by
// other processes are noticed.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/irfansharif/blog/pkg/docstore"
)

// NotifyFunc runs inside the write transaction after collection changed.
type NotifyFunc func(ctx context.Context, tx *sqlx.Tx, project, collection string) error

// Store is a SQL backed document store. Queries are written with '?'
// placeholders and rebound for the driver.
type Store struct {
	db      *sqlx.DB
	project string
	hub     *docstore.Hub
	log     *slog.Logger
	notify  NotifyFunc
	now     func() time.Time

	// mu orders snapshot reads with the sends that follow them, so
	// listeners never see an older snapshot after a newer one.
	mu        sync.Mutex
	revisions map[string]int64
	closed    bool
}

var _ docstore.Client = (*Store)(nil)

// New wraps an open, migrated database. notify may be nil.
func New(db *sqlx.DB, project string, notify NotifyFunc, log *slog.Logger) *Store {
	return &Store{
		db:        db,
		project:   project,
		hub:       docstore.NewHub(),
		log:       log,
		notify:    notify,
		now:       time.Now,
		revisions: make(map[string]int64),
	}
}

// Project returns the project the store is scoped to.
func (s *Store) Project() string { return s.project }

type docRow struct {
	ID         string `db:"id"`
	Data       []byte `db:"data"`
	CreateTime int64  `db:"create_time"`
}

// IssueToken mints a one-time custom token for uid.
func (s *Store) IssueToken(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", errors.New("uid is required")
	}
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO custom_tokens (token, project, uid, created_at) VALUES (?, ?, ?, ?)`),
		token, s.project, uid, s.now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

// SignInAnonymously implements docstore.Client.
func (s *Store) SignInAnonymously(ctx context.Context) (docstore.User, error) {
	if s.isClosed() {
		return docstore.User{}, docstore.ErrClosed
	}
	u := docstore.User{UID: uuid.NewString(), Anonymous: true}
	s.hub.SetUser(&u)
	s.log.Debug("signed in anonymously", "uid", u.UID)
	return u, nil
}

// SignInWithCustomToken implements docstore.Client. A token is consumed by
// its first successful use.
func (s *Store) SignInWithCustomToken(ctx context.Context, token string) (docstore.User, error) {
	if s.isClosed() {
		return docstore.User{}, docstore.ErrClosed
	}
	var uid string
	err := s.db.GetContext(ctx, &uid, s.db.Rebind(
		`UPDATE custom_tokens SET used_at = ?
		 WHERE token = ? AND project = ? AND used_at IS NULL
		 RETURNING uid`),
		s.now().UnixNano(), token, s.project,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.User{}, docstore.ErrInvalidToken
	}
	if err != nil {
		return docstore.User{}, fmt.Errorf("consume token: %w", err)
	}
	u := docstore.User{UID: uid}
	s.hub.SetUser(&u)
	s.log.Debug("signed in with custom token", "uid", uid)
	return u, nil
}

// AuthState implements docstore.Client.
func (s *Store) AuthState() *docstore.Listener[*docstore.User] {
	return s.hub.AuthState()
}

// Listen implements docstore.Client. The initial snapshot is loaded in the
// background.
func (s *Store) Listen(collection string) *docstore.Listener[docstore.Event] {
	c, err := docstore.CollectionPath(collection)
	if err != nil {
		l := s.hub.Listen(collection)
		l.Send(docstore.Event{Err: err})
		return l
	}
	l := s.hub.Listen(c)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		snap, rev, err := s.snapshot(context.Background(), c)
		if err != nil {
			l.Send(docstore.Event{Err: err})
			return
		}
		s.revisions[c] = rev
		l.Send(docstore.Event{Snapshot: snap})
	}()
	return l
}

// Add implements docstore.Client.
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	c, err := docstore.CollectionPath(collection)
	if err != nil {
		return "", err
	}
	if s.isClosed() {
		return "", docstore.ErrClosed
	}
	now := s.now()
	data, err := docstore.ResolveFields(fields, now)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	err = s.write(ctx, c, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO documents (project, collection, id, data, create_time) VALUES (?, ?, ?, ?, ?)`),
			s.project, c, id, string(data), now.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Delete implements docstore.Client. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, docPath string) error {
	c, id, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return docstore.ErrClosed
	}
	return s.write(ctx, c, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM documents WHERE project = ? AND collection = ? AND id = ?`),
			s.project, c, id,
		)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

// write runs fn and bumps the collection revision in one transaction, then
// publishes the new snapshot to local listeners.
func (s *Store) write(ctx context.Context, collection string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO collections (project, collection, revision) VALUES (?, ?, 1)
		 ON CONFLICT (project, collection) DO UPDATE SET revision = collections.revision + 1`),
		s.project, collection,
	)
	if err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	if s.notify != nil {
		if err := s.notify(ctx, tx, s.project, collection); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.Refresh(ctx, collection)
	return nil
}

// Refresh publishes a fresh snapshot of collection if anyone listens to it.
func (s *Store) Refresh(ctx context.Context, collection string) {
	if !s.listened(collection) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, rev, err := s.snapshot(ctx, collection)
	if err != nil {
		s.log.Warn("loading snapshot", "collection", collection, "error", err)
		s.hub.Publish(collection, docstore.Event{Err: err})
		return
	}
	s.revisions[collection] = rev
	s.hub.Publish(collection, docstore.Event{Snapshot: snap})
}

// RefreshChanged compares the stored revision of every listened collection
// with the last one published and refreshes those that moved.
func (s *Store) RefreshChanged(ctx context.Context) {
	for _, c := range s.hub.Collections() {
		rev, err := s.revision(ctx, s.db, c)
		if err != nil {
			s.log.Warn("polling revision", "collection", c, "error", err)
			continue
		}
		s.mu.Lock()
		seen, ok := s.revisions[c]
		s.mu.Unlock()
		if ok && seen == rev {
			continue
		}
		s.Refresh(ctx, c)
	}
}

func (s *Store) listened(collection string) bool {
	for _, c := range s.hub.Collections() {
		if c == collection {
			return true
		}
	}
	return false
}

func (s *Store) revision(ctx context.Context, q sqlx.QueryerContext, collection string) (int64, error) {
	var rev int64
	err := sqlx.GetContext(ctx, q, &rev, s.db.Rebind(
		`SELECT revision FROM collections WHERE project = ? AND collection = ?`),
		s.project, collection,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query revision: %w", err)
	}
	return rev, nil
}

func (s *Store) snapshot(ctx context.Context, collection string) (docstore.Snapshot, int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return docstore.Snapshot{}, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rev, err := s.revision(ctx, tx, collection)
	if err != nil {
		return docstore.Snapshot{}, 0, err
	}
	var rows []docRow
	err = tx.SelectContext(ctx, &rows, tx.Rebind(
		`SELECT id, data, create_time FROM documents
		 WHERE project = ? AND collection = ? ORDER BY id`),
		s.project, collection,
	)
	if err != nil {
		return docstore.Snapshot{}, 0, fmt.Errorf("query documents: %w", err)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, docstore.Document{
			ID:         r.ID,
			Path:       collection + "/" + r.ID,
			Data:       r.Data,
			CreateTime: time.Unix(0, r.CreateTime).UTC(),
		})
	}
	return docstore.Snapshot{Collection: collection, Docs: docs, ReadTime: s.now()}, rev, nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops every listener and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	return s.db.Close()
}
