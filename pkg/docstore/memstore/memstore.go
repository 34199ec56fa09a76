// Package memstore is an in-process docstore.Client. It backs the client's
// offline mode and the tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/irfansharif/blog/pkg/docstore"
)

// Op names a write operation for failure injection.
type Op string

const (
	OpAdd    Op = "add"
	OpDelete Op = "delete"
	OpSignIn Op = "signin"
)

// Stats counts the writes a store has accepted.
type Stats struct {
	Adds    int
	Deletes int
}

// Store is an in-memory document store.
type Store struct {
	hub   *docstore.Hub
	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	docs     map[string]map[string]docstore.Document
	tokens   map[string]string
	failures map[Op]error
	stats    Stats
	closed   bool
}

var _ docstore.Client = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides how document ids are assigned.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New returns an empty store.
func New(opts docstore.Options, options ...Option) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		hub:      docstore.NewHub(),
		now:      time.Now,
		newID:    uuid.NewString,
		docs:     make(map[string]map[string]docstore.Document),
		tokens:   make(map[string]string),
		failures: make(map[Op]error),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// IssueToken mints a one-time custom token for uid.
func (s *Store) IssueToken(uid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = uid
	return token
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// FailListeners delivers err to every listener on collection.
func (s *Store) FailListeners(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub.Publish(collection, docstore.Event{Err: err})
}

// Stats returns the number of accepted writes.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Docs returns the documents in collection, ordered by id.
func (s *Store) Docs(collection string) []docstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(collection).Docs
}

func (s *Store) takeFailure(op Op) error {
	err := s.failures[op]
	delete(s.failures, op)
	return err
}

// SignInAnonymously implements docstore.Client.
func (s *Store) SignInAnonymously(ctx context.Context) (docstore.User, error) {
	s.mu.Lock()
	if err := s.checkLocked(OpSignIn); err != nil {
		s.mu.Unlock()
		return docstore.User{}, err
	}
	s.mu.Unlock()

	u := docstore.User{UID: uuid.NewString(), Anonymous: true}
	s.hub.SetUser(&u)
	return u, nil
}

// SignInWithCustomToken implements docstore.Client. Tokens are single use.
func (s *Store) SignInWithCustomToken(ctx context.Context, token string) (docstore.User, error) {
	s.mu.Lock()
	if err := s.checkLocked(OpSignIn); err != nil {
		s.mu.Unlock()
		return docstore.User{}, err
	}
	uid, ok := s.tokens[token]
	delete(s.tokens, token)
	s.mu.Unlock()

	if !ok {
		return docstore.User{}, docstore.ErrInvalidToken
	}
	u := docstore.User{UID: uid}
	s.hub.SetUser(&u)
	return u, nil
}

// AuthState implements docstore.Client.
func (s *Store) AuthState() *docstore.Listener[*docstore.User] {
	return s.hub.AuthState()
}

// Listen implements docstore.Client.
func (s *Store) Listen(collection string) *docstore.Listener[docstore.Event] {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := docstore.CollectionPath(collection)
	if err != nil {
		l := s.hub.Listen(collection)
		l.Send(docstore.Event{Err: err})
		return l
	}
	l := s.hub.Listen(c)
	l.Send(docstore.Event{Snapshot: s.snapshotLocked(c)})
	return l
}

// Set writes fields to the document at docPath, replacing any existing body.
func (s *Store) Set(ctx context.Context, docPath string, fields docstore.Fields) error {
	collection, id, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	return s.putLocked(collection, id, fields)
}

// Add implements docstore.Client.
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	c, err := docstore.CollectionPath(collection)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(OpAdd); err != nil {
		return "", err
	}
	id := s.newID()
	if err := s.putLocked(c, id, fields); err != nil {
		return "", err
	}
	s.stats.Adds++
	return id, nil
}

// Delete implements docstore.Client. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, docPath string) error {
	collection, id, err := docstore.SplitDocPath(docPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(OpDelete); err != nil {
		return err
	}
	s.stats.Deletes++
	if _, ok := s.docs[collection][id]; !ok {
		return nil
	}
	delete(s.docs[collection], id)
	s.hub.Publish(collection, docstore.Event{Snapshot: s.snapshotLocked(collection)})
	return nil
}

// Close implements docstore.Client.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

func (s *Store) checkLocked(op Op) error {
	if s.closed {
		return docstore.ErrClosed
	}
	return s.takeFailure(op)
}

func (s *Store) putLocked(collection, id string, fields docstore.Fields) error {
	now := s.now()
	data, err := docstore.ResolveFields(fields, now)
	if err != nil {
		return err
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]docstore.Document)
	}
	created := now
	if prev, ok := s.docs[collection][id]; ok {
		created = prev.CreateTime
	}
	s.docs[collection][id] = docstore.Document{
		ID:         id,
		Path:       fmt.Sprintf("%s/%s", collection, id),
		Data:       data,
		CreateTime: created,
	}
	s.hub.Publish(collection, docstore.Event{Snapshot: s.snapshotLocked(collection)})
	return nil
}

func (s *Store) snapshotLocked(collection string) docstore.Snapshot {
	docs := make([]docstore.Document, 0, len(s.docs[collection]))
	for _, d := range s.docs[collection] {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docstore.Snapshot{Collection: collection, Docs: docs, ReadTime: s.now()}
}
