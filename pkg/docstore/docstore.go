// Package docstore defines the document database and identity service the
// blog client talks to. Implementations live in subpackages.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid or already used custom token")
	ErrInvalidPath  = errors.New("invalid path")
	ErrClosed       = errors.New("client closed")
	ErrNoAPIKey     = errors.New("api key is required")
)

// Fields is the body of a document as written by a client.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp may be used as a field value; implementations replace it
// with the commit time of the write.
var ServerTimestamp any = serverTimestamp{}

// Document is a single document as read from a collection.
type Document struct {
	ID         string
	Path       string
	Data       json.RawMessage
	CreateTime time.Time
}

// DataTo decodes the document body into v.
func (d Document) DataTo(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", d.Path, err)
	}
	return nil
}

// Snapshot is the full contents of a collection at one moment.
type Snapshot struct {
	Collection string
	Docs       []Document
	ReadTime   time.Time
}

// Event is delivered by a collection listener: either a snapshot or an error.
type Event struct {
	Snapshot Snapshot
	Err      error
}

// User is a signed in identity.
type User struct {
	UID       string
	Anonymous bool
}

// Options configures a connection to a document store.
type Options struct {
	APIKey       string
	ProjectID    string
	DSN          string
	PollInterval time.Duration
}

// Validate checks that the options carry what every implementation needs.
func (o Options) Validate() error {
	if o.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// Client is a connection to the document store and its identity service.
type Client interface {
	SignInAnonymously(ctx context.Context) (User, error)
	SignInWithCustomToken(ctx context.Context, token string) (User, error)

	// AuthState delivers the current user (nil when signed out) every time
	// it changes, starting with the current state if someone is signed in.
	AuthState() *Listener[*User]

	// Listen delivers a full snapshot of the collection now and after every
	// change.
	Listen(collection string) *Listener[Event]

	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Delete(ctx context.Context, docPath string) error

	Close() error
}

// ResolveFields returns a copy of fields with ServerTimestamp replaced by
// now, marshaled to JSON.
func ResolveFields(fields Fields, now time.Time) (json.RawMessage, error) {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			v = now.UTC()
		}
		resolved[k] = v
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	return data, nil
}
