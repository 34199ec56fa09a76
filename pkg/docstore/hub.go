package docstore

import (
	"sort"
	"sync"
)

// Hub fans out collection snapshots and auth state to listeners. It is
// shared by the implementations; they decide when to publish.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Listener[Event]]struct{}
	auth   map[*Listener[*User]]struct{}
	user   *User
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Listener[Event]]struct{}),
		auth: make(map[*Listener[*User]]struct{}),
	}
}

// Listen registers a listener on collection. The caller is expected to send
// the initial snapshot.
func (h *Hub) Listen(collection string) *Listener[Event] {
	var l *Listener[Event]
	l = NewListener[Event](func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[collection], l)
		if len(h.subs[collection]) == 0 {
			delete(h.subs, collection)
		}
	})

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		l.Stop()
		return l
	}
	defer h.mu.Unlock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[*Listener[Event]]struct{})
	}
	h.subs[collection][l] = struct{}{}
	return l
}

// Collections returns the collections with at least one listener, sorted.
func (h *Hub) Collections() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for c := range h.subs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Publish delivers ev to every listener on collection.
func (h *Hub) Publish(collection string, ev Event) {
	h.mu.Lock()
	targets := make([]*Listener[Event], 0, len(h.subs[collection]))
	for l := range h.subs[collection] {
		targets = append(targets, l)
	}
	h.mu.Unlock()

	for _, l := range targets {
		l.Send(ev)
	}
}

// AuthState registers an auth listener, sending the current user first if
// one is signed in.
func (h *Hub) AuthState() *Listener[*User] {
	var l *Listener[*User]
	l = NewListener[*User](func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.auth, l)
	})

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		l.Stop()
		return l
	}
	defer h.mu.Unlock()
	h.auth[l] = struct{}{}
	if h.user != nil {
		u := *h.user
		l.Send(&u)
	}
	return l
}

// SetUser records the signed in user (nil for signed out) and notifies auth
// listeners.
func (h *Hub) SetUser(u *User) {
	h.mu.Lock()
	h.user = u
	targets := make([]*Listener[*User], 0, len(h.auth))
	for l := range h.auth {
		targets = append(targets, l)
	}
	h.mu.Unlock()

	for _, l := range targets {
		if u == nil {
			l.Send(nil)
			continue
		}
		cp := *u
		l.Send(&cp)
	}
}

// Close stops every listener. Listeners registered afterwards are stopped
// immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var events []*Listener[Event]
	for _, set := range h.subs {
		for l := range set {
			events = append(events, l)
		}
	}
	var auth []*Listener[*User]
	for l := range h.auth {
		auth = append(auth, l)
	}
	h.mu.Unlock()

	for _, l := range events {
		l.Stop()
	}
	for _, l := range auth {
		l.Stop()
	}
}
