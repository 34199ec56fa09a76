package docstore

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestListenerLatestWins(t *testing.T) {
	l := NewListener[int](nil)
	l.Send(1)
	l.Send(2)
	l.Send(3)

	if got := <-l.C; got != 3 {
		t.Fatalf("expected latest value 3, got %d", got)
	}
	select {
	case v := <-l.C:
		t.Fatalf("unexpected pending value %d", v)
	default:
	}
}

func TestListenerStop(t *testing.T) {
	stops := 0
	l := NewListener[string](func() { stops++ })
	l.Stop()
	l.Stop()
	l.Send("ignored")

	if _, ok := <-l.C; ok {
		t.Fatal("expected closed channel")
	}
	if stops != 1 {
		t.Fatalf("expected onStop once, got %d", stops)
	}
	if !l.Stopped() {
		t.Fatal("expected Stopped")
	}
}

func TestHubPublish(t *testing.T) {
	h := NewHub()
	a := h.Listen("articles")
	b := h.Listen("articles")
	other := h.Listen("drafts")

	if diff := cmp.Diff([]string{"articles", "drafts"}, h.Collections()); diff != "" {
		t.Errorf("Collections() mismatch (-want +got):\n%s", diff)
	}

	h.Publish("articles", Event{Err: errors.New("boom")})
	for _, l := range []*Listener[Event]{a, b} {
		ev := <-l.C
		if ev.Err == nil || ev.Err.Error() != "boom" {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	select {
	case ev := <-other.C:
		t.Errorf("unexpected event on other collection: %+v", ev)
	default:
	}

	a.Stop()
	b.Stop()
	if diff := cmp.Diff([]string{"drafts"}, h.Collections()); diff != "" {
		t.Errorf("Collections() after stop mismatch (-want +got):\n%s", diff)
	}

	h.Close()
	if _, ok := <-other.C; ok {
		t.Error("expected listener closed by hub Close")
	}
	late := h.Listen("articles")
	if !late.Stopped() {
		t.Error("expected listener registered after Close to be stopped")
	}
}

func TestHubAuthState(t *testing.T) {
	h := NewHub()
	early := h.AuthState()
	select {
	case u := <-early.C:
		t.Fatalf("unexpected auth event before sign in: %+v", u)
	default:
	}

	h.SetUser(&User{UID: "u1", Anonymous: true})
	if diff := cmp.Diff(&User{UID: "u1", Anonymous: true}, <-early.C); diff != "" {
		t.Errorf("auth event mismatch (-want +got):\n%s", diff)
	}

	late := h.AuthState()
	if diff := cmp.Diff(&User{UID: "u1", Anonymous: true}, <-late.C); diff != "" {
		t.Errorf("initial auth event mismatch (-want +got):\n%s", diff)
	}

	h.SetUser(nil)
	if u := <-late.C; u != nil {
		t.Errorf("expected signed out event, got %+v", u)
	}
}

func TestPaths(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "articles", want: "articles"},
		{in: "/artifacts/u1/public/data/articles/", want: "artifacts/u1/public/data/articles"},
		{in: "artifacts/u1", wantErr: true},
		{in: "", wantErr: true},
		{in: "a//b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CollectionPath(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Fatalf("expected ErrInvalidPath, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CollectionPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	p, err := DocPath("artifacts/u1/public/data/articles", "abc")
	if err != nil {
		t.Fatal(err)
	}
	c, id, err := SplitDocPath(p)
	if err != nil {
		t.Fatal(err)
	}
	if c != "artifacts/u1/public/data/articles" || id != "abc" {
		t.Errorf("SplitDocPath(%q) = %q, %q", p, c, id)
	}
	if _, err := DocPath("articles", ""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for empty id, got %v", err)
	}
	if _, _, err := SplitDocPath("articles"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for collection path, got %v", err)
	}
}

func TestResolveFields(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	data, err := ResolveFields(Fields{"title": "t", "createdAt": ServerTimestamp}, now)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "t" || !got.CreatedAt.Equal(now) {
		t.Errorf("unexpected resolved fields: %+v", got)
	}

	doc := Document{Path: "articles/x", Data: []byte("{")}
	if err := doc.DataTo(&got); err == nil {
		t.Error("expected decode error")
	}
}
