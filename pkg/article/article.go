// Package article holds the blog's article model: decoding documents from a
// collection snapshot, ordering them by date, and building new ones.
package article

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/irfansharif/blog/pkg/docstore"
)

// DateLayout is the calendar date format articles are stamped with.
const DateLayout = "2006-01-02"

// ErrMissingFields is returned by Validate when a required field is empty.
var ErrMissingFields = errors.New("title, author and content are required")

// Article is a blog article as stored in the document store.
type Article struct {
	ID        string    `json:"-"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON decodes a stored article. Other writers share the
// collection, so a field of an unexpected type decodes as its zero value
// rather than failing the whole document: a non-string date is treated as
// missing, and createdAt is read from an RFC 3339 string or a
// {seconds, nanoseconds} timestamp object.
func (a *Article) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Article{
		Title:     stringField(raw["title"]),
		Author:    stringField(raw["author"]),
		Content:   stringField(raw["content"]),
		Date:      stringField(raw["date"]),
		CreatedAt: timeField(raw["createdAt"]),
	}
	return nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// timestamp is a serialized Firestore-style timestamp.
type timestamp struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

func timeField(raw json.RawMessage) time.Time {
	if s := stringField(raw); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}
	var ts timestamp
	if err := json.Unmarshal(raw, &ts); err != nil {
		return time.Time{}
	}
	switch {
	case ts.Seconds != nil:
		return time.Unix(*ts.Seconds, ts.Nanoseconds).UTC()
	case ts.USeconds != nil:
		return time.Unix(*ts.USeconds, ts.UNanoseconds).UTC()
	}
	return time.Time{}
}

// Draft is the user-entered part of a new article.
type Draft struct {
	Title   string
	Author  string
	Content string
}

// Validate checks that every field of the draft is filled in. Fields are
// taken verbatim; whitespace counts as content.
func (d Draft) Validate() error {
	if d.Title == "" || d.Author == "" || d.Content == "" {
		return ErrMissingFields
	}
	return nil
}

// Fields returns the document body for a new article written at now: the
// draft verbatim, the UTC calendar date and a server-assigned creation time.
func (d Draft) Fields(now time.Time) docstore.Fields {
	return docstore.Fields{
		"title":     d.Title,
		"author":    d.Author,
		"content":   d.Content,
		"date":      Today(now),
		"createdAt": docstore.ServerTimestamp,
	}
}

// Today formats now as a calendar date in UTC.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// FromSnapshot decodes every document of snap, tagging each with its id, and
// returns them ordered by SortByDate. Only documents whose body is not a JSON
// object are left out; their errors are returned in skipped.
func FromSnapshot(snap docstore.Snapshot) (articles []Article, skipped []error) {
	articles = lo.FilterMap(snap.Docs, func(doc docstore.Document, _ int) (Article, bool) {
		var a Article
		if err := doc.DataTo(&a); err != nil {
			skipped = append(skipped, err)
			return Article{}, false
		}
		a.ID = doc.ID
		return a, true
	})
	SortByDate(articles)
	return articles, skipped
}

// SortByDate orders articles newest first by their date. An article whose
// date is missing or unparsable sorts as the oldest; ties keep the order the
// articles arrived in.
func SortByDate(articles []Article) {
	keys := lo.Map(articles, func(a Article, _ int) time.Time { return parseDate(a.Date) })
	idx := make([]int, len(articles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return keys[idx[i]].After(keys[idx[j]])
	})
	sorted := lo.Map(idx, func(i int, _ int) Article { return articles[i] })
	copy(articles, sorted)
}

// parseDate parses a stored date. The zero time stands for "no date".
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// Find returns the article with id, if present.
func Find(articles []Article, id string) (Article, bool) {
	return lo.Find(articles, func(a Article) bool { return a.ID == id })
}

// Paragraphs splits content on line breaks.
func Paragraphs(content string) []string {
	return strings.Split(content, "\n")
}
