// Package recordstore is the client for the hosted record store that holds
// all business data and persisted chat state: tables of ID-keyed field maps
// queried with filter formulas. The core treats records as loosely typed and
// reads well-known keys through the Fields accessors, which guard every
// missing key with a default.
package recordstore

import (
	"context"
	"time"
)

// Well-known table names.
const (
	TableClients  = "Clients"
	TableIdeas    = "Ideas"
	TablePosts    = "Posts"
	TableHistory  = "History"
	TableJobs     = "Jobs"
	TableSessions = "Sessions"
	TableStates   = "ChatState"
)

// Record is one row of a table: an opaque ID plus a loosely typed field map.
type Record struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Query narrows a List call. Formula uses the store's filter syntax,
// e.g. {UserID}='+15550001111'. Zero value lists everything.
type Query struct {
	Formula    string
	MaxRecords int
}

// Client is the record store contract consumed by the core.
type Client interface {
	List(ctx context.Context, table string, q Query) ([]Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Create(ctx context.Context, table string, fields Fields) (Record, error)
	Update(ctx context.Context, table, id string, fields Fields) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// Fields is a loosely typed field map as returned by the record store.
type Fields map[string]any

// Str returns a string field or def when missing or not a string.
func (f Fields) Str(key, def string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return def
}

// Strs returns a string-list field. Handles both []string and []any forms.
func (f Fields) Strs(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Float returns a numeric field or def. JSON decoding yields float64,
// but int is accepted too for the in-memory fake.
func (f Fields) Float(key string, def float64) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int returns a numeric field truncated to int, or def.
func (f Fields) Int(key string, def int) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Time parses an RFC3339 field or returns the zero time.
func (f Fields) Time(key string) time.Time {
	s := f.Str(key, "")
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Has reports whether a key is present with a non-nil value.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// AttachmentURL reads the first URL out of an attachment-style field,
// which the store returns as a list of {url: ...} objects. A plain
// string value is accepted as-is.
func (f Fields) AttachmentURL(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if u, ok := m["url"].(string); ok {
					return u
				}
			}
		}
	}
	return ""
}

// Attachment wraps a URL in the store's attachment field format.
func Attachment(url string) []any {
	if url == "" {
		return []any{}
	}
	return []any{map[string]any{"url": url}}
}
