// Package servervalue implements the server-assigned value placeholder
// understood by both the document store and the realtime store.
//
// A client writes Timestamp() where it wants the backend clock; the store
// replaces it with unix milliseconds when the write is applied. The wire form
// is {".sv": "timestamp"}.
package servervalue

import "time"

const (
	key       = ".sv"
	timestamp = "timestamp"
)

// Timestamp returns the server timestamp placeholder.
func Timestamp() map[string]any {
	return map[string]any{key: timestamp}
}

// IsTimestamp reports whether v is the placeholder.
func IsTimestamp(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	s, ok := m[key].(string)
	return ok && s == timestamp
}

// Millis converts t to the stored representation.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// Resolve returns a copy of v with every placeholder, at any depth of maps
// and slices, replaced by now in unix milliseconds.
func Resolve(v any, now time.Time) any {
	if IsTimestamp(v) {
		return Millis(now)
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Resolve(e, now)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Resolve(e, now)
		}
		return out
	default:
		return v
	}
}

// ResolveMap is Resolve for document data.
func ResolveMap(m map[string]any, now time.Time) map[string]any {
	if m == nil {
		return nil
	}
	return Resolve(m, now).(map[string]any)
}
