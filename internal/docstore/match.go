package docstore

import (
	"cmp"
	"slices"
	"strings"
)

// Matches reports whether data satisfies every filter. A missing field never
// equals anything, and "!=" excludes documents missing the field.
func Matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		switch f.Op {
		case OpEqual:
			if !ok || !equal(v, f.Value) {
				return false
			}
		case OpNotEqual:
			if !ok || equal(v, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply filters, orders and limits docs the way the store evaluates a query.
func Apply(docs []*Document, q Query) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if Matches(d.Data, q.Filters) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b *Document) int {
		if q.OrderBy != "" {
			c := Compare(a.Data[q.OrderBy], b.Data[q.OrderBy])
			if q.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// typeRank orders values of different types: missing/null, bools, numbers,
// strings, everything else.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

// Compare orders two field values.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
