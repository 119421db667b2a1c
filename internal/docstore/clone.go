package docstore

// Clone deep-copies JSON-like values so stored data never aliases caller data.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

func cloneDoc(d *Document) *Document {
	return &Document{Collection: d.Collection, ID: d.ID, Data: CloneMap(d.Data)}
}

// merge writes src over dst. In update mode nil values delete the field.
func merge(dst, src map[string]any, update bool) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if update && v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = Clone(v)
	}
	return dst
}
