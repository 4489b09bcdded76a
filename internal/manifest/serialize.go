package manifest

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

const maxIndent = 10

// Serialize runs the transform chain over the entries, applies the replacer
// and returns indented JSON. It never returns an empty document.
func (m *Manifest) Serialize() (string, error) {
	data, err := m.MarshalJSON()
	if err != nil {
		return "", err
	}

	if indent := m.indent(); indent != "" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", indent); err != nil {
			return "", err
		}
		data = buf.Bytes()
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return "{}", nil
	}
	return string(data), nil
}

// String implements fmt.Stringer; encoding errors yield "{}"
func (m *Manifest) String() string {
	s, err := m.Serialize()
	if err != nil {
		return "{}"
	}
	return s
}

// MarshalJSON returns the compact JSON form of the transformed entries
func (m *Manifest) MarshalJSON() ([]byte, error) {
	assets := m.hooks.runTransform(m.assets.Clone(), m)
	if assets == nil {
		return []byte("{}"), nil
	}
	return encodeJSON(m.replace(assets))
}

func (m *Manifest) indent() string {
	if m.opts.Indent != "" {
		if len(m.opts.Indent) > maxIndent {
			return m.opts.Indent[:maxIndent]
		}
		return m.opts.Indent
	}
	return strings.Repeat(" ", min(max(m.opts.Space, 0), maxIndent))
}

func (m *Manifest) replace(assets *Store) any {
	if len(m.opts.Replacer) == 0 && m.opts.ReplacerFunc == nil {
		return assets
	}
	return m.replaceValue(assets)
}

// replaceValue walks v applying the key allow-list and the replacer function
// to every object member and array element
func (m *Manifest) replaceValue(v any) any {
	switch t := v.(type) {
	case *Store:
		return m.replaceObject(t)
	case map[string]any:
		return m.replaceObject(StoreFromMap(t))
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = m.replaceMember(strconv.Itoa(i), el)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = m.replaceMember(strconv.Itoa(i), el)
		}
		return out
	default:
		return v
	}
}

func (m *Manifest) replaceObject(s *Store) *Store {
	out := NewStore()
	s.Range(func(key string, value any) bool {
		if len(m.opts.Replacer) > 0 && !slices.Contains(m.opts.Replacer, key) {
			return true
		}
		if m.opts.ReplacerFunc != nil {
			replaced, ok := m.opts.ReplacerFunc(key, value)
			if !ok {
				return true
			}
			value = replaced
		}
		out.Set(key, m.replaceValue(value))
		return true
	})
	return out
}

// replaceMember handles array elements; a dropped element encodes as null
func (m *Manifest) replaceMember(key string, value any) any {
	if m.opts.ReplacerFunc != nil {
		replaced, ok := m.opts.ReplacerFunc(key, value)
		if !ok {
			return nil
		}
		value = replaced
	}
	return m.replaceValue(value)
}
