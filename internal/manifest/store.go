package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Store is an insertion-ordered string-keyed map. Overwriting a key keeps
// its original position.
type Store struct {
	keys   []string
	values map[string]any
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

// StoreFromMap builds a store from m with keys in alphabetical order
func StoreFromMap(m map[string]any) *Store {
	s := NewStore()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.Set(k, m[k])
	}
	return s
}

// Set stores value under key
func (s *Store) Set(key string, value any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value stored under key
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Delete removes key and reports whether it was present
func (s *Store) Delete(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	if i := slices.Index(s.keys, key); i >= 0 {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
	return true
}

// Keys returns the keys in insertion order
func (s *Store) Keys() []string {
	return slices.Clone(s.keys)
}

// Len returns the number of entries
func (s *Store) Len() int {
	return len(s.keys)
}

// Clear removes every entry
func (s *Store) Clear() {
	s.keys = nil
	s.values = make(map[string]any)
}

// Range calls fn for each entry in order until fn returns false
func (s *Store) Range(fn func(key string, value any) bool) {
	for _, k := range s.keys {
		if !fn(k, s.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy
func (s *Store) Clone() *Store {
	out := &Store{
		keys:   slices.Clone(s.keys),
		values: make(map[string]any, len(s.values)),
	}
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}

// Sorted returns a copy ordered by cmp, or alphabetically when cmp is nil.
// The sort is stable.
func (s *Store) Sorted(cmp func(a, b string) int) *Store {
	out := s.Clone()
	if cmp == nil {
		cmp = strings.Compare
	}
	slices.SortStableFunc(out.keys, cmp)
	return out
}

// ToMap copies the entries into a plain map
func (s *Store) ToMap() map[string]any {
	m := make(map[string]any, len(s.keys))
	for k, v := range s.values {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the store as a JSON object in key order
func (s *Store) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeJSON(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encodeJSON(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
// Nested values decode into the usual map[string]any / []any shapes. Data
// holding anything besides a single JSON value is rejected.
func (s *Store) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return ErrMalformed
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}

	s.Clear()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		s.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// encodeJSON marshals v without escaping HTML characters
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
