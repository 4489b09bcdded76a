package manifest

import (
	"errors"
	"io/fs"
	"os"
)

// Merge folds existing entries into the manifest. Keys missing from the
// manifest, under their raw or normalized form, are inserted as they are. When both sides hold objects they are
// deep-merged with the in-memory side winning; arrays are replaced, never
// concatenated. For any other collision the in-memory value wins.
func (m *Manifest) Merge(existing *Store) {
	if existing == nil {
		return
	}

	m.merging = true
	defer func() { m.merging = false }()

	existing.Range(func(key string, old any) bool {
		stored := key
		current, ok := m.assets.Get(stored)
		if !ok {
			stored = FixKey(key)
			current, ok = m.assets.Get(stored)
		}
		if !ok {
			m.Set(key, old)
			return true
		}
		oldObj, oldIsObj := asObject(old)
		curObj, curIsObj := asObject(current)
		if oldIsObj && curIsObj {
			m.Set(stored, deepMerge(oldObj, curObj))
		}
		return true
	})
}

// MaybeMerge merges the manifest file at path when merging is enabled. A
// missing, unreadable or malformed file leaves the manifest untouched.
// It reports whether a merge happened.
func (m *Manifest) MaybeMerge(path string) bool {
	if m.opts.Merge == MergeOff || m.opts.Merge == "" {
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Debug().Err(err).Str("path", path).Msg("Skipping merge, manifest unreadable")
		}
		return false
	}

	existing := NewStore()
	if err := existing.UnmarshalJSON(data); err != nil {
		m.logger.Debug().Err(err).Str("path", path).Msg("Skipping merge, manifest is not valid JSON")
		return false
	}

	m.Merge(existing)
	m.logger.Debug().Str("path", path).Int("entries", existing.Len()).Msg("Merged existing manifest")
	return true
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case *Store:
		if t == nil {
			return nil, false
		}
		return t.ToMap(), true
	default:
		return nil, false
	}
}

// deepMerge returns dst overlaid with src. Nested objects are merged
// recursively; every other src value replaces the dst value.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		srcObj, srcIsObj := asObject(v)
		dstObj, dstIsObj := asObject(out[k])
		if srcIsObj && dstIsObj {
			out[k] = deepMerge(dstObj, srcObj)
			continue
		}
		out[k] = v
	}
	return out
}
