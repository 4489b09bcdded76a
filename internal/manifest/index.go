package manifest

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var templatePlaceholder = regexp.MustCompile(`\[[A-Za-z]+(?::(\d+))?\]`)

// Index maps logical source keys to emitted output filenames. Several keys
// may point at the same output.
type Index struct {
	names     *Store
	extRe     *regexp.Regexp
	hotUpdate *regexp.Regexp
}

// NewIndex creates an index using fileExtRegex for extension detection.
// An empty pattern falls back to path.Ext.
func NewIndex(fileExtRegex string) (*Index, error) {
	ix := &Index{names: NewStore()}
	if fileExtRegex != "" {
		re, err := regexp.Compile(fileExtRegex)
		if err != nil {
			return nil, fmt.Errorf("%w: file extension: %v", ErrInvalidPattern, err)
		}
		ix.extRe = re
	}
	return ix, nil
}

// HotUpdatePattern builds a matcher for filenames produced by a hot-update
// template such as "[id].[fullhash].hot-update.js". Placeholders match any
// run of characters, or exactly N characters for "[name:N]".
func HotUpdatePattern(template string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)")
	last := 0
	for _, loc := range templatePlaceholder.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		if loc[2] >= 0 {
			b.WriteString(".{" + template[loc[2]:loc[3]] + "}")
		} else {
			b.WriteString(".+")
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(template[last:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: hot update template %q: %v", ErrInvalidPattern, template, err)
	}
	return re, nil
}

// SetHotUpdatePattern derives the hot-update matcher from template.
// An empty template disables hot-update filtering.
func (ix *Index) SetHotUpdatePattern(template string) error {
	if template == "" {
		ix.hotUpdate = nil
		return nil
	}
	re, err := HotUpdatePattern(template)
	if err != nil {
		return err
	}
	ix.hotUpdate = re
	return nil
}

// IsHotUpdate reports whether filename looks like a hot-update artifact
func (ix *Index) IsHotUpdate(filename string) bool {
	return ix.hotUpdate != nil && ix.hotUpdate.MatchString(filename)
}

// Extension returns the file extension of filename, including compound
// extensions such as ".js.map" under the default pattern
func (ix *Index) Extension(filename string) string {
	if i := strings.IndexAny(filename, "?#"); i >= 0 {
		filename = filename[:i]
	}
	if filename == "" {
		return ""
	}
	if ix.extRe != nil {
		if ext := ix.extRe.FindString(filename); ext != "" {
			return ext
		}
	}
	return path.Ext(filename)
}

// RecordByChunk maps chunkName plus the extension of each filename to that
// filename. Hot-update files are ignored.
func (ix *Index) RecordByChunk(chunkName string, filenames []string) {
	for _, filename := range filenames {
		if ix.IsHotUpdate(filename) {
			continue
		}
		ix.names.Set(chunkName+ix.Extension(filename), filename)
	}
}

// RecordByModule maps sourceKey to output. The last write for a key wins.
func (ix *Index) RecordByModule(sourceKey, output string) {
	if ix.IsHotUpdate(output) {
		return
	}
	ix.names.Set(sourceKey, output)
}

// Lookup returns the output recorded for key
func (ix *Index) Lookup(key string) (string, bool) {
	v, ok := ix.names.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// FindSourceKeysFor returns every key mapped to output, in recording order
func (ix *Index) FindSourceKeysFor(output string) []string {
	var keys []string
	ix.names.Range(func(key string, value any) bool {
		if value == output {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

// Len returns the number of recorded keys
func (ix *Index) Len() int {
	return ix.names.Len()
}

// Clear drops every recorded key
func (ix *Index) Clear() {
	ix.names.Clear()
}
