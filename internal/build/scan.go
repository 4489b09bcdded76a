package build

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/quantmind-br/assets-manifest/internal/domain"
)

// hashedName splits "main.3f2a9c1d.js" into name, hash and extension
var hashedName = regexp.MustCompile(`^(.+?)[.-]([0-9a-fA-F]{8,})((?:\.\w+)+)$`)

// ScanOptions configures Scan
type ScanOptions struct {
	// Include patterns are doublestar globs relative to the scanned
	// directory; empty includes every file
	Include []string
	Exclude []string

	PublicPath             string
	HotUpdateChunkFilename string
}

// DefaultExcludePatterns skips lock files and in-flight temp files
var DefaultExcludePatterns = []string{
	"**/*.lock",
	"**/.*.tmp-*",
}

// Scan builds a snapshot from the files under dir. Files carrying a content
// hash in their name are grouped into a chunk named after the unhashed
// stem, so "js/main.3f2a9c1d.js" is recorded under the key "js/main.js".
func Scan(ctx context.Context, dir string, opts ScanOptions) (*Snapshot, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	exclude := append(slices.Clone(DefaultExcludePatterns), opts.Exclude...)
	for _, p := range append(slices.Clone(opts.Include), exclude...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, domain.NewValidationError("pattern", "invalid glob "+p)
		}
	}

	snap := &Snapshot{
		Compiler: domain.CompilerOptions{
			OutputPath:             abs,
			PublicPath:             opts.PublicPath,
			HotUpdateChunkFilename: opts.HotUpdateChunkFilename,
		},
		Chunks: map[string][]string{},
	}

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(opts.Include) > 0 && !matchesAny(rel, opts.Include) {
			return nil
		}
		if matchesAny(rel, exclude) {
			return nil
		}

		snap.Assets = append(snap.Assets, domain.Asset{Name: rel})
		if chunk, ok := chunkName(rel); ok {
			snap.Chunks[chunk] = append(snap.Chunks[chunk], rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(snap.Chunks) == 0 {
		snap.Chunks = nil
	}
	return snap, nil
}

// chunkName derives the chunk of a hashed file name
func chunkName(rel string) (string, bool) {
	dir, base := path.Split(rel)
	m := hashedName.FindStringSubmatch(base)
	if m == nil {
		return "", false
	}
	// "main.3f2a9c1d.js.map" still belongs to chunk "main"
	return dir + m[1], true
}

// matchesAny reports whether rel matches one of the patterns. Patterns
// without glob characters match a base name, or a directory prefix when they
// end with a slash.
func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		switch {
		case strings.ContainsAny(p, "*?[{"):
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		case strings.HasSuffix(p, "/"):
			if strings.HasPrefix(rel+"/", p) {
				return true
			}
		default:
			if path.Base(rel) == p || rel == p {
				return true
			}
		}
	}
	return false
}
