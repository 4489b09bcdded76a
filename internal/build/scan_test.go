package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/assets-manifest/internal/domain"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestChunkName(t *testing.T) {
	tests := []struct {
		rel   string
		chunk string
		ok    bool
	}{
		{"main.3f2a9c1d.js", "main", true},
		{"js/vendor-0123456789abcdef.js", "js/vendor", true},
		{"main.3f2a9c1d.js.map", "main", true},
		{"css/app.deadbeef.min.css", "css/app", true},
		{"favicon.ico", "", false},
		{"short.abc.js", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			chunk, ok := chunkName(tt.rel)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.chunk, chunk)
		})
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.3f2a9c1d.js":          "main",
		"main.3f2a9c1d.js.map":      "map",
		"css/app.deadbeef.css":      "body{}",
		"favicon.ico":               "ico",
		"assets-manifest.json.lock": "",
		"reports/stats.html":        "<html>",
	})

	snap, err := Scan(context.Background(), dir, ScanOptions{
		Exclude:    []string{"reports/"},
		PublicPath: "/static/",
	})
	require.NoError(t, err)

	names := make([]string, 0, len(snap.Assets))
	for _, a := range snap.Assets {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"main.3f2a9c1d.js", "main.3f2a9c1d.js.map", "css/app.deadbeef.css", "favicon.ico"}, names)
	assert.ElementsMatch(t, []string{"main.3f2a9c1d.js", "main.3f2a9c1d.js.map"}, snap.Chunks["main"])
	assert.Equal(t, []string{"css/app.deadbeef.css"}, snap.Chunks["css/app"])
	assert.Equal(t, "/static/", snap.Compiler.PublicPath)
	assert.True(t, filepath.IsAbs(snap.Compiler.OutputPath))
	require.NoError(t, snap.Validate())
}

func TestScan_Include(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.js":         "a",
		"nested/b.js":  "b",
		"nested/c.css": "c",
	})

	snap, err := Scan(context.Background(), dir, ScanOptions{Include: []string{"**/*.js"}})
	require.NoError(t, err)
	require.Len(t, snap.Assets, 2)
	assert.Nil(t, snap.Chunks)
}

func TestScan_Errors(t *testing.T) {
	t.Run("invalid pattern", func(t *testing.T) {
		_, err := Scan(context.Background(), t.TempDir(), ScanOptions{Include: []string{"[a-"}})
		assert.ErrorIs(t, err, domain.ErrInvalidOptions)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), ScanOptions{})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"a.js": "a"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Scan(ctx, dir, ScanOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
