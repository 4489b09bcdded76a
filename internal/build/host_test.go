package build

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/assets-manifest/internal/cache"
	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/lock"
	"github.com/quantmind-br/assets-manifest/internal/manifest"
	"github.com/quantmind-br/assets-manifest/internal/output"
)

type hostFixture struct {
	dir    string
	plugin *manifest.Plugin
	writer *output.Writer
	host   *Host
}

func newHostFixture(t *testing.T, mutate func(*manifest.Options), digests *cache.Digests) *hostFixture {
	t.Helper()
	dir := t.TempDir()

	opts := manifest.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}

	writer := output.NewWriter(output.WriterOptions{BaseDir: dir})
	plugin, err := manifest.NewPlugin(manifest.PluginOptions{
		Options: opts,
		Locker:  lock.New(lock.DefaultOptions()),
		Writer:  writer,
		Getenv:  func(string) string { return "" },
	})
	require.NoError(t, err)
	require.NoError(t, plugin.Apply(domain.CompilerOptions{OutputPath: dir}))

	host, err := NewHost(HostOptions{Plugin: plugin, Writer: writer, Digests: digests, Workers: 2})
	require.NoError(t, err)

	return &hostFixture{dir: dir, plugin: plugin, writer: writer, host: host}
}

func (f *hostFixture) readManifest(t *testing.T, name string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNewHost_Validation(t *testing.T) {
	_, err := NewHost(HostOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	plugin, err := manifest.NewPlugin(manifest.PluginOptions{
		Options: manifest.DefaultOptions(),
		Locker:  lock.New(lock.DefaultOptions()),
		Writer:  output.NewWriter(output.WriterOptions{}),
	})
	require.NoError(t, err)
	_, err = NewHost(HostOptions{Plugin: plugin})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestHost_Run(t *testing.T) {
	f := newHostFixture(t, func(o *manifest.Options) {
		o.PublicPath = "/static/"
		o.Entrypoints = true
	}, nil)
	writeFiles(t, f.dir, map[string]string{
		"main.3f2a9c1d.js":     "console.log(1)",
		"main.3f2a9c1d.js.map": "{}",
		"images/logo.1.png":    "png",
	})

	snap := &Snapshot{
		Compiler: domain.CompilerOptions{OutputPath: f.dir, PublicPath: "/static/"},
		Assets: []domain.Asset{
			{Name: "main.3f2a9c1d.js"},
			{Name: "main.3f2a9c1d.js.map"},
			{Name: "images/logo.1.png", Info: domain.AssetInfo{SourceFilename: "src/images/logo.png"}},
		},
		Chunks:      map[string][]string{"main": {"main.3f2a9c1d.js", "main.3f2a9c1d.js.map"}},
		Entrypoints: []domain.Entrypoint{{Name: "main", Files: []string{"main.3f2a9c1d.js"}}},
	}

	stats, err := f.host.Run(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Assets)
	assert.False(t, stats.HasErrors())
	assert.Equal(t, []string{filepath.Join(f.dir, "assets-manifest.json")}, stats.Emitted)
	assert.Positive(t, stats.Duration)

	got := f.readManifest(t, "assets-manifest.json")
	assert.Equal(t, "/static/main.3f2a9c1d.js", got["main.js"])
	assert.Equal(t, "/static/main.3f2a9c1d.js.map", got["main.js.map"])
	assert.Equal(t, "/static/images/logo.1.png", got["images/logo.png"])
	assert.Equal(t, map[string]any{
		"main": map[string]any{"assets": map[string]any{"js": []any{"/static/main.3f2a9c1d.js"}}},
	}, got["entrypoints"])
}

func TestHost_RunMissingAsset(t *testing.T) {
	f := newHostFixture(t, nil, nil)
	writeFiles(t, f.dir, map[string]string{"a.js": "a"})

	stats, err := f.host.Run(context.Background(), &Snapshot{
		Compiler: domain.CompilerOptions{OutputPath: f.dir},
		Assets:   []domain.Asset{{Name: "a.js"}, {Name: "gone.js"}},
	})
	require.NoError(t, err)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "gone.js")

	got := f.readManifest(t, "assets-manifest.json")
	assert.Equal(t, map[string]any{"a.js": "a.js"}, got)
}

func TestHost_RunIntegrityWithDigestCache(t *testing.T) {
	badger, err := cache.NewBadgerCache(cache.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })
	digests := cache.NewDigests(badger, time.Hour)

	f := newHostFixture(t, func(o *manifest.Options) {
		o.Integrity = true
		o.IntegrityHashes = []string{"sha256"}
	}, digests)
	writeFiles(t, f.dir, map[string]string{"hello.js": "hello"})
	snap := &Snapshot{
		Compiler: domain.CompilerOptions{OutputPath: f.dir},
		Assets:   []domain.Asset{{Name: "hello.js"}},
	}

	_, err = f.host.Run(context.Background(), snap)
	require.NoError(t, err)

	want := map[string]any{"src": "hello.js", "integrity": "sha256-LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ="}
	assert.Equal(t, want, f.readManifest(t, "assets-manifest.json")["hello.js"])

	path := filepath.Join(f.dir, "hello.js")
	info, err := os.Stat(path)
	require.NoError(t, err)
	cached, err := digests.Lookup(context.Background(), path, info.Size(), info.ModTime(), []string{"sha256"})
	require.NoError(t, err)
	assert.Equal(t, want["integrity"], cached)

	// A poisoned cache entry proves the second run reads from the cache
	require.NoError(t, digests.Store(context.Background(), domain.DigestEntry{
		Path: path, Size: info.Size(), ModTime: info.ModTime(),
		Algorithms: []string{"sha256"}, Integrity: "sha256-cached",
	}))
	_, err = f.host.Run(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "sha256-cached", f.readManifest(t, "assets-manifest.json")["hello.js"].(map[string]any)["integrity"])
}

func TestHost_RunChildren(t *testing.T) {
	f := newHostFixture(t, nil, nil)
	writeFiles(t, f.dir, map[string]string{"main.js": "m", "worker.js": "w"})

	snap := &Snapshot{
		Compiler: domain.CompilerOptions{OutputPath: f.dir},
		Assets:   []domain.Asset{{Name: "main.js"}},
		Children: []Snapshot{{
			Name:     "worker",
			Compiler: domain.CompilerOptions{OutputPath: f.dir},
			Assets:   []domain.Asset{{Name: "worker.js"}},
		}},
	}

	stats, err := f.host.Run(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Assets)
	assert.Len(t, stats.Emitted, 1, "emitted once, by the last compilation")
	assert.Equal(t, map[string]any{"main.js": "main.js", "worker.js": "worker.js"}, f.readManifest(t, "assets-manifest.json"))
}

func TestHost_RunProgress(t *testing.T) {
	f := newHostFixture(t, nil, nil)
	writeFiles(t, f.dir, map[string]string{"a.js": "a"})

	var buf bytes.Buffer
	host, err := NewHost(HostOptions{Plugin: f.plugin, Writer: f.writer, Progress: true, ProgressOutput: &buf})
	require.NoError(t, err)

	_, err = host.Run(context.Background(), &Snapshot{
		Compiler: domain.CompilerOptions{OutputPath: f.dir},
		Assets:   []domain.Asset{{Name: "a.js"}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Loading")
}

func TestHost_RunDisabledPlugin(t *testing.T) {
	f := newHostFixture(t, func(o *manifest.Options) { o.Enabled = false }, nil)
	writeFiles(t, f.dir, map[string]string{"a.js": "a"})

	stats, err := f.host.Run(context.Background(), &Snapshot{
		Compiler: domain.CompilerOptions{OutputPath: f.dir},
		Assets:   []domain.Asset{{Name: "a.js"}},
	})
	require.NoError(t, err)
	assert.Empty(t, stats.Emitted)
	assert.NoFileExists(t, filepath.Join(f.dir, "assets-manifest.json"))
}
