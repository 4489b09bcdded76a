package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/assets-manifest/internal/config"
	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/manifest"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func newTestOrchestrator(t *testing.T, mutate func(*config.Config), opts OrchestratorOptions) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Directory = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	opts.Config = cfg
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.Getenv == nil {
		opts.Getenv = func(string) string { return "" }
	}

	o, err := NewOrchestrator(opts)
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestNewOrchestrator(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewOrchestrator(OrchestratorOptions{})
		assert.Error(t, err)
	})

	t.Run("invalid manifest config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Manifest.Merge = "sometimes"
		_, err := NewOrchestrator(OrchestratorOptions{Config: cfg, Logger: utils.NewNopLogger()})
		assert.ErrorIs(t, err, domain.ErrInvalidOptions)
	})

	t.Run("opens digest cache only with integrity", func(t *testing.T) {
		o := newTestOrchestrator(t, nil, OrchestratorOptions{})
		assert.Nil(t, o.cache)

		o = newTestOrchestrator(t, func(c *config.Config) { c.Manifest.Integrity = true }, OrchestratorOptions{})
		assert.NotNil(t, o.cache)
	})
}

func TestOrchestrator_RunSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dist", "main.abc12345.js"), "main")
	writeFile(t, filepath.Join(dir, "dist", "img", "logo.1.png"), "png")
	snapshot := filepath.Join(dir, "build.yaml")
	writeFile(t, snapshot, `
compiler:
  outputPath: dist
  publicPath: /assets/
assets:
  - name: main.abc12345.js
  - name: img/logo.1.png
    info:
      sourceFilename: src/img/logo.png
chunks:
  main: [main.abc12345.js]
`)

	o := newTestOrchestrator(t, func(c *config.Config) {
		c.Manifest.PublicPath = true
	}, OrchestratorOptions{})

	stats, err := o.Run(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Assets)

	manifestPath := filepath.Join(dir, "dist", "assets-manifest.json")
	assert.Equal(t, map[string]any{
		"img/logo.png": "/assets/img/logo.1.png",
		"main.js":      "/assets/main.abc12345.js",
	}, readJSON(t, manifestPath))
	assert.Equal(t, manifestPath, o.Plugin().OutputPath())
	assert.Equal(t, []string{manifestPath}, o.Written())
}

func TestOrchestrator_RunDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.0123abcd.js"), "app")
	writeFile(t, filepath.Join(dir, "app.0123abcd.css"), "css")

	o := newTestOrchestrator(t, func(c *config.Config) {
		c.Manifest.Output = "manifest.json"
		c.Build.PublicPath = "https://cdn.example.com/"
		c.Manifest.PublicPath = true
	}, OrchestratorOptions{})

	_, err := o.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"app.css": "https://cdn.example.com/app.0123abcd.css",
		"app.js":  "https://cdn.example.com/app.0123abcd.js",
	}, readJSON(t, filepath.Join(dir, "manifest.json")))

	// A second scan must not pick up the manifest it wrote as an asset
	_, err = o.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.NotContains(t, readJSON(t, filepath.Join(dir, "manifest.json")), "manifest.json")
}

func TestOrchestrator_RunErrors(t *testing.T) {
	o := newTestOrchestrator(t, nil, OrchestratorOptions{})
	dir := t.TempDir()

	_, err := o.Run(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	_, err = o.Run(context.Background(), filepath.Join(dir, "build.toml"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedExt)
}

func TestOrchestrator_RunAllAccumulates(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "dist")
	writeFile(t, filepath.Join(out, "a.js"), "a")
	writeFile(t, filepath.Join(out, "b.js"), "b")
	writeFile(t, filepath.Join(dir, "one.json"), `{"compiler":{"outputPath":"dist"},"assets":[{"name":"a.js"}]}`)
	writeFile(t, filepath.Join(dir, "two.json"), `{"compiler":{"outputPath":"dist"},"assets":[{"name":"b.js"}]}`)

	o := newTestOrchestrator(t, nil, OrchestratorOptions{})
	results, err := o.RunAll(context.Background(), []string{
		filepath.Join(dir, "one.json"),
		filepath.Join(dir, "two.json"),
	}, false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, map[string]any{"a.js": "a.js", "b.js": "b.js"}, readJSON(t, filepath.Join(out, "assets-manifest.json")))
	assert.Equal(t, []string{"a.js", "b.js"}, o.Manifest().Keys())
}

func TestOrchestrator_RunAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dist", "a.js"), "a")
	good := filepath.Join(dir, "good.json")
	writeFile(t, good, `{"compiler":{"outputPath":"dist"},"assets":[{"name":"a.js"}]}`)
	bad := filepath.Join(dir, "bad.json")

	t.Run("stops at first failure", func(t *testing.T) {
		o := newTestOrchestrator(t, nil, OrchestratorOptions{})
		results, err := o.RunAll(context.Background(), []string{bad, good}, false)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
		assert.Len(t, results, 1)
	})

	t.Run("continue on error", func(t *testing.T) {
		o := newTestOrchestrator(t, nil, OrchestratorOptions{})
		results, err := o.RunAll(context.Background(), []string{bad, good}, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1/2 builds failed")
		require.Len(t, results, 2)
		assert.NoError(t, results[1].Error)
	})
}

func TestOrchestrator_Configure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.js"), "a")
	writeFile(t, filepath.Join(dir, "a.js.map"), "{}")

	o := newTestOrchestrator(t, nil, OrchestratorOptions{
		Configure: func(opts *manifest.Options) {
			opts.Customize = func(entry, _ manifest.Entry, _ *manifest.Manifest, _ *domain.Asset) any {
				if filepath.Ext(entry.Key) == ".map" {
					return manifest.Skip
				}
				return nil
			}
		},
	})

	_, err := o.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js"}, o.Manifest().Keys())
}

func TestOrchestrator_DevServerWrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dist", "a.js"), "a")
	writeFile(t, filepath.Join(dir, "build.json"), `{"compiler":{"outputPath":"dist"},"assets":[{"name":"a.js"}]}`)
	target := filepath.Join(dir, "public", "manifest.json")

	o := newTestOrchestrator(t, func(c *config.Config) {
		c.Manifest.Output = target
		c.Build.DevServer = true
	}, OrchestratorOptions{})

	_, err := o.Run(context.Background(), filepath.Join(dir, "build.json"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a.js": "a.js"}, readJSON(t, target))
}

func TestDevServerEnv(t *testing.T) {
	base := func(key string) string { return "base-" + key }

	assert.Equal(t, "base-"+manifest.DevServerEnv, devServerEnv(base, false)(manifest.DevServerEnv))
	assert.Equal(t, "true", devServerEnv(base, true)(manifest.DevServerEnv))
	assert.Equal(t, "base-HOME", devServerEnv(base, true)("HOME"))
}
