package manifest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

type fakeCompilation struct {
	name        string
	options     domain.CompilerOptions
	assets      []*domain.Asset
	byChunk     map[string][]string
	entrypoints []domain.Entrypoint

	emitted map[string][]byte
	infos   map[string]domain.AssetInfo
	emitErr error
}

func newFakeCompilation(opts domain.CompilerOptions, assets ...*domain.Asset) *fakeCompilation {
	return &fakeCompilation{
		name:    "test",
		options: opts,
		assets:  assets,
		byChunk: map[string][]string{},
		emitted: map[string][]byte{},
		infos:   map[string]domain.AssetInfo{},
	}
}

func (c *fakeCompilation) Name() string                           { return c.name }
func (c *fakeCompilation) Options() domain.CompilerOptions        { return c.options }
func (c *fakeCompilation) Assets() []*domain.Asset                { return c.assets }
func (c *fakeCompilation) AssetsByChunkName() map[string][]string { return c.byChunk }
func (c *fakeCompilation) Entrypoints() []domain.Entrypoint       { return c.entrypoints }

func (c *fakeCompilation) EmitAsset(name string, content []byte, info domain.AssetInfo) error {
	if c.emitErr != nil {
		return c.emitErr
	}
	c.emitted[name] = content
	c.infos[name] = info
	return nil
}

type fakeLocker struct {
	mu      sync.Mutex
	locked  []string
	err     error
	holding bool
}

func (l *fakeLocker) WithLock(path string, fn func() error) error {
	return l.WithLockContext(context.Background(), path, func(context.Context) error { return fn() })
}

func (l *fakeLocker) WithLockContext(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.locked = append(l.locked, path)
	l.holding = true
	defer func() { l.holding = false }()
	return fn(ctx)
}

type memWriter struct {
	files   map[string][]byte
	err     error
	locker  *fakeLocker
	underLk bool
}

func newMemWriter() *memWriter {
	return &memWriter{files: map[string][]byte{}}
}

func (w *memWriter) Write(_ context.Context, path string, data []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.locker != nil {
		w.underLk = w.locker.holding
	}
	w.files[path] = data
	return nil
}

func bufferLogger(buf *bytes.Buffer) *utils.Logger {
	return utils.NewLogger(utils.LoggerOptions{
		Level:  "debug",
		Format: "json",
		Output: buf,
	})
}

func newTestManifest(t *testing.T, mutate func(*Options)) *Manifest {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	m, err := New(opts, nil)
	require.NoError(t, err)
	return m
}
