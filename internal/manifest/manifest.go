package manifest

import (
	"fmt"
	"sync"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

// Manifest maps logical asset names to their emitted output references
type Manifest struct {
	opts   Options
	hooks  *Hooks
	assets *Store
	logger *utils.Logger

	compilerPublicPath string
	currentAsset       *domain.Asset
	merging            bool

	warned sync.Map
}

// New validates opts and creates a manifest seeded with opts.Assets
func New(opts Options, logger *utils.Logger) (*Manifest, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	m := &Manifest{
		opts:   opts.normalized(),
		hooks:  NewHooks(),
		logger: logger.WithComponent("manifest"),
	}

	// seed entries skip customization
	m.assets = StoreFromMap(m.opts.Assets)

	m.hooks.Transform.Tap("sort", TransformFunc(m.sortTransform))
	m.tapOptionHooks()

	return m, nil
}

func (m *Manifest) tapOptionHooks() {
	if m.opts.Apply != nil {
		m.hooks.Apply.Tap("options.apply", m.opts.Apply)
	}
	if m.opts.Customize != nil {
		m.hooks.Customize.Tap("options.customize", m.opts.Customize)
	}
	if m.opts.Transform != nil {
		m.hooks.Transform.Tap("options.transform", m.opts.Transform)
	}
	if m.opts.Done != nil {
		m.hooks.Done.Tap("options.done", m.opts.Done)
	}
}

func (m *Manifest) sortTransform(assets *Store, _ *Manifest) *Store {
	if !m.opts.SortManifest {
		return assets
	}
	return assets.Sorted(m.opts.SortFunc)
}

// Hooks returns the extension points of the manifest
func (m *Manifest) Hooks() *Hooks {
	return m.hooks
}

// Options returns a copy of the effective options
func (m *Manifest) Options() Options {
	return m.opts
}

// CurrentAsset returns the asset being recorded, or nil outside of a build
func (m *Manifest) CurrentAsset() *domain.Asset {
	return m.currentAsset
}

// SetCompilerPublicPath records the host's configured public path
func (m *Manifest) SetCompilerPublicPath(publicPath string) {
	if publicPath == "auto" {
		publicPath = ""
	}
	m.compilerPublicPath = publicPath
}

// IsMerging reports whether a merge is in progress
func (m *Manifest) IsMerging() bool {
	return m.merging
}

// Set runs key and value through the customize chain and stores the result.
// It stores nothing when a stage skips the entry.
func (m *Manifest) Set(key string, value any) {
	if m.merging && m.opts.Merge != MergeCustomize {
		m.SetRaw(key, value)
		return
	}

	fixed := FixKey(key)
	resolved := m.PublicPath(value)

	res := m.hooks.runCustomize(HookState{
		Entry:    Entry{Key: fixed, Value: resolved},
		Original: Entry{Key: key, Value: value},
		Manifest: m,
		Asset:    m.currentAsset,
	})

	switch res.outcome {
	case outcomeSkip:
		return
	case outcomeMisuse:
		m.warnOnce(fmt.Sprintf("customize stage %q returned %T; expected an Entry, nil or Skip", res.stage, res.bad))
		m.SetRaw(fixed, resolved)
		return
	}

	entry := res.entry
	if m.opts.Integrity && sameString(entry.Value, resolved) {
		integrity := ""
		if m.currentAsset != nil {
			integrity = m.currentAsset.Info.Integrity
		}
		wrapped := map[string]any{"src": entry.Value}
		wrapped[m.opts.IntegrityPropertyName] = integrity
		entry.Value = wrapped
	}
	m.SetRaw(entry.Key, entry.Value)
}

// SetRaw stores value under key without normalization or customization
func (m *Manifest) SetRaw(key string, value any) {
	m.assets.Set(key, value)
}

// Get returns the value for key, trying the raw key and then its normalized
// form, or def when neither is present
func (m *Manifest) Get(key string, def any) any {
	if v, ok := m.assets.Get(key); ok {
		return v
	}
	if v, ok := m.assets.Get(FixKey(key)); ok {
		return v
	}
	return def
}

// Has reports whether key, raw or normalized, is present
func (m *Manifest) Has(key string) bool {
	return m.assets.Has(key) || m.assets.Has(FixKey(key))
}

// Delete removes key, raw or normalized, and reports whether anything was removed
func (m *Manifest) Delete(key string) bool {
	if m.assets.Delete(key) {
		return true
	}
	return m.assets.Delete(FixKey(key))
}

// Keys returns the stored keys in insertion order
func (m *Manifest) Keys() []string {
	return m.assets.Keys()
}

// Len returns the number of entries
func (m *Manifest) Len() int {
	return m.assets.Len()
}

// Clear removes every entry
func (m *Manifest) Clear() {
	m.assets.Clear()
}

// Assets returns a copy of the entries in insertion order
func (m *Manifest) Assets() *Store {
	return m.assets.Clone()
}

func (m *Manifest) withAsset(asset *domain.Asset, fn func()) {
	prev := m.currentAsset
	m.currentAsset = asset
	defer func() { m.currentAsset = prev }()
	fn()
}

func (m *Manifest) warnOnce(msg string) {
	if _, loaded := m.warned.LoadOrStore(msg, struct{}{}); loaded {
		return
	}
	m.logger.Warn().Msg(msg)
}

func sameString(v any, s any) bool {
	a, ok := v.(string)
	if !ok {
		return false
	}
	b, ok := s.(string)
	return ok && a == b
}
