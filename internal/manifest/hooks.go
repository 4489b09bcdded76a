package manifest

import (
	"context"
	"slices"

	"github.com/quantmind-br/assets-manifest/internal/domain"
)

// Entry is a manifest key/value pair moving through the customize chain
type Entry struct {
	Key   string
	Value any
}

type skipSignal struct{}

// Skip vetoes an entry when returned from a Customizer
var Skip any = skipSignal{}

// Customizer revises manifest entries before they are stored.
//
// Customize returns one of:
//   - nil to leave the candidate unchanged,
//   - Skip (or false) to drop the entry,
//   - an Entry or *Entry to revise it; an empty Key or nil Value keeps the
//     candidate's field.
//
// Any other return value is treated as a mistake: a warning is logged once
// and the candidate is stored as it was before the chain ran.
type Customizer interface {
	Customize(entry, original Entry, m *Manifest, asset *domain.Asset) any
}

// Transformer rewrites the full entry set before serialization.
// Returning nil leaves the set unchanged.
type Transformer interface {
	Transform(assets *Store, m *Manifest) *Store
}

// Applier is notified once the plugin is applied
type Applier interface {
	Apply(m *Manifest)
}

// Doner runs after the build completes. Stages run in series and the first
// error stops the series.
type Doner interface {
	Done(ctx context.Context, m *Manifest, stats *domain.Stats) error
}

// OptionsTransformer rewrites plugin options at apply time
type OptionsTransformer interface {
	Options(opts Options) Options
}

// AfterOptionser is notified with the final options
type AfterOptionser interface {
	AfterOptions(opts Options)
}

// CustomizeFunc adapts a function to Customizer
type CustomizeFunc func(entry, original Entry, m *Manifest, asset *domain.Asset) any

func (f CustomizeFunc) Customize(entry, original Entry, m *Manifest, asset *domain.Asset) any {
	return f(entry, original, m, asset)
}

// TransformFunc adapts a function to Transformer
type TransformFunc func(assets *Store, m *Manifest) *Store

func (f TransformFunc) Transform(assets *Store, m *Manifest) *Store {
	return f(assets, m)
}

// ApplyFunc adapts a function to Applier
type ApplyFunc func(m *Manifest)

func (f ApplyFunc) Apply(m *Manifest) {
	f(m)
}

// DoneFunc adapts a function to Doner
type DoneFunc func(ctx context.Context, m *Manifest, stats *domain.Stats) error

func (f DoneFunc) Done(ctx context.Context, m *Manifest, stats *domain.Stats) error {
	return f(ctx, m, stats)
}

// OptionsFunc adapts a function to OptionsTransformer
type OptionsFunc func(opts Options) Options

func (f OptionsFunc) Options(opts Options) Options {
	return f(opts)
}

// AfterOptionsFunc adapts a function to AfterOptionser
type AfterOptionsFunc func(opts Options)

func (f AfterOptionsFunc) AfterOptions(opts Options) {
	f(opts)
}

// Stage is a named registration on a hook point
type Stage[S any] struct {
	Name  string
	Stage S
}

// HookPoint is an ordered list of named stages. The same name may be
// registered more than once; stages run in registration order.
type HookPoint[S any] struct {
	name   string
	stages []Stage[S]
}

// NewHookPoint creates an empty hook point
func NewHookPoint[S any](name string) *HookPoint[S] {
	return &HookPoint[S]{name: name}
}

// Name returns the hook point name
func (h *HookPoint[S]) Name() string {
	return h.name
}

// Tap appends a stage
func (h *HookPoint[S]) Tap(name string, stage S) {
	h.stages = append(h.stages, Stage[S]{Name: name, Stage: stage})
}

// Stages returns a copy of the registered stages
func (h *HookPoint[S]) Stages() []Stage[S] {
	return slices.Clone(h.stages)
}

// Len returns the number of registered stages
func (h *HookPoint[S]) Len() int {
	return len(h.stages)
}

// Hooks groups every extension point of a manifest
type Hooks struct {
	Apply        *HookPoint[Applier]
	Customize    *HookPoint[Customizer]
	Transform    *HookPoint[Transformer]
	Done         *HookPoint[Doner]
	Options      *HookPoint[OptionsTransformer]
	AfterOptions *HookPoint[AfterOptionser]
}

// NewHooks creates an empty hook set
func NewHooks() *Hooks {
	return &Hooks{
		Apply:        NewHookPoint[Applier]("apply"),
		Customize:    NewHookPoint[Customizer]("customize"),
		Transform:    NewHookPoint[Transformer]("transform"),
		Done:         NewHookPoint[Doner]("done"),
		Options:      NewHookPoint[OptionsTransformer]("options"),
		AfterOptions: NewHookPoint[AfterOptionser]("afterOptions"),
	}
}

// HookState is the context threaded through the customize chain
type HookState struct {
	Entry    Entry
	Original Entry
	Manifest *Manifest
	Asset    *domain.Asset
}

type customizeOutcome int

const (
	outcomeEntry customizeOutcome = iota
	outcomeSkip
	outcomeMisuse
)

// customizeResult is what the customize chain settled on
type customizeResult struct {
	entry   Entry
	outcome customizeOutcome
	stage   string
	bad     any
}

func (h *Hooks) runCustomize(state HookState) customizeResult {
	entry := state.Entry
	for _, st := range h.Customize.stages {
		res := st.Stage.Customize(entry, state.Original, state.Manifest, state.Asset)
		switch v := res.(type) {
		case nil:
			continue
		case skipSignal:
			return customizeResult{entry: entry, outcome: outcomeSkip, stage: st.Name}
		case bool:
			if !v {
				return customizeResult{entry: entry, outcome: outcomeSkip, stage: st.Name}
			}
			return customizeResult{entry: state.Entry, outcome: outcomeMisuse, stage: st.Name, bad: res}
		case Entry:
			entry = reviseEntry(entry, v)
		case *Entry:
			if v != nil {
				entry = reviseEntry(entry, *v)
			}
		default:
			return customizeResult{entry: state.Entry, outcome: outcomeMisuse, stage: st.Name, bad: res}
		}
	}
	return customizeResult{entry: entry, outcome: outcomeEntry}
}

func reviseEntry(current, revision Entry) Entry {
	if revision.Key != "" {
		current.Key = revision.Key
	}
	if revision.Value != nil {
		current.Value = revision.Value
	}
	return current
}

func (h *Hooks) runTransform(assets *Store, m *Manifest) *Store {
	for _, st := range h.Transform.stages {
		if next := st.Stage.Transform(assets, m); next != nil {
			assets = next
		}
	}
	return assets
}

func (h *Hooks) runApply(m *Manifest) {
	for _, st := range h.Apply.stages {
		st.Stage.Apply(m)
	}
}

func (h *Hooks) runDone(ctx context.Context, m *Manifest, stats *domain.Stats) error {
	for _, st := range h.Done.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.Stage.Done(ctx, m, stats); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runOptions(opts Options) Options {
	for _, st := range h.Options.stages {
		opts = st.Stage.Options(opts)
	}
	return opts
}

func (h *Hooks) runAfterOptions(opts Options) {
	for _, st := range h.AfterOptions.stages {
		st.Stage.AfterOptions(opts)
	}
}
