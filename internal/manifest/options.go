package manifest

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/schema"
)

// WriteMode controls whether the manifest is written to the real filesystem
// after the host emits its assets
type WriteMode string

const (
	WriteAlways WriteMode = "always"
	WriteNever  WriteMode = "never"
	// WriteAuto writes only under a dev server, and only when the manifest
	// path lies outside the compiler output directory
	WriteAuto WriteMode = "auto"
)

// MergeMode controls merging with an existing manifest file
type MergeMode string

const (
	MergeOff MergeMode = "off"
	MergeOn  MergeMode = "on"
	// MergeCustomize merges and keeps the customize chain active while doing so
	MergeCustomize MergeMode = "customize"
)

// Defaults
const (
	DefaultOutput                = "assets-manifest.json"
	DefaultSpace                 = 2
	DefaultFileExtRegex          = `(?i)\.\w{2,4}\.(?:map|gz)$|\.\w+$`
	DefaultIntegrityPropertyName = "integrity"
	DefaultEntrypointsKey        = "entrypoints"
	DefaultHotUpdateChunkFile    = "[id].[fullhash].hot-update.js"
	DevServerEnv                 = "WEBPACK_DEV_SERVER"
)

// DefaultIntegrityHashes is the algorithm list used when none is configured
var DefaultIntegrityHashes = []string{"sha256", "sha384", "sha512"}

// Options configures a manifest and its plugin
type Options struct {
	Enabled bool
	// Assets seeds the manifest; entries are inserted without customization
	Assets map[string]any
	// Output is the manifest path, relative to the compiler output path unless absolute
	Output string
	// Replacer limits serialized object keys to this allow-list when non-empty
	Replacer []string
	// ReplacerFunc may rewrite or drop (ok=false) any serialized object member
	ReplacerFunc func(key string, value any) (any, bool)
	// Space is the indentation width; Indent overrides it when set
	Space  int
	Indent string

	WriteToDisk WriteMode
	// FileExtRegex detects file extensions; empty falls back to path.Ext
	FileExtRegex string

	SortManifest bool
	SortFunc     func(a, b string) int

	Merge MergeMode

	PublicPath            string
	UseCompilerPublicPath bool
	PublicPathFunc        func(filename string, m *Manifest) string

	ContextRelativeKeys bool

	Integrity             bool
	IntegrityHashes       []string
	IntegrityPropertyName string

	Entrypoints bool
	// EntrypointsKey groups entrypoints under one key; empty spreads them at the top level
	EntrypointsKey       string
	EntrypointsUseAssets bool

	Apply     ApplyFunc
	Customize CustomizeFunc
	Transform TransformFunc
	Done      DoneFunc
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() Options {
	return Options{
		Enabled:               true,
		Assets:                map[string]any{},
		Output:                DefaultOutput,
		Space:                 DefaultSpace,
		WriteToDisk:           WriteAuto,
		FileExtRegex:          DefaultFileExtRegex,
		SortManifest:          true,
		Merge:                 MergeOff,
		IntegrityHashes:       slices.Clone(DefaultIntegrityHashes),
		IntegrityPropertyName: DefaultIntegrityPropertyName,
		Entrypoints:           false,
		EntrypointsKey:        DefaultEntrypointsKey,
	}
}

// Document renders the serializable options in the shape the options schema
// validates. Function-valued options are not part of it.
func (o Options) Document() map[string]any {
	doc := map[string]any{
		"enabled":                 o.Enabled,
		"output":                  o.Output,
		"space":                   o.Space,
		"sort_manifest":           o.SortManifest,
		"context_relative_keys":   o.ContextRelativeKeys,
		"integrity":               o.Integrity,
		"integrity_hashes":        o.IntegrityHashes,
		"integrity_property_name": o.IntegrityPropertyName,
		"entrypoints":             o.Entrypoints,
		"entrypoints_use_assets":  o.EntrypointsUseAssets,
	}
	if o.Assets != nil {
		doc["assets"] = o.Assets
	} else {
		doc["assets"] = map[string]any{}
	}
	if o.Replacer != nil {
		doc["replacer"] = o.Replacer
	}
	if o.Indent != "" {
		doc["indent"] = o.Indent
	}
	if o.WriteToDisk != "" {
		doc["write_to_disk"] = string(o.WriteToDisk)
	}
	if o.FileExtRegex != "" {
		doc["file_ext_regex"] = o.FileExtRegex
	} else {
		doc["file_ext_regex"] = false
	}
	switch o.Merge {
	case MergeOn:
		doc["merge"] = true
	case MergeCustomize:
		doc["merge"] = string(MergeCustomize)
	case "", MergeOff:
		doc["merge"] = false
	default:
		doc["merge"] = string(o.Merge)
	}
	switch {
	case o.UseCompilerPublicPath:
		doc["public_path"] = true
	case o.PublicPath != "":
		doc["public_path"] = o.PublicPath
	}
	if o.EntrypointsKey != "" {
		doc["entrypoints_key"] = o.EntrypointsKey
	} else {
		doc["entrypoints_key"] = false
	}
	return doc
}

// Validate checks options against the options schema and compiles patterns
func (o Options) Validate() error {
	if err := schema.ValidateOptions(o.Document()); err != nil {
		return toValidationErrors(err)
	}
	if o.FileExtRegex != "" {
		if _, err := regexp.Compile(o.FileExtRegex); err != nil {
			return domain.NewValidationError("file_ext_regex", fmt.Sprintf("%v: %v", ErrInvalidPattern, err))
		}
	}
	if _, err := NormalizeAlgorithms(o.IntegrityHashes); err != nil {
		return domain.NewValidationError("integrity_hashes", err.Error())
	}
	return nil
}

// normalized returns a copy with defaults filled in for empty fields
func (o Options) normalized() Options {
	if o.Output == "" {
		o.Output = DefaultOutput
	}
	if o.WriteToDisk == "" {
		o.WriteToDisk = WriteAuto
	}
	if o.Merge == "" {
		o.Merge = MergeOff
	}
	if o.IntegrityPropertyName == "" {
		o.IntegrityPropertyName = DefaultIntegrityPropertyName
	}
	if len(o.IntegrityHashes) == 0 {
		o.IntegrityHashes = slices.Clone(DefaultIntegrityHashes)
	}
	if algs, err := NormalizeAlgorithms(o.IntegrityHashes); err == nil {
		o.IntegrityHashes = algs
	}
	if o.Assets == nil {
		o.Assets = map[string]any{}
	} else {
		o.Assets = maps.Clone(o.Assets)
	}
	return o
}

func toValidationErrors(err error) error {
	var schemaErrs *schema.Errors
	if !errors.As(err, &schemaErrs) {
		return domain.NewValidationError("options", err.Error())
	}
	errs := make([]error, 0, len(schemaErrs.Items))
	for _, item := range schemaErrs.Items {
		errs = append(errs, domain.NewValidationError(item.Path, item.Message))
	}
	return errors.Join(errs...)
}

// ParseWriteMode accepts the config forms of write_to_disk: a mode name or a boolean
func ParseWriteMode(v any) (WriteMode, error) {
	switch t := v.(type) {
	case nil:
		return WriteAuto, nil
	case bool:
		if t {
			return WriteAlways, nil
		}
		return WriteNever, nil
	case string:
		switch WriteMode(t) {
		case WriteAlways, WriteNever, WriteAuto:
			return WriteMode(t), nil
		case "":
			return WriteAuto, nil
		case "true":
			return WriteAlways, nil
		case "false":
			return WriteNever, nil
		}
	case WriteMode:
		return ParseWriteMode(string(t))
	}
	return "", domain.NewValidationError("write_to_disk", fmt.Sprintf("unsupported value %v", v))
}

// ParseMergeMode accepts the config forms of merge: a boolean or "customize"
func ParseMergeMode(v any) (MergeMode, error) {
	switch t := v.(type) {
	case nil:
		return MergeOff, nil
	case bool:
		if t {
			return MergeOn, nil
		}
		return MergeOff, nil
	case string:
		switch t {
		case "", "false", string(MergeOff):
			return MergeOff, nil
		case "true", string(MergeOn):
			return MergeOn, nil
		case string(MergeCustomize):
			return MergeCustomize, nil
		}
	case MergeMode:
		return ParseMergeMode(string(t))
	}
	return "", domain.NewValidationError("merge", fmt.Sprintf("unsupported value %v", v))
}
