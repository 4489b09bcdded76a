package manifest

import "errors"

// Sentinel errors for the manifest package
var (
	// ErrUnknownAlgorithm indicates an integrity hash algorithm outside the allow-list
	ErrUnknownAlgorithm = errors.New("unsupported integrity hash algorithm")

	// ErrInvalidPattern indicates a regular expression option failed to compile
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrNotApplied indicates a lifecycle method was called before Apply
	ErrNotApplied = errors.New("plugin has not been applied")

	// ErrNotObject indicates persisted manifest data is not a JSON object
	ErrNotObject = errors.New("manifest data is not a JSON object")

	// ErrMalformed indicates persisted manifest data is not a single valid JSON value
	ErrMalformed = errors.New("manifest data is malformed")
)
