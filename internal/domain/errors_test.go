package domain

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSentinelErrors verifies sentinel errors are defined
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check string
	}{
		{"ErrInvalidOptions", ErrInvalidOptions, "invalid manifest options"},
		{"ErrCacheMiss", ErrCacheMiss, "cache miss"},
		{"ErrWriteFailed", ErrWriteFailed, "write failed"},
		{"ErrSnapshotNotFound", ErrSnapshotNotFound, "not found"},
		{"ErrInvalidSnapshot", ErrInvalidSnapshot, "valid YAML or JSON"},
		{"ErrUnsupportedExt", ErrUnsupportedExt, "unsupported file extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.Contains(t, tt.err.Error(), tt.check)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("integrity_hashes.0", "must be one of md5, sha1")

	assert.Equal(t, "integrity_hashes.0", err.Field)
	assert.Contains(t, err.Error(), "integrity_hashes.0")
	assert.Contains(t, err.Error(), "must be one of")
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	var target *ValidationError
	assert.True(t, errors.As(error(err), &target))
}

func TestWriteError(t *testing.T) {
	err := NewWriteError("/tmp/out/assets-manifest.json", os.ErrPermission)

	assert.Contains(t, err.Error(), "/tmp/out/assets-manifest.json")
	assert.Contains(t, err.Error(), "write failed")
	assert.True(t, errors.Is(err, ErrWriteFailed))
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestStats_HasErrors(t *testing.T) {
	var nilStats *Stats
	assert.False(t, nilStats.HasErrors())
	assert.False(t, (&Stats{}).HasErrors())
	assert.True(t, (&Stats{Errors: []string{"boom"}}).HasErrors())
}
