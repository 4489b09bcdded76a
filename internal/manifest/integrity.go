package manifest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"slices"
	"strings"
)

var hashers = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// SupportedAlgorithms returns the accepted integrity algorithms
func SupportedAlgorithms() []string {
	return []string{"md5", "sha1", "sha256", "sha384", "sha512"}
}

// NormalizeAlgorithms lower-cases and deduplicates algorithms, keeping the
// first occurrence of each. Unknown algorithms are an error.
func NormalizeAlgorithms(algorithms []string) ([]string, error) {
	out := make([]string, 0, len(algorithms))
	for _, alg := range algorithms {
		alg = strings.ToLower(strings.TrimSpace(alg))
		if _, ok := hashers[alg]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
		}
		if !slices.Contains(out, alg) {
			out = append(out, alg)
		}
	}
	return out, nil
}

// Digest computes the subresource integrity value of content: one
// "<algorithm>-<base64>" token per algorithm, in the given order, joined
// with single spaces
func Digest(content []byte, algorithms []string) (string, error) {
	algs, err := NormalizeAlgorithms(algorithms)
	if err != nil {
		return "", err
	}

	tokens := make([]string, 0, len(algs))
	for _, alg := range algs {
		h := hashers[alg]()
		h.Write(content)
		tokens = append(tokens, alg+"-"+base64.StdEncoding.EncodeToString(h.Sum(nil)))
	}
	return strings.Join(tokens, " "), nil
}
