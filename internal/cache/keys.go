package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PrefixDigest namespaces integrity digest entries
const PrefixDigest = "digest"

// GenerateKey hashes the given parts into a stable hex key
func GenerateKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}

// GenerateKeyWithPrefix generates a cache key with a prefix
func GenerateKeyWithPrefix(prefix string, parts ...string) string {
	return prefix + ":" + GenerateKey(parts...)
}

// DigestKey identifies a digest by file identity and algorithm list. Any
// change to size, modification time or algorithms yields a new key.
func DigestKey(path string, size int64, modTime time.Time, algorithms []string) string {
	return GenerateKeyWithPrefix(PrefixDigest,
		filepath.ToSlash(filepath.Clean(path)),
		strconv.FormatInt(size, 10),
		strconv.FormatInt(modTime.UnixNano(), 10),
		strings.Join(algorithms, " "),
	)
}
