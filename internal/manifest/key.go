package manifest

import "strings"

// Normalize canonicalizes a lookup key. Backslashes become forward slashes;
// values that are not strings are returned unchanged.
func Normalize(key any) any {
	if s, ok := key.(string); ok {
		return FixKey(s)
	}
	return key
}

// FixKey replaces every backslash in key with a forward slash
func FixKey(key string) string {
	return strings.ReplaceAll(key, `\`, "/")
}
