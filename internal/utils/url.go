package utils

import (
	"net/url"
	"strings"
)

// IsAbsoluteURL checks if a URL carries a scheme and host
func IsAbsoluteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// IsProtocolRelative checks for URLs of the form //host/path
func IsProtocolRelative(rawURL string) bool {
	return strings.HasPrefix(rawURL, "//")
}

// JoinURLPath joins ref onto base with exactly one slash at the seam.
// Query strings and fragments on ref are kept as-is. Absolute and
// protocol-relative refs are returned unchanged.
func JoinURLPath(base, ref string) string {
	if base == "" {
		return ref
	}
	if ref == "" {
		return base
	}
	if IsAbsoluteURL(ref) || IsProtocolRelative(ref) {
		return ref
	}

	trimmedBase := strings.TrimRight(base, "/")
	trimmedRef := strings.TrimLeft(ref, "/")

	// Bare scheme prefixes such as "https://" keep their slashes
	if strings.HasSuffix(base, "://") {
		return base + trimmedRef
	}
	if trimmedBase == "" {
		return "/" + trimmedRef
	}
	return trimmedBase + "/" + trimmedRef
}
