package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// ETag returns a strong entity tag for content, quotes included.
func ETag(content string) string {
	hasher := sha1.New()
	hasher.Write([]byte(content))

	return `"` + hex.EncodeToString(hasher.Sum(nil)) + `"`
}

// MatchETag reports whether an If-None-Match header value matches etag.
func MatchETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}

	return false
}
