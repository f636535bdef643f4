package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const hashFragmentLen = 12

// ContentHash returns the lowercase hex sha256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// normalizeHash strips an optional "sha256:" prefix and lowercases.
func normalizeHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "sha256:")
}

// hashMatches reports whether the declared hash is a prefix of the actual
// one, so shortened stored hashes verify. A declared hash that is empty after
// normalization never matches.
func hashMatches(actual, declared string) bool {
	d := normalizeHash(declared)
	return d != "" && strings.HasPrefix(actual, d)
}

func hashFragment(h string) string {
	if len(h) > hashFragmentLen {
		return h[:hashFragmentLen]
	}
	return h
}
