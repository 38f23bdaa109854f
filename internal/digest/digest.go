// Package digest provides the content-addressing primitive used for
// evidence, reports and case seals.
package digest

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Size is the length of a hex-encoded digest.
const Size = sha512.Size * 2

// Sum returns the lowercase hex SHA-512 of b. The empty input has a digest
// like any other input.
func Sum(b []byte) string {
	sum := sha512.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// SumString is Sum over the UTF-8 bytes of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Concat digests the direct concatenation of parts, with no separator.
func Concat(parts ...string) string {
	h := sha512.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether s looks like a digest produced by this package.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	return strings.Trim(s, "0123456789abcdef") == ""
}
