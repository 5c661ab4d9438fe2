package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash generates a SHA-256 hash of the input string
func Hash(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashURL hashes a URL after trimming surrounding whitespace, so cache keys
// do not depend on how the provider padded the value.
func HashURL(rawURL string) string {
	return Hash(strings.TrimSpace(rawURL))
}
