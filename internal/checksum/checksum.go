// Package checksum computes note content hashes used for sync no-op
// detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString returns the hex-encoded SHA-256 digest of s.
func SumString(s string) string {
	return Sum([]byte(s))
}
