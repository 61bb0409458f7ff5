package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// ContentHash returns the hex SHA-256 of the concatenated parts, each prefixed by its length
// so that ("ab","c") and ("a","bc") hash differently.
//
// Parameters:
//   - parts: the strings to hash
//
// Returns:
//   - string: hex digest
func ContentHash(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DivCeil returns ceil(n / d) for positive d.
func DivCeil(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
