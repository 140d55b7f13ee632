package util

import (
	"crypto/rand"
	"math/big"
)

const digits = "0123456789"

// NumericCode generates a short numeric join code. Codes are drawn from a
// deliberately small space, so callers must check for collisions with other
// active sessions and retry.
func NumericCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		b[i] = digits[idx.Int64()]
	}
	return string(b)
}
