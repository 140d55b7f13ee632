// Package util holds small helpers shared across packages.
package util

import (
	"math/rand"
	"time"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	idxBits    = 6              // bits needed to index into letters
	idxMask    = 1<<idxBits - 1 // low idxBits set
	idxPerRand = 63 / idxBits   // indices carved out of one Int63
)

var randSrc = rand.NewSource(time.Now().UnixNano())

// RandStr returns n random letters for request IDs and similar tags.
// It slices several indices out of each Int63 call instead of drawing one
// per letter. Not for anything security sensitive.
func RandStr(n int) string {
	b := make([]byte, n)

	cache, remain := randSrc.Int63(), idxPerRand
	for i := 0; i < n; {
		if remain == 0 {
			cache, remain = randSrc.Int63(), idxPerRand
		}

		if idx := int(cache & idxMask); idx < len(letters) {
			b[i] = letters[idx]
			i++
		}

		cache >>= idxBits
		remain--
	}

	return string(b)
}
