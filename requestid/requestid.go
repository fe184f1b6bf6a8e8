// Package requestid generates opaque per-request identifiers used for
// ExtAuthz attribute bundles (§4.6) and log correlation. Grounded on
// skipper's filters/flowid standard generator: a fixed alphabet indexed
// by 6-bit chunks of random 64-bit reads (one read per ten characters),
// rather than a third-party uuid
// dependency the teacher itself doesn't need for this purpose.
package requestid

import (
	"fmt"
	"math/rand/v2"
)

const (
	alphabet        = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-+"
	alphabetBitMask = 63
	defaultLength   = 16
	minLength       = 8
	maxLength       = 64
)

// ErrInvalidLength is returned by NewGenerator for a length outside
// [minLength, maxLength].
var ErrInvalidLength = fmt.Errorf("invalid request id length, must be between %d and %d", minLength, maxLength)

// Generator produces opaque request identifiers. It is safe for concurrent
// use.
type Generator struct {
	length int
}

// NewGenerator constructs a Generator producing ids of length l.
func NewGenerator(l int) (*Generator, error) {
	if l < minLength || l > maxLength {
		return nil, ErrInvalidLength
	}
	return &Generator{length: l}, nil
}

// Default returns a Generator using the teacher-derived default length.
func Default() *Generator {
	g, _ := NewGenerator(defaultLength)
	return g
}

// Generate returns a new opaque id.
func (g *Generator) Generate() string {
	u := make([]byte, g.length)
	for i := 0; i < g.length; i += 10 {
		b := rand.Int64()
		for e := 0; e < 10 && i+e < g.length; e++ {
			c := byte(b>>uint(6*e)) & alphabetBitMask
			u[i+e] = alphabet[c]
		}
	}
	return string(u)
}
