// Package promo generates the random promocodes handed out by /promo.
package promo

import (
	"math/rand/v2"
	"strings"
)

// Alphabet omits characters that are easy to misread on a receipt.
const Alphabet = "ACDEFGHJKLMNPQRTUVWXY345679"

const (
	groups    = 3
	groupSize = 4
)

// Generator draws codes from its own random source.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator seeds a generator. Equal seeds yield equal code sequences.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x5bd1e995))}
}

// Code returns a code such as "K7QX-3MHA-9TCE".
func (g *Generator) Code() string {
	var b strings.Builder
	b.Grow(groups*groupSize + groups - 1)
	for i := 0; i < groups; i++ {
		if i > 0 {
			b.WriteByte('-')
		}
		for j := 0; j < groupSize; j++ {
			b.WriteByte(Alphabet[g.rnd.IntN(len(Alphabet))])
		}
	}
	return b.String()
}

// Valid reports whether code has the shape produced by Code.
func Valid(code string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != groups {
		return false
	}
	for _, p := range parts {
		if len(p) != groupSize {
			return false
		}
		for i := 0; i < len(p); i++ {
			if strings.IndexByte(Alphabet, p[i]) < 0 {
				return false
			}
		}
	}
	return true
}
