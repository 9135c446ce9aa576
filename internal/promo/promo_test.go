package promo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeShape(t *testing.T) {
	g := NewGenerator(42)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := g.Code()
		assert.Len(t, code, 14)
		assert.True(t, Valid(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestSameSeedSameCodes(t *testing.T) {
	a, b := NewGenerator(7), NewGenerator(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Code(), b.Code())
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	for _, code := range []string{"", "ABCD-EFGH", "ACDE-FGHJ-KLM0", "acde-fghj-klmn", "ACDEF-GHJ-KLMN"} {
		assert.False(t, Valid(code), code)
	}
}
