package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hex16 = regexp.MustCompile(`^[0-9a-f]{16}$`)
	hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)
	hex40 = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

func TestForgeIsDeterministic(t *testing.T) {
	assert.Equal(t, Forge(12345), Forge(12345))
	assert.NotEqual(t, Forge(12345).AndroidID, Forge(12346).AndroidID)
}

func TestForgeFormats(t *testing.T) {
	for _, seed := range []uint64{0, 1, 42, 1 << 63, ^uint64(0)} {
		d := Forge(seed)
		assert.Regexp(t, hex16, d.AndroidID)
		assert.Equal(t, "and"+d.AndroidID, d.UID)
		assert.Regexp(t, hex32, d.Username)
		assert.Regexp(t, hex32, d.Password)
		assert.Regexp(t, hex40, d.APIKey)
		assert.NotEqual(t, d.Username, d.Password)
		assert.Contains(t, d.UserAgent(), d.Model)
	}
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
