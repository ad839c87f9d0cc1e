package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomStringUsesAlphabet(t *testing.T) {
	s, err := RandomString(Base36Alphabet, 64)
	require.NoError(t, err)
	assert.Len(t, s, 64)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(Base36Alphabet, r), "unexpected rune %q", r)
	}
}

func TestHashStringIsStable(t *testing.T) {
	assert.Equal(t, HashString("order-1"), HashString("order-1"))
	assert.NotEqual(t, HashString("order-1"), HashString("order-2"))
	assert.Len(t, HashString(""), 64)
}
