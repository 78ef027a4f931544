package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	got, err := Generate(PrefixTimeline)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "tl-"))
	// 21-char NanoID plus prefix and dash.
	assert.Len(t, got, len(PrefixTimeline)+1+21)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		got, err := Generate(PrefixSegment)
		require.NoError(t, err)
		assert.False(t, seen[got], "duplicate id %s", got)
		seen[got] = true
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = MustGenerate(PrefixRun)
	})
}
