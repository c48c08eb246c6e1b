package spantree_test

import (
	"testing"

	"github.com/presbrey/spantree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSIDGeneratorDistinctAndWellFormed(t *testing.T) {
	gen, err := spantree.NewSIDGenerator("70M")
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		sid, err := gen.Next()
		require.NoError(t, err)
		require.Len(t, sid, 3)
		for _, c := range sid {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z'), "sid char %q out of alphabet", c)
		}
		_, dup := seen[sid]
		require.False(t, dup, "SID %q repeated", sid)
		seen[sid] = struct{}{}
	}
}

func TestSIDGeneratorRejectsBadSeed(t *testing.T) {
	_, err := spantree.NewSIDGenerator("7M")
	assert.Error(t, err)

	_, err = spantree.NewSIDGenerator("7m0")
	assert.Error(t, err)
}

func TestSIDGeneratorOverflow(t *testing.T) {
	gen, err := spantree.NewSIDGenerator("ZZY")
	require.NoError(t, err)

	sid, err := gen.Next()
	require.NoError(t, err)
	assert.Equal(t, "ZZZ", sid)

	_, err = gen.Next()
	assert.ErrorIs(t, err, spantree.ErrIdentifierExhausted)
}

func TestUIDGeneratorSequence(t *testing.T) {
	gen := spantree.NewUIDGenerator("70M")

	first, err := gen.Next()
	require.NoError(t, err)
	assert.Equal(t, "70MAAAAAA", first)

	var last string
	for i := 0; i < 25; i++ {
		last, err = gen.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, "70MAAAAAZ", last, "26th UID")

	next, err := gen.Next()
	require.NoError(t, err)
	assert.Equal(t, "70MAAAABA", next, "27th UID")
}

func TestUIDGeneratorDistinct(t *testing.T) {
	gen := spantree.NewUIDGenerator("1AB")
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		uid, err := gen.Next()
		require.NoError(t, err)
		require.Len(t, uid, 9)
		assert.Equal(t, "1AB", uid[:3])
		_, dup := seen[uid]
		require.False(t, dup)
		seen[uid] = struct{}{}
	}
}
