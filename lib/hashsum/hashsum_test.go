package hashsum_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/hashsum"
)

func nameHash(name string) hashsum.Hash {
	return hashsum.Hash(sha256.Sum256([]byte(name)))
}

func TestCombineDeterministic(t *testing.T) {
	a := nameHash("football")
	b := nameHash("team")

	first := hashsum.Combine(a, b)
	second := hashsum.Combine(a, b)

	assert.Equal(t, first, second)
}

func TestCombineNotCommutative(t *testing.T) {
	h := nameHash("football")

	assert.NotEqual(t, hashsum.Combine(hashsum.Zero, h), hashsum.Combine(h, hashsum.Zero))
}

func TestCombineNotAssociative(t *testing.T) {
	a := nameHash("a")
	b := nameHash("b")
	c := nameHash("c")

	left := hashsum.Combine(hashsum.Combine(a, b), c)
	right := hashsum.Combine(a, hashsum.Combine(b, c))

	assert.NotEqual(t, left, right)
}

func TestHexRoundTrip(t *testing.T) {
	h := nameHash("chicago")

	parsed, err := hashsum.FromHex(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestFromHexRejectsBadLength(t *testing.T) {
	_, err := hashsum.FromHex("deadbeef")
	assert.Error(t, err)
}
