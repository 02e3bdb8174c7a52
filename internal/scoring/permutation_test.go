package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalStringRoundTrip(t *testing.T) {
	alphabet := []rune("etaoinshrdlcu")
	chars := make([]int, len(alphabet))
	for i := range chars {
		chars[i] = (i*7 + 3) % len(alphabet) // an arbitrary but fixed permutation
	}
	perm, err := NewPermutation(chars)
	require.NoError(t, err)

	s := perm.CanonicalString(alphabet)
	got, err := ParsePermutation(s, alphabet)
	require.NoError(t, err)
	require.Equal(t, perm.Chars, got.Chars)
	require.Equal(t, perm.Pos, got.Pos)
}

func TestParsePermutationRejectsWrongTokenCount(t *testing.T) {
	alphabet := []rune("etao")
	_, err := ParsePermutation("e t a", alphabet)
	require.Error(t, err)
}

func TestParsePermutationRejectsUnknownToken(t *testing.T) {
	alphabet := []rune("etao")
	_, err := ParsePermutation("e t a KC_!", alphabet)
	require.Error(t, err)
}

func TestNewPermutationRejectsNonBijection(t *testing.T) {
	_, err := NewPermutation([]int{0, 0, 1, 2})
	require.Error(t, err)
}

func TestSwapMaintainsInverse(t *testing.T) {
	perm, err := NewPermutation([]int{0, 1, 2, 3})
	require.NoError(t, err)

	perm.Swap(1, 3)
	require.Equal(t, []int{0, 3, 2, 1}, perm.Chars)
	for slot, c := range perm.Chars {
		require.Equal(t, slot, perm.Pos[c])
	}
}

func TestRespectsPins(t *testing.T) {
	perm, err := NewPermutation([]int{0, 1, 2, 3})
	require.NoError(t, err)

	pinned := PinnedKeys{0: 0, 2: 2}
	require.True(t, perm.RespectsPins(pinned))

	perm.Swap(0, 1)
	require.False(t, perm.RespectsPins(pinned))
}

func TestPinnedKeysValidateRejectsCollision(t *testing.T) {
	pinned := PinnedKeys{0: 5, 1: 5}
	require.Error(t, pinned.Validate())
}
