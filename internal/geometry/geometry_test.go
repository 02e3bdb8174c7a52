package geometry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleGeometry() *KeyboardGeometry {
	return &KeyboardGeometry{
		Name: "test4",
		Keys: []KeyNode{
			{ID: "L0", X: 0, Y: 0, Row: 0, Column: 0, Hand: HandLeft, Finger: FingerIndex},
			{ID: "L1", X: 1, Y: 0, Row: 0, Column: 1, Hand: HandLeft, Finger: FingerMiddle},
			{ID: "R0", X: 0, Y: 0, Row: 0, Column: 2, Hand: HandRight, Finger: FingerIndex},
			{ID: "R1", X: 1, Y: 0, Row: 0, Column: 3, Hand: HandRight, Finger: FingerMiddle},
		},
		PrimeSlots: []int{0, 2},
		MedSlots:   []int{1},
		LowSlots:   []int{3},
		HomeRow:    0,
	}
}

func TestValidateAcceptsDisjointTiers(t *testing.T) {
	g := sampleGeometry()
	require.NoError(t, g.Validate())
}

func TestValidateRejectsOverlappingTiers(t *testing.T) {
	g := sampleGeometry()
	g.MedSlots = append(g.MedSlots, 0) // slot 0 is already PrimeSlots
	require.Error(t, g.Validate())
}

func TestValidateRejectsOutOfBoundsSlot(t *testing.T) {
	g := sampleGeometry()
	g.LowSlots = append(g.LowSlots, 99)
	require.Error(t, g.Validate())
}

func TestTierOf(t *testing.T) {
	g := sampleGeometry()
	require.Equal(t, TierPrime, g.TierOf(0))
	require.Equal(t, TierMed, g.TierOf(1))
	require.Equal(t, TierPrime, g.TierOf(2))
	require.Equal(t, TierLow, g.TierOf(3))
}

func TestTierOfUnassignedSlotIsNone(t *testing.T) {
	g := sampleGeometry()
	g.Keys = append(g.Keys, KeyNode{ID: "R2", Row: 0, Column: 4, Hand: HandRight, Finger: FingerRing})
	require.Equal(t, TierNone, g.TierOf(4))
}

func TestNumSlots(t *testing.T) {
	g := sampleGeometry()
	require.Equal(t, 4, g.NumSlots())
}

func TestPairwiseDistancesSkipsCrossHandPairs(t *testing.T) {
	g := sampleGeometry()
	dists := g.PairwiseDistances()
	_, ok := dists[[2]int{0, 2}] // left vs right hand
	require.False(t, ok)
	_, ok = dists[[2]int{0, 1}] // both left hand
	require.True(t, ok)
}

func TestLoadCostMatrixRejectsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cost.csv"
	require.NoError(t, os.WriteFile(path, []byte("0,1\n1,0\n"), 0o644))

	_, err := LoadCostMatrix("bad", path, 4)
	require.Error(t, err)
	var mismatch *ErrSizeMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestLoadCostMatrixRejectsNonFinite(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cost.csv"
	require.NoError(t, os.WriteFile(path, []byte("0,NaN\n1,0\n"), 0o644))

	_, err := LoadCostMatrix("bad", path, 2)
	require.Error(t, err)
}
