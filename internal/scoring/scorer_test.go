package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
)

const testDataDir = "../../testdata"

func loadTestTriple(t *testing.T) (*geometry.KeyboardGeometry, *corpus.Corpus, *kfweights.ScoringWeights) {
	t.Helper()
	geo, err := geometry.LoadGeometry(testDataDir + "/geometries/mini.json")
	require.NoError(t, err)

	loader := corpus.NewLoader(testDataDir)
	alphabet := corpus.DefaultAlphabet(geo.NumSlots())
	c, err := loader.Load("mini", "mini", geo, alphabet, 10)
	require.NoError(t, err)

	w, err := kfweights.LoadWeights(testDataDir+"/weights/mini.txt", "")
	require.NoError(t, err)

	return geo, c, w
}

// TestScoreSubtotalsSumToLayoutScore is spec.md §8's decomposition
// invariant: layout_score equals the sum of the category subtotals plus
// the imbalance penalty.
func TestScoreSubtotalsSumToLayoutScore(t *testing.T) {
	geo, c, w := loadTestTriple(t)
	sc, err := NewScorer(geo, w, c)
	require.NoError(t, err)

	perm, err := NewPermutation([]int{0, 1, 2, 3})
	require.NoError(t, err)

	score, err := sc.Score(perm)
	require.NoError(t, err)

	sum := score.MonogramTotal + score.TierTotal + score.BigramTotal + score.TrigramTotal + score.ImbalancePenalty
	if sum == 0 {
		require.Equal(t, 0.0, score.LayoutScore)
	} else {
		// LayoutScore is sum rounded to 6 significant digits (spec.md §4.2),
		// so compare with a relative tolerance rather than an absolute one.
		require.InEpsilon(t, sum, score.LayoutScore, 1e-4)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	geo, c, w := loadTestTriple(t)
	sc, err := NewScorer(geo, w, c)
	require.NoError(t, err)

	perm, err := NewPermutation([]int{3, 1, 0, 2})
	require.NoError(t, err)

	a, err := sc.Score(perm)
	require.NoError(t, err)
	b, err := sc.Score(perm)
	require.NoError(t, err)
	require.Equal(t, a.LayoutScore, b.LayoutScore)
}

func TestNewScorerRejectsNonFiniteWeights(t *testing.T) {
	geo, c, w := loadTestTriple(t)
	w.PenaltyScissor = math.NaN()

	_, err := NewScorer(geo, w, c)
	require.Error(t, err)
	var nonFinite *ErrNonFinite
	require.ErrorAs(t, err, &nonFinite)
}

func TestScoreDiffersAcrossDistinctLayouts(t *testing.T) {
	geo, c, w := loadTestTriple(t)
	sc, err := NewScorer(geo, w, c)
	require.NoError(t, err)

	a, err := NewPermutation([]int{0, 1, 2, 3})
	require.NoError(t, err)
	b, err := NewPermutation([]int{3, 2, 1, 0})
	require.NoError(t, err)

	scoreA, err := sc.Score(a)
	require.NoError(t, err)
	scoreB, err := sc.Score(b)
	require.NoError(t, err)

	require.NotEqual(t, scoreA.LayoutScore, scoreB.LayoutScore)
}
