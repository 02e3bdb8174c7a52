package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
	"github.com/keyforge/keyforge/internal/scoring"
)

const testDataDir = "../../testdata"

func loadFixtures(t *testing.T) (*geometry.KeyboardGeometry, *corpus.Corpus, *kfweights.ScoringWeights) {
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

func TestOptimizeRespectsPins(t *testing.T) {
	geo, c, w := loadFixtures(t)
	eIdx, ok := c.CharIndex('e')
	require.True(t, ok)
	pinned := scoring.PinnedKeys{0: eIdx}

	params := DefaultParams(geo.NumSlots() - len(pinned))
	params.SearchEpochs = 3
	params.SearchSteps = 10
	params.MaxRestarts = 1

	engine, err := NewEngine(geo, c, w, pinned, params)
	require.NoError(t, err)

	perm, score, err := engine.Optimize(context.Background(), 42, nil)
	require.NoError(t, err)
	require.NotNil(t, score)
	require.True(t, perm.RespectsPins(pinned))
}

func TestOptimizeIsDeterministicForFixedSeed(t *testing.T) {
	geo, c, w := loadFixtures(t)
	params := DefaultParams(geo.NumSlots())
	params.SearchEpochs = 3
	params.SearchSteps = 10
	params.MaxRestarts = 1

	run := func() (*scoring.Permutation, *scoring.Score) {
		engine, err := NewEngine(geo, c, w, scoring.PinnedKeys{}, params)
		require.NoError(t, err)
		perm, score, err := engine.Optimize(context.Background(), 7, nil)
		require.NoError(t, err)
		return perm, score
	}

	permA, scoreA := run()
	permB, scoreB := run()
	require.Equal(t, permA.Chars, permB.Chars)
	require.Equal(t, scoreA.LayoutScore, scoreB.LayoutScore)
}

func TestOptimizeReportsProgress(t *testing.T) {
	geo, c, w := loadFixtures(t)
	params := DefaultParams(geo.NumSlots())
	params.SearchEpochs = 2
	params.SearchSteps = 5
	params.OptLimitSlow = 1
	params.MaxRestarts = 1

	engine, err := NewEngine(geo, c, w, scoring.PinnedKeys{}, params)
	require.NoError(t, err)

	var updates int
	_, _, err = engine.Optimize(context.Background(), 1, func(p Progress) { updates++ })
	require.NoError(t, err)
	require.Greater(t, updates, 0)
}
