package jobid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleDescription() Description {
	return Description{
		Keyboard: Object{
			"name": "ansi60",
			"keys": Array{"q", "w", "e"},
		},
		Weights: Object{
			"penalty_sfb": -8.5,
			"bonus_roll":  1.25,
		},
		Params:         Object{"epochs": 500.0},
		PinnedKeys:     Object{},
		CorpusName:     "english",
		CostMatrixName: "default",
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	d := sampleDescription()
	id1, _, err := Compute(d)
	require.NoError(t, err)
	id2, _, err := Compute(d)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

// TestComputeIgnoresKeyOrder is spec.md's job-dedup invariant: two
// Descriptions that differ only in object-key order hash to the same id.
func TestComputeIgnoresKeyOrder(t *testing.T) {
	a := Description{
		Keyboard:       Object{"name": "ansi60", "keys": Array{"q", "w"}},
		Weights:        Object{"penalty_sfb": -8.5, "bonus_roll": 1.25},
		Params:         Object{"epochs": 500.0},
		PinnedKeys:     Object{},
		CorpusName:     "english",
		CostMatrixName: "default",
	}
	b := Description{
		Keyboard:       Object{"keys": Array{"q", "w"}, "name": "ansi60"},
		Weights:        Object{"bonus_roll": 1.25, "penalty_sfb": -8.5},
		Params:         Object{"epochs": 500.0},
		PinnedKeys:     Object{},
		CorpusName:     "english",
		CostMatrixName: "default",
	}

	idA, _, err := Compute(a)
	require.NoError(t, err)
	idB, _, err := Compute(b)
	require.NoError(t, err)
	require.Equal(t, idA, idB)
}

func TestComputeDistinguishesContent(t *testing.T) {
	a := sampleDescription()
	b := sampleDescription()
	b.CorpusName = "spanish"

	idA, _, err := Compute(a)
	require.NoError(t, err)
	idB, _, err := Compute(b)
	require.NoError(t, err)
	require.NotEqual(t, idA, idB)
}

func TestVerify(t *testing.T) {
	d := sampleDescription()
	id, _, err := Compute(d)
	require.NoError(t, err)

	ok, err := Verify(d, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify(d, JobId("not-the-right-hash"))
	require.NoError(t, err)
	require.False(t, ok)
}
