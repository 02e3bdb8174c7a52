package kfweights

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFromStringAppliesKnownKnobs(t *testing.T) {
	w := DefaultWeights()
	err := w.AddFromString("penalty_scissor=-9.5,bonus_inward_roll=2.0")
	require.NoError(t, err)
	require.Equal(t, -9.5, w.PenaltyScissor)
	require.Equal(t, 2.0, w.BonusInwardRoll)
}

func TestAddFromStringIsCaseInsensitiveAndTrimsSpace(t *testing.T) {
	w := DefaultWeights()
	err := w.AddFromString(" PENALTY_SCISSOR = -3.0 , Bonus_Inward_Roll = 1.5 ")
	require.NoError(t, err)
	require.Equal(t, -3.0, w.PenaltyScissor)
	require.Equal(t, 1.5, w.BonusInwardRoll)
}

func TestAddFromStringRejectsUnknownKnob(t *testing.T) {
	w := DefaultWeights()
	err := w.AddFromString("not_a_real_knob=1.0")
	require.Error(t, err)
}

func TestAddFromStringRejectsNonFloatForNumericKnob(t *testing.T) {
	w := DefaultWeights()
	err := w.AddFromString("penalty_scissor=not-a-number")
	require.Error(t, err)
}

func TestAddFromStringSetsStringKnobsDirectly(t *testing.T) {
	w := DefaultWeights()
	err := w.AddFromString("finger_penalty_scale=aggressive")
	require.NoError(t, err)
	require.Equal(t, "aggressive", w.FingerPenaltyScale)
}

func TestAddFromStringEmptyIsNoop(t *testing.T) {
	w := DefaultWeights()
	before := *w
	require.NoError(t, w.AddFromString(""))
	require.Equal(t, before, *w)
}
