package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
)

const topNLimit = 10

// ErrNonFinite is returned when an input to Score contains NaN or Inf, per
// spec.md §4.2's "reject NaN/Inf inputs up-front" rule.
type ErrNonFinite struct {
	Where string
}

func (e *ErrNonFinite) Error() string {
	return fmt.Sprintf("non-finite value encountered in %s", e.Where)
}

// Scorer evaluates layouts against a fixed (corpus, weights, geometry)
// triple. It is stateless and safe for concurrent use by multiple
// goroutines scoring different permutations.
type Scorer struct {
	corpus  *corpus.Corpus
	weights *kfweights.ScoringWeights
	geo     *geometry.KeyboardGeometry

	slots        []slotInfo
	fingerEffort [2][5]float64
	comfortable  map[kfweights.ScissorKey]bool

	homeY       float64
	bottomRow   int
	centerCol   [2]float64 // per-hand center column, for inward/outward classification

	highBand, medBand map[int]bool // character-index bands from frequency rank
}

// NewScorer builds a Scorer for a fixed (geometry, weights, corpus)
// triple, precomputing the tables the hot loop needs.
func NewScorer(geo *geometry.KeyboardGeometry, w *kfweights.ScoringWeights, c *corpus.Corpus) (*Scorer, error) {
	if err := checkFiniteWeights(w); err != nil {
		return nil, err
	}

	fingerEffort, err := kfweights.ResolveFingerEffort(w.FingerPenaltyScale)
	if err != nil {
		return nil, err
	}
	comfortable, err := kfweights.ResolveComfortableScissors(w.ComfortableScissors)
	if err != nil {
		return nil, err
	}

	slots := buildSlotInfo(geo)

	var homeYSum float64
	var homeCount int
	bottomRow := 0
	var leftSum, rightSum [2]float64
	var leftCnt, rightCnt int
	for i, s := range slots {
		if geo.Keys[i].Row == geo.HomeRow {
			homeYSum += s.y
			homeCount++
		}
		if s.row > bottomRow {
			bottomRow = s.row
		}
		if s.hand == geometry.HandLeft && s.finger == geometry.FingerIndex {
			leftSum[0] += float64(s.col)
			leftCnt++
		}
		if s.hand == geometry.HandRight && s.finger == geometry.FingerIndex {
			rightSum[0] += float64(s.col)
			rightCnt++
		}
	}
	homeY := 0.0
	if homeCount > 0 {
		homeY = homeYSum / float64(homeCount)
	}
	center := [2]float64{}
	if leftCnt > 0 {
		center[0] = leftSum[0] / float64(leftCnt)
	}
	if rightCnt > 0 {
		center[1] = rightSum[0] / float64(rightCnt)
	}

	highBand, medBand := rankCharacterBands(c.Freq1, len(geo.PrimeSlots), len(geo.MedSlots))

	return &Scorer{
		corpus:       c,
		weights:      w,
		geo:          geo,
		slots:        slots,
		fingerEffort: *fingerEffort,
		comfortable:  comfortable,
		homeY:        homeY,
		bottomRow:    bottomRow,
		centerCol:    center,
		highBand:     highBand,
		medBand:      medBand,
	}, nil
}

// checkFiniteWeights rejects NaN/Inf scoring weights up front.
func checkFiniteWeights(w *kfweights.ScoringWeights) error {
	vals := []float64{
		w.WeightFingerEffort, w.WeightVerticalTravel, w.WeightLateralTravel,
		w.PenaltyImbalance, w.MaxHandImbalance,
		w.PenaltyTierHighInMed, w.PenaltyTierHighInLow, w.PenaltyTierMedInPrime,
		w.PenaltyTierMedInLow, w.PenaltyTierLowInPrime, w.PenaltyTierLowInMed,
		w.PenaltySfbBase, w.PenaltySfbLateral, w.PenaltySfbLateralWeak,
		w.PenaltySfbDiagonal, w.PenaltySfbLong, w.PenaltySfbBottom,
		w.PenaltySfbOutwardAdder, w.WeightWeakFingerSfb, w.ThresholdSfbLongRowDiff,
		w.PenaltyScissor, w.ThresholdScissorRowDiff, w.PenaltyLateral,
		w.BonusBigramRollIn, w.BonusBigramRollOut, w.PenaltyRingPinky,
		w.PenaltyRedirect, w.PenaltySkip, w.PenaltyHandRun, w.HandRunLimit, w.BonusInwardRoll,
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ErrNonFinite{Where: "scoring weights"}
		}
	}
	return nil
}

// rankCharacterBands sorts characters by freq1 descending and splits them
// into high/med/low bands whose sizes match the geometry's tier sizes
// (spec.md §4.2: "determined by sorting characters by freq1 and splitting
// by tier sizes").
func rankCharacterBands(freq1 []float64, nHigh, nMed int) (high, med map[int]bool) {
	idx := make([]int, len(freq1))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if freq1[idx[a]] != freq1[idx[b]] {
			return freq1[idx[a]] > freq1[idx[b]]
		}
		return idx[a] < idx[b]
	})

	high = make(map[int]bool, nHigh)
	med = make(map[int]bool, nMed)
	for rank, c := range idx {
		switch {
		case rank < nHigh:
			high[c] = true
		case rank < nHigh+nMed:
			med[c] = true
		}
	}
	return high, med
}

// Score evaluates perm, returning the four-pass breakdown from spec §4.2.
// Deterministic and side-effect-free.
func (sc *Scorer) Score(perm *Permutation) (*Score, error) {
	if err := checkPermutationFinite(sc.corpus, perm); err != nil {
		return nil, err
	}

	s := &Score{Stats: make(map[string]float64, 24)}

	sc.scoreMonogram(perm, s)
	sc.scoreTier(perm, s)
	sc.scoreBigram(perm, s)
	sc.scoreTrigram(perm, s)

	s.LayoutScore = s.subtotalSum()
	if math.IsNaN(s.LayoutScore) || math.IsInf(s.LayoutScore, 0) {
		return nil, &ErrNonFinite{Where: "layout_score"}
	}

	s.LayoutScore = roundSig(s.LayoutScore, 6)
	return s, nil
}

func checkPermutationFinite(c *corpus.Corpus, perm *Permutation) error {
	if len(perm.Chars) != len(c.Freq1) {
		return fmt.Errorf("permutation length %d does not match alphabet size %d", len(perm.Chars), len(c.Freq1))
	}
	return nil
}

// scoreMonogram runs the monogram pass (spec §4.2 "Monogram pass").
func (sc *Scorer) scoreMonogram(perm *Permutation, s *Score) {
	var handLoad [2]float64
	var total float64
	var totalChars float64

	for slot, char := range perm.Chars {
		freq := sc.corpus.Freq1[char]
		if freq == 0 {
			continue
		}
		si := sc.slots[slot]
		effort := sc.fingerEffort[si.hand][si.finger]
		contribution := freq * (sc.weights.WeightFingerEffort*effort +
			sc.weights.WeightVerticalTravel*math.Abs(si.y-sc.homeY) +
			sc.weights.WeightLateralTravel*boolToFloat(si.stretch))
		total += contribution
		handLoad[si.hand] += freq
		totalChars += freq
	}

	s.MonogramTotal = total
	s.TotalChars = totalChars

	diff := math.Abs(handLoad[0] - handLoad[1])
	over := diff - sc.weights.MaxHandImbalance
	if over > 0 {
		s.ImbalancePenalty = over * sc.weights.PenaltyImbalance
	}
}

// scoreTier runs the tier pass (spec §4.2 "Tier pass").
func (sc *Scorer) scoreTier(perm *Permutation, s *Score) {
	var total float64
	w := sc.weights
	for slot, char := range perm.Chars {
		freq := sc.corpus.Freq1[char]
		if freq == 0 {
			continue
		}
		tier := sc.slots[slot].tier
		high, med := sc.highBand[char], sc.medBand[char]
		low := !high && !med

		var penalty float64
		switch {
		case high && tier == geometry.TierMed:
			penalty = w.PenaltyTierHighInMed
		case high && tier == geometry.TierLow:
			penalty = w.PenaltyTierHighInLow
		case med && tier == geometry.TierPrime:
			penalty = w.PenaltyTierMedInPrime
		case med && tier == geometry.TierLow:
			penalty = w.PenaltyTierMedInLow
		case low && tier == geometry.TierPrime:
			penalty = w.PenaltyTierLowInPrime
		case low && tier == geometry.TierMed:
			penalty = w.PenaltyTierLowInMed
		}
		total += penalty * freq
	}
	s.TierTotal = total
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// roundSig rounds v to n significant digits.
func roundSig(v float64, n int) float64 {
	if v == 0 {
		return 0
	}
	mag := math.Ceil(math.Log10(math.Abs(v)))
	factor := math.Pow(10, float64(n)-mag)
	return math.Round(v*factor) / factor
}
