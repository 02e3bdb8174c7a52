package scoring

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/keyforge/keyforge/internal/geometry"
)

// defaultAuditInterval is used when NewIncremental is given an interval of
// 0, bounding how many incremental Mutate calls (accepted or not) run before a full
// Scorer.Score pass re-verifies the running total (spec.md §4.3's
// "periodic full-rescore audit" requirement), guarding against drift from
// accumulated floating-point error.
const defaultAuditInterval = 500

// IncrementalScorer maintains a running Score for a single permutation
// under repeated small mutations, touching only the slots a mutation
// affects rather than re-running the full O(chars^2) bigram sweep every
// time. It is the engine the search loop drives; Scorer itself stays the
// stateless, full-recompute reference implementation used for audits and
// one-off evaluations.
type IncrementalScorer struct {
	scorer *Scorer
	perm   *Permutation

	monoContrib []float64   // per slot, monogram+effort contribution
	tierContrib []float64   // per slot, tier cross-penalty contribution
	bigram      [][]float64 // [char1][char2] contribution, already *freq

	auditInterval   int
	stepsSinceAudit int
}

// NewIncremental builds an IncrementalScorer for perm, computing the full
// breakdown once up front. auditInterval is the number of Mutate calls,
// whether or not the caller keeps the move, between full-rescore audits (spec.md §4.3's opt_limit_fast); 0
// selects defaultAuditInterval.
func NewIncremental(sc *Scorer, perm *Permutation, auditInterval int) (*IncrementalScorer, *Score, error) {
	if auditInterval <= 0 {
		auditInterval = defaultAuditInterval
	}
	is := &IncrementalScorer{
		scorer:        sc,
		perm:          perm,
		monoContrib:   make([]float64, len(perm.Chars)),
		tierContrib:   make([]float64, len(perm.Chars)),
		bigram:        make([][]float64, len(sc.corpus.Freq1)),
		auditInterval: auditInterval,
	}
	for i := range is.bigram {
		is.bigram[i] = make([]float64, len(sc.corpus.Freq1))
	}

	is.recomputeMonogramTier(allSlots(len(perm.Chars)))
	is.recomputeBigramRows(allChars(len(sc.corpus.Freq1)))

	score, err := is.assemble()
	if err != nil {
		return nil, nil, err
	}
	return is, score, nil
}

// Mutate applies a tiered mutation via m, updates the cached contributions
// for only the affected slots/characters, and returns the affected slots
// plus the refreshed Score. Every auditInterval calls, a full Scorer.Score
// pass replaces the running total outright, correcting any accumulated
// floating-point drift.
func (is *IncrementalScorer) Mutate(m *Mutator, kind MutationKind, rng *rand.Rand) ([]int, *Score, error) {
	affectedSlots := m.Apply(is.perm, kind, rng)
	is.refreshSlots(affectedSlots)

	is.stepsSinceAudit++
	if is.stepsSinceAudit >= is.auditInterval {
		s, err := is.audit()
		return affectedSlots, s, err
	}
	s, err := is.assemble()
	return affectedSlots, s, err
}

// Resync recomputes the cached contributions for slots whose assigned
// character was changed by a means other than Mutate (e.g. a caller
// reverting a rejected trial by restoring Permutation.Chars/Pos directly),
// and returns the refreshed Score.
func (is *IncrementalScorer) Resync(slots []int) (*Score, error) {
	is.refreshSlots(slots)
	return is.assemble()
}

func (is *IncrementalScorer) refreshSlots(slots []int) {
	is.recomputeMonogramTier(slots)
	chars := make([]int, len(slots))
	for i, slot := range slots {
		chars[i] = is.perm.Chars[slot]
	}
	is.recomputeBigramRows(chars)
}

// audit forces a full Scorer.Score recomputation and resets the cached
// state from it, returning the authoritative Score.
func (is *IncrementalScorer) audit() (*Score, error) {
	full, err := is.scorer.Score(is.perm)
	if err != nil {
		return nil, err
	}
	is.recomputeMonogramTier(allSlots(len(is.perm.Chars)))
	is.recomputeBigramRows(allChars(len(is.scorer.corpus.Freq1)))
	is.stepsSinceAudit = 0
	return full, nil
}

// recomputeMonogramTier refreshes the per-slot monogram+tier contribution
// cache for the given slots.
func (is *IncrementalScorer) recomputeMonogramTier(slots []int) {
	w := is.scorer.weights
	for _, slot := range slots {
		char := is.perm.Chars[slot]
		freq := is.scorer.corpus.Freq1[char]
		if freq == 0 {
			is.monoContrib[slot] = 0
			is.tierContrib[slot] = 0
			continue
		}
		si := is.scorer.slots[slot]
		effort := is.scorer.fingerEffort[si.hand][si.finger]
		mono := freq * (w.WeightFingerEffort*effort +
			w.WeightVerticalTravel*math.Abs(si.y-is.scorer.homeY) +
			w.WeightLateralTravel*boolToFloat(si.stretch))

		tier := si.tier
		high, med := is.scorer.highBand[char], is.scorer.medBand[char]
		low := !high && !med
		var tierPenalty float64
		switch {
		case high && tier == geometry.TierMed:
			tierPenalty = w.PenaltyTierHighInMed
		case high && tier == geometry.TierLow:
			tierPenalty = w.PenaltyTierHighInLow
		case med && tier == geometry.TierPrime:
			tierPenalty = w.PenaltyTierMedInPrime
		case med && tier == geometry.TierLow:
			tierPenalty = w.PenaltyTierMedInLow
		case low && tier == geometry.TierPrime:
			tierPenalty = w.PenaltyTierLowInPrime
		case low && tier == geometry.TierMed:
			tierPenalty = w.PenaltyTierLowInMed
		}

		is.monoContrib[slot] = mono
		is.tierContrib[slot] = tierPenalty * freq
	}
}

// recomputeBigramRows refreshes cached bigram contributions for every pair
// touching one of the given characters (as either side of the pair).
func (is *IncrementalScorer) recomputeBigramRows(chars []int) {
	touched := make(map[int]bool, len(chars))
	for _, c := range chars {
		touched[c] = true
	}
	n := len(is.scorer.corpus.Freq1)
	stats := make(map[string]float64) // discarded; recomputeBigramRows only refreshes totals
	for c1 := 0; c1 < n; c1++ {
		for c2 := 0; c2 < n; c2++ {
			if !touched[c1] && !touched[c2] {
				continue
			}
			freq := is.scorer.corpus.Freq2[c1][c2]
			if freq <= 0 {
				is.bigram[c1][c2] = 0
				continue
			}
			slot1, slot2 := is.perm.Pos[c1], is.perm.Pos[c2]
			if slot1 == slot2 {
				is.bigram[c1][c2] = 0
				continue
			}
			contribution, _ := is.scorer.classifyBigram(slot1, slot2, freq, stats)
			is.bigram[c1][c2] = contribution
		}
	}
}

// assemble sums the cached per-slot and per-pair contributions into a full
// Score, running a fresh (cheap, bounded-K) trigram pass since the corpus
// trigram list is small.
func (is *IncrementalScorer) assemble() (*Score, error) {
	s := &Score{Stats: make(map[string]float64, 24)}

	var mono, tier, bigram float64
	var handLoad [2]float64
	var totalChars float64
	for slot, char := range is.perm.Chars {
		mono += is.monoContrib[slot]
		if is.tierContrib != nil {
			tier += is.tierContrib[slot]
		}
		freq := is.scorer.corpus.Freq1[char]
		handLoad[is.scorer.slots[slot].hand] += freq
		totalChars += freq
	}
	for _, row := range is.bigram {
		for _, v := range row {
			bigram += v
		}
	}

	s.MonogramTotal = mono
	s.TierTotal = tier
	s.BigramTotal = bigram
	s.TotalChars = totalChars

	diff := math.Abs(handLoad[0] - handLoad[1])
	over := diff - is.scorer.weights.MaxHandImbalance
	if over > 0 {
		s.ImbalancePenalty = over * is.scorer.weights.PenaltyImbalance
	}

	is.scorer.scoreTrigram(is.perm, s)

	s.LayoutScore = s.subtotalSum()
	if math.IsNaN(s.LayoutScore) || math.IsInf(s.LayoutScore, 0) {
		return nil, &ErrNonFinite{Where: "layout_score"}
	}
	s.LayoutScore = roundSig(s.LayoutScore, 6)
	return s, nil
}

func allSlots(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func allChars(n int) []int {
	return allSlots(n)
}

func (is *IncrementalScorer) String() string {
	return fmt.Sprintf("IncrementalScorer(steps_since_audit=%d)", is.stepsSinceAudit)
}
