package scoring

import (
	"fmt"
	"sort"

	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
)

// scoreBigram runs the bigram pass (spec §4.2 "Bigram pass"): for every
// ordered pair (c1, c2) with positive freq2, classify the transition
// mechanics in the assigned slots and accumulate the corresponding
// penalties, each scaled by freq2[c1][c2].
func (sc *Scorer) scoreBigram(perm *Permutation, s *Score) {
	var total float64
	var totalBigrams float64
	var offenders []Offender

	n := len(sc.corpus.Freq2)
	for c1 := 0; c1 < n; c1++ {
		row := sc.corpus.Freq2[c1]
		for c2 := 0; c2 < n; c2++ {
			freq := row[c2]
			if freq <= 0 {
				continue
			}
			totalBigrams += freq

			slot1, slot2 := perm.Pos[c1], perm.Pos[c2]
			if slot1 == slot2 {
				continue // same key, ignored
			}

			contribution, category := sc.classifyBigram(slot1, slot2, freq, s.Stats)
			if contribution == 0 {
				continue
			}
			total += contribution

			offenders = append(offenders, Offender{
				Keys:         fmt.Sprintf("%c%c", sc.corpus.Alphabet[c1], sc.corpus.Alphabet[c2]),
				Frequency:    freq,
				Contribution: contribution,
			})
			_ = category
		}
	}

	s.BigramTotal = total
	s.TotalBigrams = totalBigrams
	s.TopBigrams = topNOffenders(offenders, topNLimit)
}

// classifyBigram returns the weighted penalty contribution (already
// multiplied by freq) for one bigram transition, and records the
// frequency mass into the appropriate stat counters.
func (sc *Scorer) classifyBigram(slot1, slot2 int, freq float64, stats map[string]float64) (float64, string) {
	w := sc.weights
	a, b := sc.slots[slot1], sc.slots[slot2]

	if a.hand != b.hand {
		return 0, "" // different hands: no same-hand mechanics apply
	}

	rowDiff := absInt(a.row - b.row)
	colDiff := absInt(a.col - b.col)
	fingerDiff := absInt(int(a.finger) - int(b.finger))

	if a.finger == b.finger {
		// Same-Finger Bigram: sub-penalties are additive, not exclusive.
		var penalty float64
		stats["stat_sfb_base"] += freq
		penalty += w.PenaltySfbBase

		if rowDiff >= int(w.ThresholdSfbLongRowDiff) {
			penalty += w.PenaltySfbLong
			stats["stat_sfb_long"] += freq
		}
		if a.row == sc.bottomRow && b.row == sc.bottomRow {
			penalty += w.PenaltySfbBottom
			stats["stat_sfb_bottom"] += freq
		}
		if rowDiff >= 1 && colDiff >= 1 {
			penalty += w.PenaltySfbDiagonal
			stats["stat_sfb_diagonal"] += freq
		}
		if colDiff >= 1 {
			penalty += w.PenaltySfbLateral
			stats["stat_sfb_lateral"] += freq
			if a.finger == geometry.FingerRing || a.finger == geometry.FingerPinky {
				penalty += w.PenaltySfbLateralWeak
				stats["stat_sfb_lateral_weak"] += freq
			}
		}
		if sc.isOutward(a, b) {
			penalty += w.PenaltySfbOutwardAdder
		}
		if a.finger == geometry.FingerPinky {
			penalty *= w.WeightWeakFingerSfb
		}
		return penalty * freq, "sfb"
	}

	if fingerDiff == 1 {
		isScissor := rowDiff >= int(w.ThresholdScissorRowDiff) && a.row != b.row
		homeRowBoth := a.row == sc.geo.HomeRow && b.row == sc.geo.HomeRow
		if isScissor && !homeRowBoth {
			key := kfweights.ScissorKey{Finger1: a.finger, Finger2: b.finger, RowDiff: rowDiff}
			if !sc.comfortable[key] {
				stats["stat_scissor"] += freq
				return w.PenaltyScissor * freq, "scissor"
			}
		}

		if colDiff >= 2 {
			stats["stat_lateral"] += freq
			return w.PenaltyLateral * freq, "lateral"
		}

		var penalty float64
		inward := sc.isInward(a, b)
		if inward {
			penalty += w.BonusBigramRollIn
			stats["stat_roll_in"] += freq
		} else {
			penalty += w.BonusBigramRollOut
			stats["stat_roll_out"] += freq
		}

		isRingPinky := (a.finger == geometry.FingerRing || a.finger == geometry.FingerPinky) &&
			(b.finger == geometry.FingerRing || b.finger == geometry.FingerPinky)
		if isRingPinky {
			penalty += w.PenaltyRingPinky
			stats["stat_ring_pinky"] += freq
		}

		return penalty * freq, "roll"
	}

	return 0, ""
}

// isOutward reports whether the movement from slot a to slot b is away
// from the hand's index-finger column (pinky-ward).
func (sc *Scorer) isOutward(a, b slotInfo) bool {
	center := sc.centerCol[a.hand]
	return absFloat(float64(b.col)-center) > absFloat(float64(a.col)-center)
}

// isInward is the complement of isOutward for adjacent-finger rolls.
func (sc *Scorer) isInward(a, b slotInfo) bool {
	return !sc.isOutward(a, b)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// topNOffenders returns the N entries with the largest contribution,
// ties broken lexicographically by Keys (spec.md §4.2).
func topNOffenders(all []Offender, n int) []Offender {
	sort.Slice(all, func(i, j int) bool {
		if all[i].Contribution != all[j].Contribution {
			return all[i].Contribution > all[j].Contribution
		}
		return all[i].Keys < all[j].Keys
	})
	if len(all) > n {
		all = all[:n]
	}
	return append([]Offender(nil), all...)
}
