package scoring

import "fmt"

// scoreTrigram runs the trigram pass over the corpus's bounded top-K
// trigram list (spec.md §4.2 "Trigram pass"). Skip-bigrams, rolls, and
// redirects are classified per trigram and scaled by the trigram's
// blended weight.
func (sc *Scorer) scoreTrigram(perm *Permutation, s *Score) {
	w := sc.weights
	var total float64
	var totalTrigrams float64
	var offenders []Offender

	for _, t := range sc.corpus.TopTrigrams {
		totalTrigrams += t.Weight

		s0, s1, s2 := perm.Pos[t.I], perm.Pos[t.J], perm.Pos[t.K]
		if s0 == s1 || s1 == s2 || s0 == s2 {
			continue // degenerate (repeated key), no trigram mechanics apply
		}
		a, b, c := sc.slots[s0], sc.slots[s1], sc.slots[s2]

		contribution, category := sc.classifyTrigram(a, b, c, t.Weight, s.Stats)
		if contribution == 0 {
			continue
		}
		total += contribution

		offenders = append(offenders, Offender{
			Keys: fmt.Sprintf("%c%c%c", sc.corpus.Alphabet[t.I],
				sc.corpus.Alphabet[t.J], sc.corpus.Alphabet[t.K]),
			Frequency:    t.Weight,
			Contribution: contribution,
		})
		_ = category
	}
	_ = w

	s.TrigramTotal = total
	s.TotalTrigrams = totalTrigrams
	s.TopTrigrams = topNOffenders(offenders, topNLimit)
}

// classifyTrigram returns the weighted penalty/bonus contribution (already
// scaled by weight) for one trigram, in priority order: skip-bigram first
// (exclusive of same-hand classification), then same-hand roll/redirect,
// then cross-hand (neutral, stat-only).
func (sc *Scorer) classifyTrigram(a, b, c slotInfo, weight float64, stats map[string]float64) (float64, string) {
	w := sc.weights

	if a.hand == c.hand && a.finger == c.finger && b.hand != a.hand {
		// First and third characters repeat under the same finger with the
		// second on the other hand: a skip-bigram (spec.md §4.2).
		stats["stat_skip"] += weight
		return w.PenaltySkip * weight, "skip"
	}

	if a.hand == b.hand && b.hand == c.hand {
		monotonicUp := a.finger < b.finger && b.finger < c.finger
		monotonicDown := a.finger > b.finger && b.finger > c.finger

		var penalty float64
		if monotonicUp || monotonicDown {
			inward := sc.isInward(a, b) && sc.isInward(b, c)
			if inward {
				penalty += w.BonusInwardRoll
				stats["stat_roll3_in"] += weight
			} else {
				stats["stat_roll3_out"] += weight
			}
		} else {
			penalty += w.PenaltyRedirect
			stats["stat_redirect"] += weight
		}

		// Every same-hand trigram observed here is itself a run of three
		// consecutive same-hand presses.
		if 3 >= int(w.HandRunLimit) {
			penalty += w.PenaltyHandRun
			stats["stat_hand_run"] += weight
		}

		return penalty * weight, "same_hand"
	}

	stats["stat_alternate"] += weight
	return 0, "alternate"
}
