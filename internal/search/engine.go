package search

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
	"github.com/keyforge/keyforge/internal/scoring"
)

// Engine runs one optimize() call (spec.md §4.3) against a fixed
// (geometry, corpus, weights) triple.
type Engine struct {
	geo     *geometry.KeyboardGeometry
	corpus  *corpus.Corpus
	weights *kfweights.ScoringWeights
	scorer  *scoring.Scorer
	pinned  scoring.PinnedKeys
	params  Params
}

// NewEngine builds an Engine, failing if the scorer cannot be constructed
// (e.g. non-finite weights) or pinned keys collide.
func NewEngine(geo *geometry.KeyboardGeometry, c *corpus.Corpus, w *kfweights.ScoringWeights, pinned scoring.PinnedKeys, params Params) (*Engine, error) {
	if err := pinned.Validate(); err != nil {
		return nil, err
	}
	sc, err := scoring.NewScorer(geo, w, c)
	if err != nil {
		return nil, err
	}
	return &Engine{geo: geo, corpus: c, weights: w, scorer: sc, pinned: pinned, params: params}, nil
}

// Optimize runs greedy initialization followed by simulated annealing with
// patience-triggered restarts. Each round runs up to SearchEpochs epochs
// (fewer when patience runs out); Optimize returns the best permutation found
// once MaxRestarts rounds have run or ctx is cancelled. With MaxRestarts 0
// only cancellation ends it.
func (e *Engine) Optimize(ctx context.Context, rngSeed uint64, sink ProgressSink) (*scoring.Permutation, *scoring.Score, error) {
	rng := rand.New(rand.NewPCG(rngSeed, rngSeed^0x9e3779b97f4a7c15))

	best := e.greedyInit()
	bestScore, err := e.scorer.Score(best)
	if err != nil {
		return nil, nil, err
	}

	restarts := 0
	stepCount := 0
	start := best

	for {
		current := start.Clone()
		incr, curScore, err := scoring.NewIncremental(e.scorer, current, e.params.OptLimitFast)
		if err != nil {
			return nil, nil, err
		}
		mutator := scoring.NewMutator(e.geo, e.pinned)

		patienceCounter := 0

		for epoch := 0; epoch < e.params.SearchEpochs; epoch++ {
			if ctx.Err() != nil {
				return best, bestScore, nil
			}

			temp := temperature(epoch, e.params.SearchEpochs, e.params.TempMax, e.params.TempMin)
			epochStartScore := curScore.LayoutScore

			for step := 0; step < e.params.SearchSteps; step++ {
				if ctx.Err() != nil {
					return best, bestScore, nil
				}

				prevChars := append([]int(nil), current.Chars...)
				kind := chooseMutationKind(rng, temp, e.params.TempMax)

				affected, trialScore, err := incr.Mutate(mutator, kind, rng)
				if err != nil {
					return nil, nil, err
				}

				delta := trialScore.LayoutScore - curScore.LayoutScore
				accept := delta <= 0 || rng.Float64() < math.Exp(-delta/math.Max(temp, 1e-9))
				if accept {
					curScore = trialScore
				} else {
					for _, slot := range affected {
						current.Chars[slot] = prevChars[slot]
					}
					rebuildPos(current)
					curScore, err = incr.Resync(affected)
					if err != nil {
						return nil, nil, err
					}
				}

				stepCount++
				if sink != nil && stepCount%maxInt(e.params.OptLimitSlow, 1) == 0 {
					sink(Progress{
						Epoch:  epoch,
						Score:  curScore.LayoutScore,
						Layout: current.CanonicalString(e.corpus.Alphabet),
					})
				}

				if curScore.LayoutScore < bestScore.LayoutScore {
					best, bestScore = current.Clone(), curScore
				}
			}

			improvement := epochStartScore - curScore.LayoutScore
			relative := 0.0
			if epochStartScore != 0 {
				relative = improvement / math.Abs(epochStartScore)
			}
			if relative > e.params.SearchPatienceThreshold {
				patienceCounter = 0
			} else {
				patienceCounter++
			}

			if patienceCounter >= e.params.SearchPatience {
				break
			}
		}

		restarts++
		if e.params.MaxRestarts > 0 && restarts >= e.params.MaxRestarts {
			return best, bestScore, nil
		}
		if ctx.Err() != nil {
			return best, bestScore, nil
		}

		// Restart from a perturbation of the globally best layout found so
		// far, with k random swaps rising with the restart count; best and
		// bestScore themselves are kept (spec.md §4.3 "Patience/Restart").
		start = e.perturb(best, rng, restarts)
	}
}

// rebuildPos recomputes Pos from Chars after a direct, out-of-band edit to
// Chars (used when reverting a rejected mutation trial).
func rebuildPos(p *scoring.Permutation) {
	for slot, char := range p.Chars {
		p.Pos[char] = slot
	}
}

// temperature implements the geometric cooling schedule from spec.md §4.3:
// T(e) = temp_max * (temp_min/temp_max)^(e/(epochs-1)).
func temperature(epoch, epochs int, tempMax, tempMin float64) float64 {
	if epochs <= 1 {
		return tempMin
	}
	frac := float64(epoch) / float64(epochs-1)
	return tempMax * math.Pow(tempMin/tempMax, frac)
}

// chooseMutationKind picks a mutation class from a temperature-weighted
// distribution: at high temperature, single-swap and rotate-3 dominate
// (exploration); as temperature decays, finger-column and cross-tier swaps
// dominate (exploitation), per spec.md §4.3.
func chooseMutationKind(rng *rand.Rand, temp, tempMax float64) scoring.MutationKind {
	hot := 0.0
	if tempMax > 0 {
		hot = clamp01(temp / tempMax)
	}
	wSingle := 0.15 + 0.35*hot
	wRotate := 0.10 + 0.30*hot
	wFinger := 0.15 + 0.35*(1-hot)
	wCross := 1.0 - wSingle - wRotate - wFinger
	if wCross < 0.05 {
		wCross = 0.05
	}

	total := wSingle + wFinger + wCross + wRotate
	r := rng.Float64() * total
	switch {
	case r < wSingle:
		return scoring.MutationSingleSwap
	case r < wSingle+wFinger:
		return scoring.MutationFingerColumnSwap
	case r < wSingle+wFinger+wCross:
		return scoring.MutationCrossTierSwap
	default:
		return scoring.MutationRotate3
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// greedyInit implements spec.md §4.3's Greedy Initializer: pinned
// characters seed their fixed slots; the remaining highest-frequency
// characters fill the best-ranked free slots, tie-broken by slot index.
// Grounded on the teacher's generator.go processCharacters, which places
// characters by descending frequency into slots ordered by a cost-based
// rank.
func (e *Engine) greedyInit() *scoring.Permutation {
	n := e.geo.NumSlots()
	chars := make([]int, n)
	assigned := make([]bool, n)
	placed := make([]bool, n)

	for slot, char := range e.pinned {
		chars[slot] = char
		assigned[slot] = true
		placed[char] = true
	}

	type rankedChar struct {
		char int
		freq float64
	}
	freeChars := make([]rankedChar, 0, n)
	for c, f := range e.corpus.Freq1 {
		if !placed[c] {
			freeChars = append(freeChars, rankedChar{c, f})
		}
	}
	sort.Slice(freeChars, func(i, j int) bool {
		if freeChars[i].freq != freeChars[j].freq {
			return freeChars[i].freq > freeChars[j].freq
		}
		return freeChars[i].char < freeChars[j].char
	})

	type rankedSlot struct {
		slot      int
		centrality float64
	}
	freeSlots := make([]rankedSlot, 0, n)
	for slot := 0; slot < n; slot++ {
		if assigned[slot] {
			continue
		}
		freeSlots = append(freeSlots, rankedSlot{slot, e.slotCentrality(slot)})
	}
	sort.Slice(freeSlots, func(i, j int) bool {
		if freeSlots[i].centrality != freeSlots[j].centrality {
			return freeSlots[i].centrality < freeSlots[j].centrality
		}
		return freeSlots[i].slot < freeSlots[j].slot
	})

	for i, rc := range freeChars {
		if i >= len(freeSlots) {
			break
		}
		slot := freeSlots[i].slot
		chars[slot] = rc.char
		assigned[slot] = true
	}

	perm, err := scoring.NewPermutation(chars)
	if err != nil {
		// Pinned/free partition guarantees a bijection; a failure here
		// means the geometry or alphabet size is inconsistent, which
		// NewEngine's caller should have caught already.
		panic(err)
	}
	return perm
}

// slotCentrality is the row sum of the cost matrix restricted to
// same-hand neighbors, spec.md §4.3's greedy-ranking signal. Lower is
// better (closer to home row / less effortful).
func (e *Engine) slotCentrality(slot int) float64 {
	if e.corpus.Cost == nil || slot >= e.corpus.Cost.N {
		return 0
	}
	var sum float64
	row := e.corpus.Cost.Cost[slot]
	for j, v := range row {
		if j >= len(e.geo.Keys) || e.geo.Keys[j].Hand != e.geo.Keys[slot].Hand {
			continue
		}
		sum += v
	}
	return sum
}

// perturb applies k random swaps to a clone of layout, where k rises with
// restart count (spec.md §4.3's "perturbation of the best-known so far").
func (e *Engine) perturb(layout *scoring.Permutation, rng *rand.Rand, restarts int) *scoring.Permutation {
	out := layout.Clone()
	mutator := scoring.NewMutator(e.geo, e.pinned)
	k := 2 + restarts
	if k > e.geo.NumSlots()/2 {
		k = e.geo.NumSlots() / 2
	}
	for i := 0; i < k; i++ {
		mutator.Apply(out, scoring.MutationSingleSwap, rng)
	}
	return out
}
