// Package legacy exposes an alternate, eaopt-driven exploratory search
// strategy retained from the teacher's optimisation.go. The primary Search
// Engine (internal/search) needs class-weighted tiered mutation and
// patience/restart the generic eaopt.GA/ModSimulatedAnnealing harness
// cannot express (see DESIGN.md), so this package is kept as a secondary
// `keyforge experiment` strategy rather than promoted to the default path.
package legacy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/MaxHalford/eaopt"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/scoring"
)

// AcceptFunc mirrors the teacher's getAcceptFunc dispatch table, returning
// the probability of accepting a worse genome at generation g of ng.
func AcceptFunc(acceptWorse string) (func(g, ng uint, e0, e1 float64) float64, error) {
	switch acceptWorse {
	case "always":
		return func(g, ng uint, e0, e1 float64) float64 { return 1.0 }, nil
	case "never":
		return func(g, ng uint, e0, e1 float64) float64 { return 0.0 }, nil
	case "drop-slow":
		return func(g, ng uint, e0, e1 float64) float64 {
			t := 1.0 - float64(g)/float64(ng)
			return (math.Cos(t*math.Pi) + 1.0) / 2.0
		}, nil
	case "linear":
		return func(g, ng uint, e0, e1 float64) float64 {
			t := 1.0 - float64(g)/float64(ng)
			return t
		}, nil
	case "drop-fast":
		return func(g, ng uint, e0, e1 float64) float64 {
			t := 1.0 - float64(g)/float64(ng)
			return math.Exp(-3.0 * (1 - t))
		}, nil
	default:
		return nil, fmt.Errorf("unknown accept-worse function %q", acceptWorse)
	}
}

// Genome adapts scoring.Permutation into an eaopt.Genome, retargeted from
// the teacher's *SplitLayout to KeyForge's Permutation/Scorer/PinnedKeys
// triple.
type Genome struct {
	Perm   *scoring.Permutation
	Pinned scoring.PinnedKeys
	Scorer *scoring.Scorer
	Geo    *geometry.KeyboardGeometry
	Corpus *corpus.Corpus
}

// NewGenome wraps perm for use as an eaopt.Genome over the given scorer.
func NewGenome(perm *scoring.Permutation, pinned scoring.PinnedKeys, sc *scoring.Scorer, geo *geometry.KeyboardGeometry, c *corpus.Corpus) *Genome {
	return &Genome{Perm: perm, Pinned: pinned, Scorer: sc, Geo: geo, Corpus: c}
}

// Evaluate scores the wrapped permutation. eaopt minimizes fitness, and
// KeyForge's layout_score is already a cost (lower is better), so fitness
// is returned as-is rather than negated (unlike the teacher's robust
// maximized-score convention).
func (g *Genome) Evaluate() (float64, error) {
	score, err := g.Scorer.Score(g.Perm)
	if err != nil {
		return 0, err
	}
	return score.LayoutScore, nil
}

// Mutate randomly swaps two unpinned slots, mirroring the teacher's
// SplitLayout.Mutate but operating on slot indices instead of rune maps.
func (g *Genome) Mutate(rng *rand.Rand) {
	free := make([]int, 0, len(g.Perm.Chars))
	for slot := range g.Perm.Chars {
		if _, pinned := g.Pinned[slot]; !pinned {
			free = append(free, slot)
		}
	}
	if len(free) < 2 {
		panic(fmt.Sprintf("not enough unpinned slots to mutate: %d", len(free)))
	}
	i := rng.Intn(len(free))
	j := rng.Intn(len(free))
	for j == i {
		j = rng.Intn(len(free))
	}
	g.Perm.Swap(free[i], free[j])
}

// Crossover is a no-op, defined only so *Genome implements eaopt.Genome;
// the teacher's SplitLayout does the same since eaopt's simulated-annealing
// model never calls it.
func (g *Genome) Crossover(_ eaopt.Genome, _ *rand.Rand) {}

// Clone returns a deep copy of the genome.
func (g *Genome) Clone() eaopt.Genome {
	return &Genome{
		Perm:   g.Perm.Clone(),
		Pinned: g.Pinned,
		Scorer: g.Scorer,
		Geo:    g.Geo,
		Corpus: g.Corpus,
	}
}

// Run drives eaopt's GA/ModSimulatedAnnealing harness over generations
// epochs, mirroring the teacher's SplitLayout.Optimise. It returns the
// best permutation and its Score found during the run.
func Run(perm *scoring.Permutation, pinned scoring.PinnedKeys, sc *scoring.Scorer, geo *geometry.KeyboardGeometry, c *corpus.Corpus, generations uint, acceptWorse string, onImprove func(fitness float64)) (*scoring.Permutation, *scoring.Score, error) {
	accept, err := AcceptFunc(acceptWorse)
	if err != nil {
		return nil, nil, err
	}

	cfg := eaopt.NewDefaultGAConfig()
	cfg.NGenerations = generations
	cfg.Model = eaopt.ModSimulatedAnnealing{Accept: accept}

	minFit := math.MaxFloat64
	cfg.Callback = func(ga *eaopt.GA) {
		fit := ga.HallOfFame[0].Fitness
		if fit == minFit {
			return
		}
		minFit = fit
		if onImprove != nil {
			onImprove(fit)
		}
	}

	ga, err := cfg.NewGA()
	if err != nil {
		return nil, nil, fmt.Errorf("could not build eaopt.GA: %w", err)
	}

	seed := NewGenome(perm.Clone(), pinned, sc, geo, c)
	newGenome := func(rng *rand.Rand) eaopt.Genome { return seed }
	if err := ga.Minimize(newGenome); err != nil {
		return nil, nil, fmt.Errorf("eaopt minimize failed: %w", err)
	}

	best := ga.HallOfFame[0].Genome.(*Genome)
	bestScore, err := sc.Score(best.Perm)
	if err != nil {
		return nil, nil, err
	}
	return best.Perm, bestScore, nil
}
