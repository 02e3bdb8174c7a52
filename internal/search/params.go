// Package search implements the Search Engine: greedy initialization
// followed by simulated annealing with geometric cooling and tiered,
// temperature-weighted mutation (spec.md §4.3).
//
// The main loop is grounded on the teacher's Breakout Local Search
// (internal/keycraft/bls.go): the epoch/step structure, the stagnation
// counter that drives a restart, and the accept-function shape
// (internal/keycraft/optimisation.go's getAcceptFunc, specifically its
// "drop-fast" exp(-3(1-t)) curve) are all carried over, generalized from
// BLS's best-improvement local search to the spec's temperature-scheduled
// acceptance and from the teacher's five ad hoc PerturbationType values to
// the spec's four named mutation classes.
package search

import "time"

// Params configures one optimize() run (spec.md §4.3).
type Params struct {
	SearchEpochs int
	SearchSteps  int
	TempMax      float64
	TempMin      float64

	SearchPatience          int     // consecutive non-improving epochs before restart
	SearchPatienceThreshold float64 // relative improvement threshold

	OptLimitFast int // full-rescore audit interval (moves)
	OptLimitSlow int // progress-publish interval (steps)

	MaxRestarts int // 0 = unlimited, bounded only by time/cancel
}

// DefaultParams mirrors the teacher's DefaultBLSParams scaling convention:
// core knobs scaled to the number of free (non-pinned) slots.
func DefaultParams(numFreeSlots int) Params {
	return Params{
		SearchEpochs:            200,
		SearchSteps:             numFreeSlots * 40,
		TempMax:                 10.0,
		TempMin:                 0.01,
		SearchPatience:          15,
		SearchPatienceThreshold: 0.001,
		OptLimitFast:            500,
		OptLimitSlow:            200,
		MaxRestarts:             0,
	}
}

// Progress is published to the progress sink every OptLimitSlow steps
// (spec.md §4.3).
type Progress struct {
	Epoch             int
	Score             float64
	Layout            string
	InstructionsPerSec float64
	Timestamp         time.Time
}

// ProgressSink receives Progress updates. Optimize calls it synchronously
// from the search loop, so implementations must not block for long. Node's
// worker uses it only to track throughput; it submits a result once, after
// Optimize returns, not on progress ticks.
type ProgressSink func(Progress)
