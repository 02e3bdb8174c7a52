package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/legacy"
	"github.com/keyforge/keyforge/internal/scoring"
)

var experimentCommand = &cli.Command{
	Name:  "experiment",
	Usage: "Run the legacy eaopt-based simulated-annealing strategy instead of the default Search Engine.",
	Flags: flagsSlice("data-dir", "geometry", "corpus", "cost-matrix", "weights", "weights-inline", "pins", "generations", "accept-worse"),
	Action: runExperiment,
}

func runExperiment(ctx context.Context, cmd *cli.Command) error {
	dataDir := cmd.String("data-dir")
	geo, err := loadGeometry(dataDir, cmd.String("geometry"))
	if err != nil {
		return dataError{msg: fmt.Sprintf("load geometry: %v", err)}
	}
	c, err := loadCorpusAndCost(dataDir, cmd.String("corpus"), cmd.String("cost-matrix"), geo)
	if err != nil {
		return dataError{msg: fmt.Sprintf("load corpus: %v", err)}
	}
	w, err := loadWeights(dataDir, cmd.String("weights"), cmd.String("weights-inline"))
	if err != nil {
		return dataError{msg: fmt.Sprintf("load weights: %v", err)}
	}

	baseline, err := identityPermutation(geo.NumSlots())
	if err != nil {
		return err
	}
	pinned, err := parsePins(cmd.String("pins"), c.Alphabet, baseline)
	if err != nil {
		return usageError{msg: err.Error()}
	}

	sc, err := scoring.NewScorer(geo, w, c)
	if err != nil {
		return err
	}

	perm, score, err := legacy.Run(baseline, pinned, sc, geo, c, cmd.Uint("generations"), cmd.String("accept-worse"), func(fitness float64) {
		fmt.Printf("improved: %.6f\n", fitness)
	})
	if err != nil {
		return err
	}

	fmt.Println(perm.CanonicalString(c.Alphabet))
	fmt.Printf("layout_score: %.9g\n", score.LayoutScore)
	return nil
}
