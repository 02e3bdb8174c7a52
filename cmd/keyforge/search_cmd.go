package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/search"
)

var searchCommand = &cli.Command{
	Name:  "search",
	Usage: "Run the Search Engine's simulated-annealing optimizer for one job and print the best layout found.",
	Flags: append(flagsSlice("data-dir", "geometry", "corpus", "cost-matrix", "weights", "weights-inline", "pins", "seed"),
		&cli.UintFlag{Name: "epochs", Usage: "Override search_epochs."},
		&cli.UintFlag{Name: "steps", Usage: "Override search_steps."},
	),
	Action: runSearch,
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
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

	freeSlots := geo.NumSlots() - len(pinned)
	params := search.DefaultParams(freeSlots)
	params.MaxRestarts = 1
	if v := cmd.Uint("epochs"); v != 0 {
		params.SearchEpochs = int(v)
	}
	if v := cmd.Uint("steps"); v != 0 {
		params.SearchSteps = int(v)
	}

	engine, err := search.NewEngine(geo, c, w, pinned, params)
	if err != nil {
		return err
	}

	seed := parseSeed(cmd.Uint("seed"), cmd.String("corpus")+cmd.String("geometry"))
	perm, score, err := engine.Optimize(ctx, seed, func(p search.Progress) {
		fmt.Printf("epoch %d score %.6f\n", p.Epoch, p.Score)
	})
	if err != nil {
		return err
	}

	fmt.Println(perm.CanonicalString(c.Alphabet))
	fmt.Printf("layout_score: %.9g\n", score.LayoutScore)
	return nil
}
