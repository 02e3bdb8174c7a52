package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/scoring"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Load a dataset, score a layout string once, and emit a JSON report.",
	ArgsUsage: "<layout-string>",
	Flags:     flagsSlice("data-dir", "geometry", "corpus", "cost-matrix", "weights", "weights-inline"),
	Action:    runValidate,
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	layoutArg := cmd.Args().First()
	if layoutArg == "" {
		return usageError{msg: "validate requires a layout string argument"}
	}

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

	perm, err := scoring.ParsePermutation(layoutArg, c.Alphabet)
	if err != nil {
		return usageError{msg: fmt.Sprintf("parse layout string: %v", err)}
	}

	sc, err := scoring.NewScorer(geo, w, c)
	if err != nil {
		return err
	}
	score, err := sc.Score(perm)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(score)
}
