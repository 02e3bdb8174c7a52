package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/scoring"
)

var benchmarkCommand = &cli.Command{
	Name:  "benchmark",
	Usage: "Score the identity layout repeatedly and report scoring throughput.",
	Flags: append(flagsSlice("data-dir", "geometry", "corpus", "cost-matrix", "weights", "weights-inline", "iterations"),
		&cli.Float64Flag{
			Name:  "baseline",
			Usage: "Expected layout_score; exits 2 if the measured score drifts beyond --tolerance.",
		},
		&cli.Float64Flag{
			Name:  "tolerance",
			Usage: "Relative tolerance for --baseline comparison.",
			Value: 1e-6,
		},
	),
	Action: runBenchmark,
}

func runBenchmark(ctx context.Context, cmd *cli.Command) error {
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

	sc, err := scoring.NewScorer(geo, w, c)
	if err != nil {
		return err
	}
	perm, err := identityPermutation(geo.NumSlots())
	if err != nil {
		return err
	}

	n := int(cmd.Uint("iterations"))
	start := time.Now()
	var score *scoring.Score
	for i := 0; i < n; i++ {
		s, err := sc.Score(perm)
		if err != nil {
			return err
		}
		score = s
	}
	elapsed := time.Since(start)
	opsPerSec := float64(n) / elapsed.Seconds()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"iterations", n})
	tw.AppendRow(table.Row{"elapsed", elapsed})
	tw.AppendRow(table.Row{"ops/sec", fmt.Sprintf("%.1f", opsPerSec)})
	tw.AppendRow(table.Row{"layout_score", score.LayoutScore})
	tw.AppendRow(table.Row{"monogram_total", score.MonogramTotal})
	tw.AppendRow(table.Row{"tier_total", score.TierTotal})
	tw.AppendRow(table.Row{"bigram_total", score.BigramTotal})
	tw.AppendRow(table.Row{"trigram_total", score.TrigramTotal})
	fmt.Println(tw.Render())

	if baseline := cmd.Float64("baseline"); baseline != 0 {
		tol := cmd.Float64("tolerance")
		rel := math.Abs(score.LayoutScore-baseline) / math.Max(math.Abs(baseline), 1e-9)
		if rel > tol {
			return scoreDriftError{msg: fmt.Sprintf("score drift: got %.9g, want %.9g (rel diff %.3g > tol %.3g)", score.LayoutScore, baseline, rel, tol)}
		}
	}
	return nil
}
