package main

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/scoring"
)

var rankCommand = &cli.Command{
	Name:      "rank",
	Usage:     "Score and rank one or more layout strings.",
	ArgsUsage: "<layout-string> [<layout-string> ...]",
	Flags:     flagsSlice("data-dir", "geometry", "corpus", "cost-matrix", "weights", "weights-inline", "robust"),
	Action:    runRank,
}

type rankedLayout struct {
	layout string
	score  *scoring.Score
}

func runRank(ctx context.Context, cmd *cli.Command) error {
	layouts := cmd.Args().Slice()
	if len(layouts) == 0 {
		return usageError{msg: "rank requires at least one layout string"}
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
	sc, err := scoring.NewScorer(geo, w, c)
	if err != nil {
		return err
	}

	results := make([]rankedLayout, 0, len(layouts))
	for _, l := range layouts {
		perm, err := scoring.ParsePermutation(l, c.Alphabet)
		if err != nil {
			return usageError{msg: fmt.Sprintf("parse layout %q: %v", l, err)}
		}
		score, err := sc.Score(perm)
		if err != nil {
			return err
		}
		results = append(results, rankedLayout{layout: l, score: score})
	}

	key := func(r rankedLayout) float64 { return r.score.LayoutScore }
	if cmd.Bool("robust") {
		key = robustKeyFunc(results)
	}

	sort.Slice(results, func(i, j int) bool { return key(results[i]) < key(results[j]) })

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "layout_score", "monogram", "tier", "bigram", "trigram", "layout"})
	for i, r := range results {
		tw.AppendRow(table.Row{i + 1, r.score.LayoutScore, r.score.MonogramTotal, r.score.TierTotal, r.score.BigramTotal, r.score.TrigramTotal, r.layout})
	}
	fmt.Println(tw.Render())
	return nil
}

// robustKeyFunc implements ADDENDUM D's --robust ranking mode: layouts are
// ordered by (score - median) / IQR instead of raw layout_score, matching
// the teacher's robust-normalized scoring convention from
// internal/keycraft/scorer.go, so one pathological outlier metric doesn't
// dominate the ranking.
func robustKeyFunc(results []rankedLayout) func(rankedLayout) float64 {
	values := make([]float64, len(results))
	for i, r := range results {
		values[i] = r.score.LayoutScore
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := percentile(sorted, 0.5)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		iqr = 1
	}
	return func(r rankedLayout) float64 {
		return (r.score.LayoutScore - median) / iqr
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
