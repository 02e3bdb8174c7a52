package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/scoring"
)

var generateCommand = &cli.Command{
	Name:  "generate",
	Usage: "Generate a random layout respecting pinned characters, and score it.",
	Flags: append(flagsSlice("data-dir", "geometry", "corpus", "cost-matrix", "weights", "weights-inline", "pins"),
		&cli.UintFlag{Name: "seed", Usage: "Deterministic rng seed."},
	),
	Action: runGenerate,
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
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

	seed := cmd.Uint("seed")
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	shuffled := baseline.Clone()
	free := make([]int, 0, geo.NumSlots())
	for slot := range shuffled.Chars {
		if _, ok := pinned[slot]; !ok {
			free = append(free, slot)
		}
	}
	freeChars := make([]int, len(free))
	for i, slot := range free {
		freeChars[i] = shuffled.Chars[slot]
	}
	rng.Shuffle(len(freeChars), func(i, j int) { freeChars[i], freeChars[j] = freeChars[j], freeChars[i] })
	for i, slot := range free {
		shuffled.Chars[slot] = freeChars[i]
	}
	for slot, char := range shuffled.Chars {
		shuffled.Pos[char] = slot
	}

	sc, err := scoring.NewScorer(geo, w, c)
	if err != nil {
		return err
	}
	score, err := sc.Score(shuffled)
	if err != nil {
		return err
	}

	fmt.Println(shuffled.CanonicalString(c.Alphabet))
	fmt.Printf("layout_score: %.9g\n", score.LayoutScore)
	return nil
}
