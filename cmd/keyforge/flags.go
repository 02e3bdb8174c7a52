package main

import (
	"fmt"

	"github.com/urfave/cli/v3"
)

// appFlagsMap centralizes flag definitions used across subcommands,
// following the teacher's cmd/keycraft/flags.go idiom: one registry,
// commands pick the subset they need via flagsSlice.
var appFlagsMap = map[string]cli.Flag{
	"data-dir": &cli.StringFlag{
		Name:    "data-dir",
		Aliases: []string{"d"},
		Usage:   "Data directory containing geometries/, weights/, corpora/, cost_matrices/.",
		Value:   "./data",
		EnvVars: []string{"KEYFORGE_DATA_DIR"},
	},
	"geometry": &cli.StringFlag{
		Name:    "geometry",
		Aliases: []string{"g"},
		Usage:   "Keyboard geometry JSON file.",
		Value:   "geometries/default.json",
	},
	"corpus": &cli.StringFlag{
		Name:    "corpus",
		Aliases: []string{"c"},
		Usage:   "Corpus spec: a name, or a weighted blend \"name1:weight1,name2:weight2\".",
		Value:   "default",
	},
	"cost-matrix": &cli.StringFlag{
		Name:  "cost-matrix",
		Usage: "Cost matrix name (from cost_matrices directory).",
		Value: "default",
	},
	"weights": &cli.StringFlag{
		Name:    "weights",
		Aliases: []string{"w"},
		Usage:   "Weights preset file (from weights directory).",
		Value:   "weights/default.txt",
	},
	"weights-inline": &cli.StringFlag{
		Name:  "weights-inline",
		Usage: "Inline weight overrides, e.g. \"penalty_scissor=4.0,bonus_inward_roll=-1.0\".",
	},
	"pins": &cli.StringFlag{
		Name:    "pins",
		Aliases: []string{"p"},
		Usage:   "Characters to pin in place, e.g. \"zqjx\".",
	},
	"iterations": &cli.UintFlag{
		Name:    "iterations",
		Aliases: []string{"n"},
		Usage:   "Benchmark iteration count.",
		Value:   100000,
	},
	"output": &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: \"table\" or \"json\".",
		Value:   "table",
	},
	"robust": &cli.BoolFlag{
		Name:  "robust",
		Usage: "Use median/IQR-normalized ranking instead of raw layout_score.",
	},
	"seed": &cli.UintFlag{
		Name:  "seed",
		Usage: "Deterministic rng seed override (default: derived from the corpus and geometry flag values).",
	},
	"generations": &cli.UintFlag{
		Name:    "generations",
		Aliases: []string{"gens"},
		Usage:   "Generations for the legacy eaopt-based experiment strategy.",
		Value:   1000,
	},
	"accept-worse": &cli.StringFlag{
		Name:  "accept-worse",
		Usage: "Legacy experiment accept-worse function: always, never, drop-slow, linear, drop-fast.",
		Value: "drop-slow",
	},
	"hive-addr": &cli.StringFlag{
		Name:  "hive-addr",
		Usage: "Hive listen address.",
		Value: ":8080",
	},
	"hive-secret": &cli.StringFlag{
		Name:    "hive-secret",
		Usage:   "Shared secret required on write endpoints.",
		EnvVars: []string{"HIVE_SECRET"},
	},
	"node-id": &cli.StringFlag{
		Name:    "node-id",
		Usage:   "Stable node identifier; a uuid is generated if omitted.",
		EnvVars: []string{"KEYFORGE_NODE_ID"},
	},
	"config": &cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration file.",
	},
}

func flagsSlice(keys ...string) []cli.Flag {
	flags := make([]cli.Flag, 0, len(keys))
	for _, k := range keys {
		f, ok := appFlagsMap[k]
		if !ok {
			panic(fmt.Sprintf("cmd/keyforge: unknown flag key %q", k))
		}
		flags = append(flags, f)
	}
	return flags
}
