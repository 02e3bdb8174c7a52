// Package main provides the keyforge CLI entrypoint (spec.md §6's
// external interface): benchmark, validate, rank, generate, hive, and
// node subcommands over the Scoring Engine, Search Engine, and
// Distribution Fabric.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// Exit codes per spec.md §6.
const (
	exitOK            = 0
	exitGenericError  = 1
	exitScoreDrift    = 2
	exitUsageError    = 64
	exitDataError     = 69
	exitInternalError = 70
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cmd := &cli.Command{
		Name:  "keyforge",
		Usage: "Distributed evolutionary search for keyboard layouts",
		Commands: []*cli.Command{
			benchmarkCommand,
			validateCommand,
			rankCommand,
			generateCommand,
			searchCommand,
			experimentCommand,
			hiveCommand,
			nodeCommand,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to spec.md §6's exit code taxonomy.
func exitCodeFor(err error) int {
	switch {
	case isScoreDrift(err):
		return exitScoreDrift
	case isUsageError(err):
		return exitUsageError
	case isDataError(err):
		return exitDataError
	default:
		return exitGenericError
	}
}

type scoreDriftError struct{ msg string }

func (e scoreDriftError) Error() string { return e.msg }

func isScoreDrift(err error) bool {
	_, ok := err.(scoreDriftError)
	return ok
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func isUsageError(err error) bool {
	_, ok := err.(usageError)
	return ok
}

type dataError struct{ msg string }

func (e dataError) Error() string { return e.msg }

func isDataError(err error) bool {
	_, ok := err.(dataError)
	return ok
}
