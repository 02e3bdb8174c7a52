package main

import (
	"fmt"
	"path/filepath"

	"github.com/keyforge/keyforge/internal/corpus"
	"github.com/keyforge/keyforge/internal/geometry"
	"github.com/keyforge/keyforge/internal/kfweights"
	"github.com/keyforge/keyforge/internal/scoring"
)

// loadGeometry loads a keyboard geometry file relative to dataDir,
// following the teacher's loadCorpus/loadLayout convention of resolving
// CLI filenames against a fixed data subdirectory.
func loadGeometry(dataDir, rel string) (*geometry.KeyboardGeometry, error) {
	return geometry.LoadGeometry(filepath.Join(dataDir, rel))
}

// loadWeights loads a weights preset and applies an inline override
// string, via kfweights.LoadWeights.
func loadWeights(dataDir, rel, inline string) (*kfweights.ScoringWeights, error) {
	path := ""
	if rel != "" {
		path = filepath.Join(dataDir, rel)
	}
	return kfweights.LoadWeights(path, inline)
}

// loadCorpusAndCost resolves a corpus spec + cost matrix name against a
// loaded geometry's alphabet.
func loadCorpusAndCost(dataDir, corpusSpec, costMatrixName string, geo *geometry.KeyboardGeometry) (*corpus.Corpus, error) {
	loader := corpus.NewLoader(dataDir)
	alphabet := corpus.DefaultAlphabet(geo.NumSlots())
	return loader.Load(corpusSpec, costMatrixName, geo, alphabet, 50)
}

// parsePins parses a flat "aeiouy" pin-character string against a
// corpus's alphabet into PinnedKeys, pinning each pinned character to its
// current slot in baseline (the identity / alphabetical layout), mirroring
// the teacher's --pins flag semantics (internal/keycraft flag handling).
func parsePins(pinChars string, alphabet []rune, baseline *scoring.Permutation) (scoring.PinnedKeys, error) {
	pinned := scoring.PinnedKeys{}
	if pinChars == "" {
		return pinned, nil
	}
	index := make(map[rune]int, len(alphabet))
	for i, r := range alphabet {
		index[r] = i
	}
	for _, r := range pinChars {
		c, ok := index[r]
		if !ok {
			return nil, fmt.Errorf("pin character %q not in alphabet", r)
		}
		pinned[baseline.Pos[c]] = c
	}
	return pinned, nil
}

// identityPermutation builds the slot==char baseline permutation used as
// the pin-resolution frame and as generate's starting point before a
// random shuffle.
func identityPermutation(n int) (*scoring.Permutation, error) {
	chars := make([]int, n)
	for i := range chars {
		chars[i] = i
	}
	return scoring.NewPermutation(chars)
}

// parseSeed parses a CLI --seed flag value (0 means "unset").
func parseSeed(raw uint64, fallback string) uint64 {
	if raw != 0 {
		return raw
	}
	h := uint64(14695981039346656037)
	for _, r := range fallback {
		h ^= uint64(r)
		h *= 1099511628211
	}
	return h
}
