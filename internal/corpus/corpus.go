// Package corpus loads and caches preprocessed n-gram frequency tables: the
// dense per-character monogram/bigram tables and bounded top-K trigram list
// the Scoring Engine evaluates against, plus the geometry's cost matrix.
//
// Ingestion format and caching strategy are adapted from the teacher's
// text-corpus loader (NewCorpusFromFile / JSON mtime cache), reworked from
// free-text ingestion to the spec's pre-counted `<ngram>\t<count>` TSV rows
// and from map-based storage to dense arrays indexed by internal character
// id, since the Scoring Engine's hot loop needs O(1) array lookups rather
// than map probes.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/keyforge/keyforge/internal/geometry"
)

// ErrParse reports a malformed corpus row.
type ErrParse struct {
	Path string
	Line int
	Msg  string
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("corpus %q: parse error at line %d: %s", e.Path, e.Line, e.Msg)
}

// ErrAlphabetMismatch reports a weights tag referencing unknown characters.
type ErrAlphabetMismatch struct {
	Rune rune
}

func (e *ErrAlphabetMismatch) Error() string {
	return fmt.Sprintf("character %q is not part of the scoring alphabet", e.Rune)
}

// TrigramFreq is one of the bounded top-K trigrams kept for the trigram
// pass, identified by internal character indices.
type TrigramFreq struct {
	I, J, K int
	Weight  float64
}

// Corpus holds the dense frequency tables and cost matrix a Scorer needs.
// Immutable after construction; safe to share by reference across goroutines.
type Corpus struct {
	Name      string
	Alphabet  []rune
	charIndex map[rune]int

	Freq1 []float64   // Freq1[i]: monogram weight of character i
	Freq2 [][]float64 // Freq2[i][j]: bigram weight of transition i -> j

	TopTrigrams []TrigramFreq

	TotalBigram  float64
	TotalTrigram float64

	Cost *geometry.CostMatrix
}

// CharIndex returns the internal index of r, or false if r is not in the
// scoring alphabet.
func (c *Corpus) CharIndex(r rune) (int, bool) {
	i, ok := c.charIndex[r]
	return i, ok
}

// cacheKey identifies a cached Corpus by its three defining inputs.
type cacheKey struct {
	corpusName     string
	costMatrixName string
	geometryHash   string
}

// Loader caches Corpus instances by (corpus_name, cost_matrix_name,
// geometry_hash) and collapses concurrent loads of the same key via
// singleflight, so two goroutines racing to load the same corpus do one
// parse between them.
type Loader struct {
	dataDir string

	mu    sync.RWMutex
	cache map[cacheKey]*Corpus

	group singleflight.Group
}

// NewLoader constructs a Loader rooted at dataDir (the `corpora/` and
// `cost_matrices/` subtree described in spec §6).
func NewLoader(dataDir string) *Loader {
	return &Loader{
		dataDir: dataDir,
		cache:   make(map[cacheKey]*Corpus),
	}
}

// Load resolves a (possibly blended) corpus spec, a cost matrix name, and
// a geometry into a cached Corpus, loading and merging component files on
// a cache miss.
//
// corpusSpec syntax: "name" or a weighted blend
// "name1:weight1,name2:weight2,...".
func (l *Loader) Load(corpusSpec, costMatrixName string, geo *geometry.KeyboardGeometry, alphabet []rune, trigramLimit int) (*Corpus, error) {
	key := cacheKey{corpusSpec, costMatrixName, geometryHash(geo)}

	l.mu.RLock()
	if c, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return c, nil
	}
	l.mu.RUnlock()

	result, err, _ := l.group.Do(fmt.Sprintf("%s|%s|%s", key.corpusName, key.costMatrixName, key.geometryHash), func() (interface{}, error) {
		l.mu.RLock()
		if c, ok := l.cache[key]; ok {
			l.mu.RUnlock()
			return c, nil
		}
		l.mu.RUnlock()

		c, err := l.loadFresh(corpusSpec, costMatrixName, geo, alphabet, trigramLimit)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.cache[key] = c
		l.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Corpus), nil
}

func (l *Loader) loadFresh(corpusSpec, costMatrixName string, geo *geometry.KeyboardGeometry, alphabet []rune, trigramLimit int) (*Corpus, error) {
	components, err := parseBlendSpec(corpusSpec)
	if err != nil {
		return nil, err
	}

	charIndex := make(map[rune]int, len(alphabet))
	for i, r := range alphabet {
		charIndex[r] = i
	}

	n := len(alphabet)
	freq1 := make([]float64, n)
	freq2 := make([][]float64, n)
	for i := range freq2 {
		freq2[i] = make([]float64, n)
	}
	triWeights := make(map[[3]int]float64)

	for _, comp := range components {
		path := filepath.Join(l.dataDir, "corpora", comp.name, "1grams.csv")
		if err := accumulateNGramFile(path, comp.weight, 1, charIndex, freq1, nil, nil); err != nil {
			return nil, err
		}
		path2 := filepath.Join(l.dataDir, "corpora", comp.name, "2grams.csv")
		if err := accumulateNGramFile(path2, comp.weight, 2, charIndex, nil, freq2, nil); err != nil {
			return nil, err
		}
		path3 := filepath.Join(l.dataDir, "corpora", comp.name, "3grams.tsv")
		if _, err := os.Stat(path3); err == nil {
			if err := accumulateTrigramFile(path3, comp.weight, charIndex, triWeights); err != nil {
				return nil, err
			}
		}
	}

	topTrigrams := topKTrigrams(triWeights, trigramLimit)

	var totalBigram, totalTrigram float64
	for _, row := range freq2 {
		for _, v := range row {
			totalBigram += v
		}
	}
	for _, t := range topTrigrams {
		totalTrigram += t.Weight
	}

	costMatrix, err := geometry.LoadCostMatrix(costMatrixName, filepath.Join(l.dataDir, "cost_matrices", costMatrixName+".csv"), geo.NumSlots())
	if err != nil {
		return nil, err
	}

	return &Corpus{
		Name:         corpusSpec,
		Alphabet:     alphabet,
		charIndex:    charIndex,
		Freq1:        freq1,
		Freq2:        freq2,
		TopTrigrams:  topTrigrams,
		TotalBigram:  totalBigram,
		TotalTrigram: totalTrigram,
		Cost:         costMatrix,
	}, nil
}

type blendComponent struct {
	name   string
	weight float64
}

// parseBlendSpec parses "name" or "name1:w1,name2:w2,..." blend syntax.
func parseBlendSpec(spec string) ([]blendComponent, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty corpus spec")
	}

	var out []blendComponent
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		nameWeight := strings.SplitN(part, ":", 2)
		name := nameWeight[0]
		weight := 1.0
		if len(nameWeight) == 2 {
			w, err := strconv.ParseFloat(nameWeight[1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid blend weight in %q: %w", part, err)
			}
			weight = w
		}
		out = append(out, blendComponent{name: name, weight: weight})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no components found in corpus spec %q", spec)
	}
	return out, nil
}

// accumulateNGramFile reads `<ngram>\t<count>` rows from path and adds
// weight*count into freq1 (order 1) or freq2 (order 2). Characters not in
// charIndex are dropped.
func accumulateNGramFile(path string, weight float64, order int, charIndex map[rune]int, freq1 []float64, freq2 [][]float64, _ any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not open corpus file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return &ErrParse{Path: path, Line: lineNo, Msg: "expected <ngram>\\t<count>"}
		}
		ngram := strings.ToLower(fields[0])
		runes := []rune(ngram)
		if len(runes) != order {
			return &ErrParse{Path: path, Line: lineNo, Msg: fmt.Sprintf("expected %d-character ngram, got %q", order, ngram)}
		}
		count, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || math.IsNaN(count) || math.IsInf(count, 0) {
			return &ErrParse{Path: path, Line: lineNo, Msg: fmt.Sprintf("invalid count %q", fields[1])}
		}

		switch order {
		case 1:
			if i, ok := charIndex[runes[0]]; ok {
				freq1[i] += weight * count
			}
		case 2:
			i, ok1 := charIndex[runes[0]]
			j, ok2 := charIndex[runes[1]]
			if ok1 && ok2 {
				freq2[i][j] += weight * count
			}
		}
	}
	return scanner.Err()
}

// accumulateTrigramFile reads `<trigram>\t<count>` rows and accumulates
// weight*count into triWeights keyed by internal character indices.
func accumulateTrigramFile(path string, weight float64, charIndex map[rune]int, triWeights map[[3]int]float64) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not open trigram file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return &ErrParse{Path: path, Line: lineNo, Msg: "expected <trigram>\\t<count>"}
		}
		runes := []rune(strings.ToLower(fields[0]))
		if len(runes) != 3 {
			return &ErrParse{Path: path, Line: lineNo, Msg: fmt.Sprintf("expected 3-character trigram, got %q", fields[0])}
		}
		count, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || math.IsNaN(count) || math.IsInf(count, 0) {
			return &ErrParse{Path: path, Line: lineNo, Msg: fmt.Sprintf("invalid count %q", fields[1])}
		}
		i, ok1 := charIndex[runes[0]]
		j, ok2 := charIndex[runes[1]]
		k, ok3 := charIndex[runes[2]]
		if ok1 && ok2 && ok3 {
			triWeights[[3]int{i, j, k}] += weight * count
		}
	}
	return scanner.Err()
}

// topKTrigrams returns the K highest-weight trigrams, descending by
// weight, ties broken by (i,j,k) for determinism.
func topKTrigrams(weights map[[3]int]float64, k int) []TrigramFreq {
	all := make([]TrigramFreq, 0, len(weights))
	for key, w := range weights {
		all = append(all, TrigramFreq{I: key[0], J: key[1], K: key[2], Weight: w})
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].Weight != all[b].Weight {
			return all[a].Weight > all[b].Weight
		}
		if all[a].I != all[b].I {
			return all[a].I < all[b].I
		}
		if all[a].J != all[b].J {
			return all[a].J < all[b].J
		}
		return all[a].K < all[b].K
	})
	if k > 0 && len(all) > k {
		all = all[:k]
	}
	return all
}

// DefaultAlphabet returns the standard lowercase-letters-plus-punctuation
// alphabet used when no explicit alphabet is configured, sized to exactly
// the given number of assignable slots by trimming low-priority
// punctuation from the tail.
func DefaultAlphabet(numSlots int) []rune {
	base := []rune("etaoinshrdlcumwfgypbvkjxqz,./;'-")
	if numSlots <= 0 || numSlots >= len(base) {
		return base
	}
	return base[:numSlots]
}

// IsRecognized reports whether r is a letter or one of the punctuation
// marks the corpus loader will ever retain (used to pre-filter corpus
// ingestion when the caller wants to skip known-irrelevant characters
// before calling Load).
func IsRecognized(r rune) bool {
	if unicode.IsLetter(r) {
		return true
	}
	switch r {
	case ',', '.', '/', ';', '\'', '-':
		return true
	}
	return false
}

// geometryHash derives a stable cache-key component from a geometry's
// identity. Two geometries with the same Name and slot count are treated as
// identical;
// this mirrors the spec's "(corpus_name, cost_matrix_name, geometry_hash)"
// cache key without pulling in the full canonical-JSON machinery only
// internal/jobid needs.
func geometryHash(geo *geometry.KeyboardGeometry) string {
	return fmt.Sprintf("%s/%d", geo.Name, geo.NumSlots())
}

// MarshalCacheDebug is a small JSON debug dump of a Corpus's shape. Nothing
// in this module calls it.
func (c *Corpus) MarshalCacheDebug() ([]byte, error) {
	type summary struct {
		Name         string  `json:"name"`
		AlphabetSize int     `json:"alphabet_size"`
		TotalBigram  float64 `json:"total_bigram"`
		TotalTrigram float64 `json:"total_trigram"`
		TopTrigrams  int     `json:"top_trigrams"`
	}
	return json.Marshal(summary{
		Name:         c.Name,
		AlphabetSize: len(c.Alphabet),
		TotalBigram:  c.TotalBigram,
		TotalTrigram: c.TotalTrigram,
		TopTrigrams:  len(c.TopTrigrams),
	})
}
