// Package scoring implements the Scoring Engine: the hot-loop evaluator
// that converts a layout permutation plus a preprocessed Corpus into a
// scalar cost and a breakdown of ergonomic statistics (spec.md §4.2).
//
// Classification logic (SFB subtypes, scissors, rolls, redirects, skips)
// is grounded on the teacher's Analyser (internal/keycraft/analyser.go):
// the same bigram/trigram sweep-and-classify shape, generalized from the
// teacher's hardcoded 42-key split geometry to an arbitrary loaded
// geometry.KeyboardGeometry, and from the teacher's robust-normalized
// score to the spec's absolute weighted-cost sum.
package scoring

import (
	"fmt"
	"strings"

	"github.com/keyforge/keyforge/internal/geometry"
)

// Permutation maps slot index -> internal character index. Length equals
// the geometry's slot count; every index in 0..len(Alphabet)-1 appears
// exactly once when the permutation is full (spec.md §3).
type Permutation struct {
	Chars []int // Chars[slot] = char index
	Pos   []int // Pos[char] = slot index (inverse of Chars)
}

// NewPermutation builds a Permutation from a slot->char assignment,
// deriving the inverse Pos mapping. Returns an error if the assignment is
// not a bijection.
func NewPermutation(chars []int) (*Permutation, error) {
	pos := make([]int, len(chars))
	for i := range pos {
		pos[i] = -1
	}
	for slot, c := range chars {
		if c < 0 || c >= len(chars) {
			return nil, fmt.Errorf("permutation: char index %d at slot %d out of range", c, slot)
		}
		if pos[c] != -1 {
			return nil, fmt.Errorf("permutation: char index %d assigned to both slot %d and slot %d", c, pos[c], slot)
		}
		pos[c] = slot
	}
	for c, slot := range pos {
		if slot == -1 {
			return nil, fmt.Errorf("permutation: char index %d never assigned to a slot", c)
		}
	}
	return &Permutation{Chars: append([]int(nil), chars...), Pos: pos}, nil
}

// Clone returns a deep copy of the permutation.
func (p *Permutation) Clone() *Permutation {
	return &Permutation{
		Chars: append([]int(nil), p.Chars...),
		Pos:   append([]int(nil), p.Pos...),
	}
}

// Swap exchanges the characters assigned to two slots, maintaining the
// inverse Pos mapping.
func (p *Permutation) Swap(slotA, slotB int) {
	if slotA == slotB {
		return
	}
	ca, cb := p.Chars[slotA], p.Chars[slotB]
	p.Chars[slotA], p.Chars[slotB] = cb, ca
	p.Pos[ca], p.Pos[cb] = slotB, slotA
}

// PinnedKeys is a fixed slot->char mapping excluded from every mutation.
type PinnedKeys map[int]int

// Validate checks pinned characters don't collide (spec.md §4.3).
func (pk PinnedKeys) Validate() error {
	seen := make(map[int]int, len(pk))
	for slot, char := range pk {
		if other, ok := seen[char]; ok {
			return fmt.Errorf("pinned character %d assigned to both slot %d and slot %d", char, other, slot)
		}
		seen[char] = slot
	}
	return nil
}

// RespectsPins reports whether p assigns every pinned slot its pinned
// character.
func (p *Permutation) RespectsPins(pinned PinnedKeys) bool {
	for slot, char := range pinned {
		if p.Chars[slot] != char {
			return false
		}
	}
	return true
}

// CanonicalString renders the permutation as the wire format from spec §6:
// space-separated tokens in slot order, one per assignable slot.
func (p *Permutation) CanonicalString(alphabet []rune) string {
	out := make([]byte, 0, len(p.Chars)*2)
	for i, c := range p.Chars {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, []byte(formatToken(alphabet[c]))...)
	}
	return string(out)
}

// ParsePermutation is CanonicalString's inverse: it decodes a space-
// separated token sequence back into a Permutation over alphabet,
// satisfying spec.md §8's round-trip law
// (ParsePermutation(CanonicalString(p)) == p).
func ParsePermutation(s string, alphabet []rune) (*Permutation, error) {
	charOf := make(map[string]int, len(alphabet))
	for i, r := range alphabet {
		charOf[formatToken(r)] = i
	}

	tokens := strings.Fields(s)
	if len(tokens) != len(alphabet) {
		return nil, fmt.Errorf("permutation: expected %d tokens, got %d", len(alphabet), len(tokens))
	}

	chars := make([]int, len(tokens))
	for slot, tok := range tokens {
		c, ok := charOf[tok]
		if !ok {
			return nil, fmt.Errorf("permutation: unrecognized token %q at slot %d", tok, slot)
		}
		chars[slot] = c
	}
	return NewPermutation(chars)
}

func formatToken(r rune) string {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return string(r)
	default:
		return fmt.Sprintf("KC_%c", r)
	}
}

// slotInfo is a flattened view of a geometry.KeyNode used throughout the
// scoring passes.
type slotInfo struct {
	hand   uint8
	finger uint8
	row    int
	col    int
	x, y   float64
	stretch bool
	tier   geometry.Tier
}

func buildSlotInfo(geo *geometry.KeyboardGeometry) []slotInfo {
	out := make([]slotInfo, len(geo.Keys))
	for i, k := range geo.Keys {
		out[i] = slotInfo{
			hand:    k.Hand,
			finger:  k.Finger,
			row:     k.Row,
			col:     k.Column,
			x:       k.X,
			y:       k.Y,
			stretch: k.IsStretch,
			tier:    geo.TierOf(i),
		}
	}
	return out
}
