package scoring

import (
	"math/rand/v2"

	"github.com/keyforge/keyforge/internal/geometry"
)

// MutationKind identifies one of the tiered mutation classes from spec.md
// §4.3's search-engine mutation policy.
type MutationKind int

const (
	MutationSingleSwap MutationKind = iota
	MutationFingerColumnSwap
	MutationCrossTierSwap
	MutationRotate3
)

// Mutator proposes in-place permutation edits that respect a fixed set of
// pinned slots, tracking which slots were touched so callers (the search
// engine's incremental rescorer) can limit rescoring to the affected keys.
type Mutator struct {
	geo    *geometry.KeyboardGeometry
	pinned PinnedKeys
}

func NewMutator(geo *geometry.KeyboardGeometry, pinned PinnedKeys) *Mutator {
	return &Mutator{geo: geo, pinned: pinned}
}

// Apply performs one mutation of the given kind against perm using rng for
// randomness, returning the slots whose assigned character changed. perm is
// mutated in place; callers that need the pre-mutation state should Clone
// first.
func (m *Mutator) Apply(perm *Permutation, kind MutationKind, rng *rand.Rand) []int {
	switch kind {
	case MutationSingleSwap:
		return m.singleSwap(perm, rng)
	case MutationFingerColumnSwap:
		return m.fingerColumnSwap(perm, rng)
	case MutationCrossTierSwap:
		return m.crossTierSwap(perm, rng)
	case MutationRotate3:
		return m.rotate3(perm, rng)
	default:
		return m.singleSwap(perm, rng)
	}
}

func (m *Mutator) freeSlot(rng *rand.Rand, n int) int {
	for {
		slot := rng.IntN(n)
		if _, pinned := m.pinned[slot]; !pinned {
			return slot
		}
	}
}

// singleSwap exchanges two arbitrary, unpinned slots.
func (m *Mutator) singleSwap(perm *Permutation, rng *rand.Rand) []int {
	n := len(perm.Chars)
	a := m.freeSlot(rng, n)
	b := m.freeSlot(rng, n)
	for b == a {
		b = m.freeSlot(rng, n)
	}
	perm.Swap(a, b)
	return []int{a, b}
}

// fingerColumnSwap swaps two slots assigned to the same finger, a narrower
// move than singleSwap used to fine-tune within-finger assignments.
func (m *Mutator) fingerColumnSwap(perm *Permutation, rng *rand.Rand) []int {
	candidates := m.slotsGroupedByFinger()
	for attempt := 0; attempt < 8 && len(candidates) > 0; attempt++ {
		group := candidates[rng.IntN(len(candidates))]
		if len(group) < 2 {
			continue
		}
		a := group[rng.IntN(len(group))]
		b := group[rng.IntN(len(group))]
		if a == b {
			continue
		}
		perm.Swap(a, b)
		return []int{a, b}
	}
	return m.singleSwap(perm, rng)
}

// crossTierSwap swaps a slot in one comfort tier with a slot in another, the
// move most likely to relocate a frequent character into a better tier.
func (m *Mutator) crossTierSwap(perm *Permutation, rng *rand.Rand) []int {
	n := len(perm.Chars)
	a := m.freeSlot(rng, n)
	tierA := m.geo.TierOf(a)
	for attempt := 0; attempt < 16; attempt++ {
		b := m.freeSlot(rng, n)
		if b == a {
			continue
		}
		if m.geo.TierOf(b) != tierA {
			perm.Swap(a, b)
			return []int{a, b}
		}
	}
	return m.singleSwap(perm, rng)
}

// rotate3 cyclically rotates the characters across three unpinned slots.
func (m *Mutator) rotate3(perm *Permutation, rng *rand.Rand) []int {
	n := len(perm.Chars)
	a := m.freeSlot(rng, n)
	b := m.freeSlot(rng, n)
	for b == a {
		b = m.freeSlot(rng, n)
	}
	c := m.freeSlot(rng, n)
	for c == a || c == b {
		c = m.freeSlot(rng, n)
	}
	ca, cb, cc := perm.Chars[a], perm.Chars[b], perm.Chars[c]
	perm.Chars[a], perm.Chars[b], perm.Chars[c] = cc, ca, cb
	perm.Pos[cc] = a
	perm.Pos[ca] = b
	perm.Pos[cb] = c
	return []int{a, b, c}
}

func (m *Mutator) slotsGroupedByFinger() [][]int {
	groups := make(map[[2]uint8][]int)
	for i, k := range m.geo.Keys {
		if _, pinned := m.pinned[i]; pinned {
			continue
		}
		key := [2]uint8{k.Hand, k.Finger}
		groups[key] = append(groups[key], i)
	}
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}
