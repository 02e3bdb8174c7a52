// Package geometry models the physical keyboard a layout search runs
// against: key positions, hand/finger assignment, comfort tiers, and the
// Fitts-style slot-to-slot cost matrix the Scoring Engine consumes.
package geometry

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

const (
	HandLeft  uint8 = 0
	HandRight uint8 = 1
)

const (
	FingerThumb uint8 = iota
	FingerIndex
	FingerMiddle
	FingerRing
	FingerPinky
)

// KeyNode is one physical key slot.
type KeyNode struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w,omitempty"`
	H         float64 `json:"h,omitempty"`
	Row       int     `json:"row"`
	Column    int     `json:"column"`
	Hand      uint8   `json:"hand"`
	Finger    uint8   `json:"finger"`
	IsStretch bool    `json:"is_stretch,omitempty"`
}

// width returns W, defaulting to 1 when unset.
func (k KeyNode) width() float64 {
	if k.W == 0 {
		return 1
	}
	return k.W
}

// height returns H, defaulting to 1 when unset.
func (k KeyNode) height() float64 {
	if k.H == 0 {
		return 1
	}
	return k.H
}

// KeyboardGeometry is an ordered sequence of key slots plus the named
// tier sets and home row used by the Scoring Engine's tier pass.
type KeyboardGeometry struct {
	Name       string    `json:"name"`
	Keys       []KeyNode `json:"keys"`
	PrimeSlots []int     `json:"prime_slots"`
	MedSlots   []int     `json:"med_slots"`
	LowSlots   []int     `json:"low_slots"`
	HomeRow    int       `json:"home_row"`
}

// Tier identifies a slot's comfort classification.
type Tier uint8

const (
	TierNone Tier = iota
	TierPrime
	TierMed
	TierLow
)

// Validate checks the structural invariants from spec §3: the three tier
// sets are pairwise disjoint and every referenced slot index is in bounds.
func (g *KeyboardGeometry) Validate() error {
	n := len(g.Keys)
	seen := make(map[int]Tier, n)

	assign := func(slots []int, tier Tier) error {
		for _, idx := range slots {
			if idx < 0 || idx >= n {
				return fmt.Errorf("geometry %q: slot index %d out of bounds (0..%d)", g.Name, idx, n-1)
			}
			if existing, ok := seen[idx]; ok {
				return fmt.Errorf("geometry %q: slot %d assigned to both tier %d and tier %d", g.Name, idx, existing, tier)
			}
			seen[idx] = tier
		}
		return nil
	}

	if err := assign(g.PrimeSlots, TierPrime); err != nil {
		return err
	}
	if err := assign(g.MedSlots, TierMed); err != nil {
		return err
	}
	if err := assign(g.LowSlots, TierLow); err != nil {
		return err
	}
	return nil
}

// TierOf returns the comfort tier of the given slot index.
func (g *KeyboardGeometry) TierOf(slot int) Tier {
	for _, i := range g.PrimeSlots {
		if i == slot {
			return TierPrime
		}
	}
	for _, i := range g.MedSlots {
		if i == slot {
			return TierMed
		}
	}
	for _, i := range g.LowSlots {
		if i == slot {
			return TierLow
		}
	}
	return TierNone
}

// NumSlots returns the number of physical key slots in the geometry.
func (g *KeyboardGeometry) NumSlots() int {
	return len(g.Keys)
}

// LoadGeometry reads a KeyboardGeometry from a keyboards/<id>.json file and
// validates its tier-set invariants.
func LoadGeometry(path string) (*KeyboardGeometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read geometry %q: %w", path, err)
	}
	var g KeyboardGeometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("could not parse geometry %q: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// SlotDistance holds precomputed distance metrics between two slots.
type SlotDistance struct {
	RowDist    float64
	ColDist    float64
	FingerDist uint8
	Distance   float64
}

// PairwiseDistances precomputes Euclidean, row, and column distances
// between every pair of slots on the same hand, mirroring the teacher's
// calcKeyDistances but driven off loaded (x, y) positions instead of a
// hardcoded 42-key table.
func (g *KeyboardGeometry) PairwiseDistances() map[[2]int]SlotDistance {
	n := len(g.Keys)
	out := make(map[[2]int]SlotDistance, n*n/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ki, kj := g.Keys[i], g.Keys[j]
			if ki.Hand != kj.Hand {
				continue
			}
			dx := math.Abs(ki.X - kj.X)
			dy := math.Abs(ki.Y - kj.Y)
			dist := math.Hypot(dx, dy)
			fd := absUint8(ki.Finger, kj.Finger)
			sd := SlotDistance{RowDist: dy, ColDist: dx, FingerDist: fd, Distance: dist}
			out[[2]int{i, j}] = sd
			out[[2]int{j, i}] = sd
		}
	}
	return out
}

func absUint8(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// CostMatrix is an N x N table of milliseconds-per-transition between
// physical slots, parsed from a cost_matrices/<name>.csv file.
type CostMatrix struct {
	Name string
	N    int
	Cost [][]float64
}

// ErrSizeMismatch indicates the cost matrix's dimension does not equal the
// geometry's slot count.
type ErrSizeMismatch struct {
	Expected, Got int
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("cost matrix size mismatch: expected %d slots, got %d", e.Expected, e.Got)
}

// LoadCostMatrix parses an N x N CSV of per-transition milliseconds and
// validates it against the geometry's slot count.
func LoadCostMatrix(name, path string, numSlots int) (*CostMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open cost matrix %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse cost matrix %q: %w", path, err)
		}
		row := make([]float64, len(rec))
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("cost matrix %q: non-numeric value %q at row %d: %w", path, field, len(rows), err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("cost matrix %q: non-finite value at row %d", path, len(rows))
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	if len(rows) != numSlots {
		return nil, &ErrSizeMismatch{Expected: numSlots, Got: len(rows)}
	}
	for _, row := range rows {
		if len(row) != numSlots {
			return nil, &ErrSizeMismatch{Expected: numSlots, Got: len(row)}
		}
	}

	return &CostMatrix{Name: name, N: numSlots, Cost: rows}, nil
}
