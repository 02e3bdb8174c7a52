package corpus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/geometry"
)

const testDataDir = "../../testdata"

func loadTestGeometry(t *testing.T) *geometry.KeyboardGeometry {
	t.Helper()
	geo, err := geometry.LoadGeometry(testDataDir + "/geometries/mini.json")
	require.NoError(t, err)
	return geo
}

func TestLoadParsesFrequencyTables(t *testing.T) {
	geo := loadTestGeometry(t)
	alphabet := DefaultAlphabet(geo.NumSlots())
	loader := NewLoader(testDataDir)

	c, err := loader.Load("mini", "mini", geo, alphabet, 10)
	require.NoError(t, err)
	require.Equal(t, 4, len(c.Alphabet))

	eIdx, ok := c.CharIndex('e')
	require.True(t, ok)
	require.Equal(t, 1000.0, c.Freq1[eIdx])

	tIdx, _ := c.CharIndex('t')
	require.Equal(t, 300.0, c.Freq2[eIdx][tIdx])
	require.Greater(t, c.TotalTrigram, 0.0)
}

func TestLoadIsCachedByKey(t *testing.T) {
	geo := loadTestGeometry(t)
	alphabet := DefaultAlphabet(geo.NumSlots())
	loader := NewLoader(testDataDir)

	a, err := loader.Load("mini", "mini", geo, alphabet, 10)
	require.NoError(t, err)
	b, err := loader.Load("mini", "mini", geo, alphabet, 10)
	require.NoError(t, err)
	require.Same(t, a, b, "a repeated Load with the same key must return the cached instance")
}

func TestParseBlendSpecRejectsEmpty(t *testing.T) {
	_, err := parseBlendSpec("")
	require.Error(t, err)
}

func TestParseBlendSpecParsesWeightedComponents(t *testing.T) {
	components, err := parseBlendSpec("mini:0.5, other:2")
	require.NoError(t, err)
	require.Len(t, components, 2)
	require.Equal(t, "mini", components[0].name)
	require.Equal(t, 0.5, components[0].weight)
	require.Equal(t, "other", components[1].name)
	require.Equal(t, 2.0, components[1].weight)
}

func TestDefaultAlphabetTrimsToSlotCount(t *testing.T) {
	require.Equal(t, []rune("etao"), DefaultAlphabet(4))
	require.Len(t, DefaultAlphabet(100), len("etaoinshrdlcumwfgypbvkjxqz,./;'-"))
}

func TestLoadRejectsCostMatrixSizeMismatch(t *testing.T) {
	geo := loadTestGeometry(t)
	alphabet := DefaultAlphabet(geo.NumSlots())
	loader := NewLoader(testDataDir)

	// "mini" cost matrix is 4x4; ask for a geometry with a different slot
	// count so the mismatch check fires.
	badGeo := *geo
	badGeo.Keys = append([]geometry.KeyNode(nil), geo.Keys...)
	badGeo.Keys = badGeo.Keys[:3]
	badGeo.PrimeSlots, badGeo.MedSlots, badGeo.LowSlots = nil, nil, nil

	_, err := loader.Load("mini", "mini", &badGeo, alphabet[:3], 10)
	require.Error(t, err)
}
