package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashSeedIsDeterministic(t *testing.T) {
	a := hashSeed("node-1", "job-1", 0)
	b := hashSeed("node-1", "job-1", 0)
	require.Equal(t, a, b)
}

func TestHashSeedVariesWithRestartCount(t *testing.T) {
	a := hashSeed("node-1", "job-1", 0)
	b := hashSeed("node-1", "job-1", 1)
	require.NotEqual(t, a, b, "a resumed worker must not replay the exact same trajectory")
}

func TestHashSeedVariesWithNodeAndJob(t *testing.T) {
	base := hashSeed("node-1", "job-1", 0)
	require.NotEqual(t, base, hashSeed("node-2", "job-1", 0))
	require.NotEqual(t, base, hashSeed("node-1", "job-2", 0))
}

func TestMinDuration(t *testing.T) {
	require.Equal(t, time.Second, minDuration(time.Second, 2*time.Second))
	require.Equal(t, time.Second, minDuration(2*time.Second, time.Second))
}
