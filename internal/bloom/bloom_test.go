package bloom

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimalParams(t *testing.T) {
	m, k, err := OptimalParams(1000, 0.01)
	require.NoError(t, err)
	// Standard formulas: m = ceil(-n ln p / (ln 2)^2), k = ceil(m/n * ln 2).
	wantM := uint64(math.Ceil(-1000 * math.Log(0.01) / (math.Ln2 * math.Ln2)))
	assert.Equal(t, wantM, m)
	wantK := uint64(math.Ceil(float64(wantM) / 1000 * math.Ln2))
	assert.Equal(t, wantK, k)
}

func TestOptimalParamsRejectsBadInput(t *testing.T) {
	for _, tc := range []struct {
		n int
		p float64
	}{
		{0, 0.01}, {-1, 0.01}, {100, 0}, {100, 1}, {100, 1.5},
	} {
		_, _, err := OptimalParams(tc.n, tc.p)
		assert.Error(t, err, "n=%d p=%v", tc.n, tc.p)
	}
}

func TestNoFalseNegatives(t *testing.T) {
	f, err := New(1000, 0.01)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		f.Add(fmt.Sprintf("https://example.com/page/%d", i))
	}
	for i := 0; i < 1000; i++ {
		assert.True(t, f.Contains(fmt.Sprintf("https://example.com/page/%d", i)))
	}
}

func TestFalsePositiveRateBound(t *testing.T) {
	const n = 5000
	const p = 0.01
	f, err := New(n, p)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		f.Add(fmt.Sprintf("inserted-%d", i))
	}

	falsePositives := 0
	const probes = 10000
	for i := 0; i < probes; i++ {
		if f.Contains(fmt.Sprintf("absent-%d", i)) {
			falsePositives++
		}
	}
	measured := float64(falsePositives) / float64(probes)
	// Loose bound to avoid flakiness.
	assert.LessOrEqual(t, measured, 10*p, "measured FPR %v", measured)
}

func TestBatchOperations(t *testing.T) {
	f, err := New(100, 0.01)
	require.NoError(t, err)

	items := []string{"a", "b", "c"}
	f.AddBatch(items)
	assert.Equal(t, uint64(3), f.Len())

	got := f.ContainsBatch([]string{"a", "b", "c", "definitely-not-added-xyzzy"})
	assert.True(t, got[0])
	assert.True(t, got[1])
	assert.True(t, got[2])
}

func TestStats(t *testing.T) {
	f, err := New(1000, 0.001)
	require.NoError(t, err)

	stats := f.Stats()
	assert.Zero(t, stats.ItemsAdded)
	assert.Zero(t, stats.SetBits)
	assert.Zero(t, stats.EstimatedFPR)
	assert.Equal(t, int((stats.SizeBits+7)/8), stats.MemoryBytes)

	f.Add("x")
	stats = f.Stats()
	assert.Equal(t, uint64(1), stats.ItemsAdded)
	assert.Positive(t, stats.SetBits)
	assert.LessOrEqual(t, stats.SetBits, stats.NumHashes)
	assert.Positive(t, stats.FillRatio)
}

func TestNewWithParams(t *testing.T) {
	f, err := NewWithParams(64, 3)
	require.NoError(t, err)
	f.Add("key")
	assert.True(t, f.Contains("key"))

	_, err = NewWithParams(0, 3)
	assert.Error(t, err)
	_, err = NewWithParams(64, 0)
	assert.Error(t, err)
}
