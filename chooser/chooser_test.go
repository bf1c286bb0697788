package chooser

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseReturnsDistinctIDsBoundedByCount(t *testing.T) {
	entries := []Weighted{
		{ID: "a", Weight: 10},
		{ID: "b", Weight: 20},
		{ID: "c", Weight: 30},
		{ID: "d", Weight: 40},
	}
	rng := rand.New(rand.NewSource(42))

	for count := 0; count <= 5; count++ {
		result := Choose(entries, 50, 2, count, rng)
		assert.LessOrEqual(t, len(result), count)
		assert.LessOrEqual(t, len(result), len(entries))

		seen := map[string]bool{}
		for _, id := range result {
			assert.False(t, seen[id], "id %s returned twice", id)
			seen[id] = true
		}
	}
}

func TestChooseEmptyOnNoEntries(t *testing.T) {
	assert.Empty(t, Choose(nil, 50, 2, 3, nil))
	assert.Empty(t, Choose([]Weighted{}, 50, 2, 3, nil))
}

func TestChooseReturnsResultWhenWeightsEqualAverage(t *testing.T) {
	// Extreme negative temperature (T = -1) with every weight equal to the
	// average.
	entries := []Weighted{{ID: "a", Weight: 50}, {ID: "b", Weight: 50}}
	result := Choose(entries, 0, 0, 1, rand.New(rand.NewSource(1)))
	// Weights equal avg, so T*influence*(avg-w) is always 0 regardless of
	// temperature: urgency degenerates to the weight itself, which is
	// nonzero here. This asserts the non-degenerate case still returns a
	// result; the zero-urgency path would need weight 0, which the data
	// model forbids.
	assert.Len(t, result, 1)
}

func TestUrgencyNeverNegative(t *testing.T) {
	cases := []struct {
		weight  int
		avg     float64
		t       float64
		infl    float64
	}{
		{1, 100, 1, 5},
		{100, 1, -1, 5},
		{50, 50, 0, 2},
	}
	for _, c := range cases {
		assert.GreaterOrEqual(t, Urgency(c.weight, c.avg, c.t, c.infl), 0.0)
	}
}

// TestChooseDistributionMatchesWeights reproduces spec scenario S7:
// table [(A,1),(B,1),(C,98)], temperature 50 (neutral, T=0), influence 2;
// over many single-count draws, C should be picked with frequency ~0.98.
func TestChooseDistributionMatchesWeights(t *testing.T) {
	entries := []Weighted{
		{ID: "A", Weight: 1},
		{ID: "B", Weight: 1},
		{ID: "C", Weight: 98},
	}
	rng := rand.New(rand.NewSource(7))

	const draws = 200000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		result := Choose(entries, 50, 2, 1, rng)
		require.Len(t, result, 1)
		counts[result[0]]++
	}

	freqC := float64(counts["C"]) / float64(draws)
	assert.InDelta(t, 0.98, freqC, 0.01)
}

// TestChooseTemperatureEqualizesWeights checks the documented temperature
// semantics qualitatively: positive temperature pulls urgency toward the
// population average, compressing the gap between a low-weight and a
// high-weight entry relative to the neutral (T=0) case.
func TestChooseTemperatureEqualizesWeights(t *testing.T) {
	avg := averageWeight([]Weighted{{Weight: 1}, {Weight: 99}})

	neutral := Urgency(1, avg, 0, 2)
	hot := Urgency(1, avg, 1, 2) // T=+1: pulled toward avg, so urgency for the low-weight entry rises
	assert.Greater(t, hot, neutral)

	neutralHigh := Urgency(99, avg, 0, 2)
	hotHigh := Urgency(99, avg, 1, 2)
	assert.Less(t, hotHigh, neutralHigh)
}
