// Package chooser implements temperature-adjusted weighted random
// selection: given a set of weighted ids, draw a bounded number of
// distinct ids with probability proportional to each id's "urgency",
// a weight pulled toward (temperature above 50) or pushed away from
// (temperature below 50) the population average. Every per-peer dispatch in
// chainclient and peerqueue goes through this to pick which peer serves
// a request.
package chooser

import "math/rand"

// Weighted is one candidate: an identifier (a peer URL, typically) and
// its current weight in [1,100].
type Weighted struct {
	ID     string
	Weight int
}

// maxDrawAttempts bounds the retry loop used to dodge the floating-point
// edge case where a uniform draw lands exactly on the final cumulative
// boundary; pathological distributions (e.g. a single nonzero-weight
// entry) should never spin past this.
const maxDrawAttempts = 100

// Choose draws up to count distinct ids from entries. temperature is in
// [0,100] and is mapped to T ∈ [-1,+1] (50 ⇒ neutral); influence scales
// how strongly each id's weight is pulled toward (T>0) or pushed away
// from (T<0) the population average. Returns fewer than count ids (even
// zero) if every remaining urgency hits zero before count draws are
// made — this is the documented graceful-failure path, not an error.
func Choose(entries []Weighted, temperature int, influence float64, count int, rng *rand.Rand) []string {
	if count <= 0 || len(entries) == 0 {
		return []string{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	avg := averageWeight(entries)
	t := float64(temperature)/50 - 1

	remaining := append([]Weighted(nil), entries...)
	result := make([]string, 0, count)

	for len(result) < count && len(remaining) > 0 {
		id, idx, ok := drawOne(remaining, avg, t, influence, rng)
		if !ok {
			break
		}
		result = append(result, id)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return result
}

func averageWeight(entries []Weighted) float64 {
	sum := 0
	for _, e := range entries {
		sum += e.Weight
	}
	return float64(sum) / float64(len(entries))
}

// Urgency computes a single entry's draw weight under temperature t and
// influence: max(0, weight + t*influence*(avg-weight)). Exported so
// callers (and tests) can check invariant 1 directly.
func Urgency(weight int, avg, t, influence float64) float64 {
	u := float64(weight) + t*influence*(avg-float64(weight))
	if u < 0 {
		return 0
	}
	return u
}

func drawOne(remaining []Weighted, avg, t, influence float64, rng *rand.Rand) (id string, idx int, ok bool) {
	cum := make([]float64, len(remaining))
	total := 0.0
	for i, e := range remaining {
		total += Urgency(e.Weight, avg, t, influence)
		cum[i] = total
	}
	if total <= 0 {
		return "", -1, false
	}

	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		target := rng.Float64() * total
		for i, c := range cum {
			if target < c {
				return remaining[i].ID, i, true
			}
		}
	}
	last := len(remaining) - 1
	return remaining[last].ID, last, true
}
