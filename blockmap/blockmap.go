// Package blockmap implements the coarse byte-offset to block-height
// interval index: a small, infrequently-reloaded table that narrows a
// weave offset to a [low, high] block-height search window before the
// chain client walks actual blocks to pin down an exact height.
package blockmap

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Interval is one (offset, blockHeight) sample point in the table.
type Interval struct {
	Offset      uint64 `json:"offset"`
	BlockHeight uint64 `json:"blockHeight"`
}

// Mapping is a loaded block↔offset interval table.
type Mapping struct {
	Version          string     `json:"version"`
	GeneratedAt      time.Time  `json:"generatedAt"`
	CurrentHeight    uint64     `json:"currentHeight"`
	CurrentWeaveSize uint64     `json:"currentWeaveSize"`
	IntervalBytes    uint64     `json:"intervalBytes"`
	Intervals        []Interval `json:"intervals"`
}

// Bounds is the search window returned for a target offset: the caller
// walks block heights in [Low, High] looking for the one containing the
// offset.
type Bounds struct {
	Low  uint64
	High uint64
}

// Load parses and validates a block↔offset mapping. It rejects a mapping
// with fewer than two intervals or one that is not strictly monotonic in
// both offset and block height — a malformed or stale table is worse
// than none, since a wrong bound silently narrows the search past the
// real answer.
func Load(data []byte) (*Mapping, error) {
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("blockmap: parse: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Mapping) validate() error {
	if len(m.Intervals) < 2 {
		return fmt.Errorf("blockmap: need at least 2 intervals, got %d", len(m.Intervals))
	}
	for i := 1; i < len(m.Intervals); i++ {
		prev, cur := m.Intervals[i-1], m.Intervals[i]
		if cur.Offset <= prev.Offset {
			return fmt.Errorf("blockmap: offsets not strictly monotonic at index %d", i)
		}
		if cur.BlockHeight <= prev.BlockHeight {
			return fmt.Errorf("blockmap: block heights not strictly monotonic at index %d", i)
		}
	}
	return nil
}

// GetSearchBounds narrows targetOffset to a [lowHeight, highHeight]
// block-height window. If targetOffset precedes the first interval, the
// window is [0, intervals[0].BlockHeight]. If it meets or exceeds the
// last interval's offset, the window is [intervals[last].BlockHeight,
// currentHeight]. Otherwise it is the bracketing pair of intervals; an
// exact boundary hit on intervals[i].Offset makes that interval the low
// bound.
func (m *Mapping) GetSearchBounds(targetOffset uint64, currentHeight uint64) (*Bounds, error) {
	if len(m.Intervals) < 2 {
		return nil, fmt.Errorf("blockmap: mapping not loaded")
	}

	// idx is the first index whose offset exceeds targetOffset.
	idx := sort.Search(len(m.Intervals), func(i int) bool {
		return m.Intervals[i].Offset > targetOffset
	})

	if idx == 0 {
		return &Bounds{Low: 0, High: m.Intervals[0].BlockHeight}, nil
	}
	low := idx - 1
	if low == len(m.Intervals)-1 {
		return &Bounds{Low: m.Intervals[low].BlockHeight, High: currentHeight}, nil
	}
	return &Bounds{Low: m.Intervals[low].BlockHeight, High: m.Intervals[low+1].BlockHeight}, nil
}
