package peerqueue

import (
	"sync"

	"github.com/liteseed/gatewaycore/chooser"
)

const (
	// MinWeight is the floor a non-preferred peer's weight can cool to.
	MinWeight = 1
	// MaxWeight is the ceiling any peer's weight can warm to.
	MaxWeight = 100
	// DefaultDiscoveredWeight is a newly seen peer's starting weight.
	DefaultDiscoveredWeight = 50
	// DefaultPreferredWeight is a DNS-pinned preferred peer's starting
	// (and never-cooled) weight.
	DefaultPreferredWeight = 100
)

type peerWeight struct {
	weight    int
	preferred bool
}

// WeightTable tracks each peer's current weight, warming on success and
// cooling on failure — except preferred peers, which are never cooled.
type WeightTable struct {
	mu    sync.RWMutex
	peers map[string]*peerWeight
}

// NewWeightTable returns an empty table.
func NewWeightTable() *WeightTable {
	return &WeightTable{peers: make(map[string]*peerWeight)}
}

// Register adds peer if unseen, at the appropriate starting weight for
// its preferred status. Re-registering an already-known peer is a no-op
// (its accumulated weight is preserved).
func (w *WeightTable) Register(peer string, preferred bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.peers[peer]; ok {
		return
	}
	weight := DefaultDiscoveredWeight
	if preferred {
		weight = DefaultPreferredWeight
	}
	w.peers[peer] = &peerWeight{weight: weight, preferred: preferred}
}

func (w *WeightTable) getOrCreate(peer string) *peerWeight {
	p, ok := w.peers[peer]
	if !ok {
		p = &peerWeight{weight: DefaultDiscoveredWeight}
		w.peers[peer] = p
	}
	return p
}

// OnSuccess warms peer's weight by delta, clamped to MaxWeight.
func (w *WeightTable) OnSuccess(peer string, delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.getOrCreate(peer)
	p.weight += delta
	if p.weight > MaxWeight {
		p.weight = MaxWeight
	}
}

// OnFailure cools peer's weight by delta, clamped to MinWeight — unless
// peer is preferred, in which case it is left untouched.
func (w *WeightTable) OnFailure(peer string, delta int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.getOrCreate(peer)
	if p.preferred {
		return
	}
	p.weight -= delta
	if p.weight < MinWeight {
		p.weight = MinWeight
	}
}

// IsPreferred reports whether peer is registered as preferred. An
// unknown peer is reported as not preferred.
func (w *WeightTable) IsPreferred(peer string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.peers[peer]
	return ok && p.preferred
}

// Weight returns peer's current weight and whether it is known.
func (w *WeightTable) Weight(peer string) (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.peers[peer]
	if !ok {
		return 0, false
	}
	return p.weight, true
}

// Weighted snapshots every known peer as a chooser.Weighted, ready to
// feed into chooser.Choose for the next selection round.
func (w *WeightTable) Weighted() []chooser.Weighted {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]chooser.Weighted, 0, len(w.peers))
	for id, p := range w.peers {
		out = append(out, chooser.Weighted{ID: id, Weight: p.weight})
	}
	return out
}
