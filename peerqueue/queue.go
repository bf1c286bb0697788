// Package peerqueue gives each known peer its own bounded concurrent
// submission queue and tracks the success/failure weight that feeds the
// chooser's next selection round. The concurrency pattern is the
// teacher's chunk-upload pool (client/uploader.go's
// ants.NewPoolWithFunc, one bounded worker pool submitting transaction
// chunks concurrently and waiting on each result) generalized from "one
// pool for one transaction's chunks" to "one pool per peer, reused
// across every request that peer ever receives".
package peerqueue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liteseed/gatewaycore/gatewayerr"
	"github.com/liteseed/gatewaycore/log"
	"github.com/panjf2000/ants/v2"
)

// Task is one unit of work addressed to a specific peer — a chunk POST,
// in the spec's own data model, but the queue itself is payload-agnostic.
type Task struct {
	Peer            string
	Chunk           []byte
	AbortTimeout    time.Duration
	ResponseTimeout time.Duration
	Headers         map[string]string
}

// Result is a task's outcome.
type Result struct {
	Success    bool
	StatusCode int
	Err        error
	Canceled   bool
	TimedOut   bool
}

// SubmitFunc performs one task against its peer and returns its
// outcome; it is the queue's only caller-supplied behavior.
type SubmitFunc func(ctx context.Context, task Task) Result

// Config tunes a PeerQueue.
type Config struct {
	// ConcurrencyPerPeer bounds how many of one peer's tasks run at
	// once; further submissions to a saturated peer wait for a free
	// slot, up to QueueDepthThreshold in-flight-or-queued tasks.
	ConcurrencyPerPeer int
	// WeightDelta is how much one success/failure moves a peer's
	// weight (the "temperature-delta" of spec.md's data model).
	WeightDelta int
	// QueueDepthThreshold is how many tasks (in-flight plus queued) a
	// peer may carry before Submit rejects new work for it with
	// gatewayerr.ErrQueueFull instead of blocking, and Broadcast
	// excludes it from new dispatch (spec.md §4.G/§5: "per-peer queue
	// depth is the primary backpressure signal").
	QueueDepthThreshold int
	// BroadcastConcurrency bounds how many peers a single Broadcast
	// call dispatches to at once, independent of each peer's own
	// ConcurrencyPerPeer (spec.md §4.G: "dispatch in parallel under a
	// global concurrency cap").
	BroadcastConcurrency int
}

type job struct {
	ctx    context.Context
	task   Task
	result Result
	done   chan struct{}
}

// PeerQueue lazily creates one bounded ants pool per peer it sees and
// keeps a WeightTable of every peer it has submitted work to.
type PeerQueue struct {
	mu      sync.Mutex
	pools   map[string]*ants.PoolWithFunc
	depths  map[string]*int32
	cfg     Config
	submit  SubmitFunc
	weights *WeightTable
	log     log.Logger
}

// New constructs a PeerQueue that calls submit for every task. A zero
// ConcurrencyPerPeer defaults to 4; a zero WeightDelta defaults to 5.
func New(cfg Config, submit SubmitFunc) *PeerQueue {
	if cfg.ConcurrencyPerPeer <= 0 {
		cfg.ConcurrencyPerPeer = 4
	}
	if cfg.WeightDelta <= 0 {
		cfg.WeightDelta = 5
	}
	if cfg.QueueDepthThreshold <= 0 {
		cfg.QueueDepthThreshold = 4 * cfg.ConcurrencyPerPeer
	}
	if cfg.BroadcastConcurrency <= 0 {
		cfg.BroadcastConcurrency = 8
	}
	return &PeerQueue{
		pools:   make(map[string]*ants.PoolWithFunc),
		depths:  make(map[string]*int32),
		cfg:     cfg,
		submit:  submit,
		weights: NewWeightTable(),
		log:     log.New("peerqueue"),
	}
}

// Weights exposes the peer weight table, e.g. for handing
// chooser.Choose a fresh []chooser.Weighted before each selection round.
func (q *PeerQueue) Weights() *WeightTable { return q.weights }

// RegisterPreferred marks peer as preferred (weight 100, never cooled)
// before any task is submitted to it, so DNS-pinned peers start warm.
func (q *PeerQueue) RegisterPreferred(peer string) {
	q.weights.Register(peer, true)
}

// Submit queues task on its peer's pool. Per spec.md §4.G ("Enqueue
// rejects when depth ≥ threshold"), Submit rejects immediately with
// gatewayerr.ErrQueueFull once that peer already carries
// cfg.QueueDepthThreshold in-flight-or-queued tasks, rather than
// blocking the caller for a free worker slot.
func (q *PeerQueue) Submit(ctx context.Context, task Task) (Result, error) {
	if err := q.reserveSlot(task.Peer); err != nil {
		return Result{}, err
	}
	defer q.releaseSlot(task.Peer)

	pool, err := q.poolFor(task.Peer)
	if err != nil {
		return Result{}, err
	}

	j := &job{ctx: ctx, task: task, done: make(chan struct{})}
	if err := pool.Invoke(j); err != nil {
		return Result{}, fmt.Errorf("%w: submitting to peer queue: %v", gatewayerr.ErrTransport, err)
	}

	select {
	case <-j.done:
		if j.result.Success {
			q.weights.OnSuccess(task.Peer, q.cfg.WeightDelta)
			q.log.Debug("peer warmed", "peer", task.Peer, "delta", q.cfg.WeightDelta)
		} else {
			q.weights.OnFailure(task.Peer, q.cfg.WeightDelta)
			q.log.Debug("peer cooled", "peer", task.Peer, "delta", q.cfg.WeightDelta, "err", j.result.Err)
		}
		return j.result, nil
	case <-ctx.Done():
		return Result{Canceled: true}, ctx.Err()
	}
}

// Depth reports peer's current in-flight-or-queued task count (0 if the
// peer has never been submitted to).
func (q *PeerQueue) Depth(peer string) int32 {
	return atomic.LoadInt32(q.depthCounter(peer))
}

func (q *PeerQueue) depthCounter(peer string) *int32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.depths[peer]
	if !ok {
		d = new(int32)
		q.depths[peer] = d
	}
	return d
}

func (q *PeerQueue) reserveSlot(peer string) error {
	counter := q.depthCounter(peer)
	if atomic.AddInt32(counter, 1) > int32(q.cfg.QueueDepthThreshold) {
		atomic.AddInt32(counter, -1)
		return fmt.Errorf("%w: peer %q at depth threshold %d", gatewayerr.ErrQueueFull, peer, q.cfg.QueueDepthThreshold)
	}
	return nil
}

func (q *PeerQueue) releaseSlot(peer string) {
	atomic.AddInt32(q.depthCounter(peer), -1)
}

// PeerResult is one peer's outcome within a Broadcast call.
type PeerResult struct {
	Peer   string
	Result Result
	Err    error
}

// BroadcastResult is a Broadcast call's overall outcome (spec.md §4.G:
// "Return {successCount, failureCount, results[]}").
type BroadcastResult struct {
	SuccessCount int
	FailureCount int
	Results      []PeerResult
}

// Broadcast dispatches taskTemplate to peers per spec.md §4.G: select
// eligible peers (queue depth below cfg.QueueDepthThreshold), sort
// preferred-first then weight-descending, dispatch under
// cfg.BroadcastConcurrency concurrent sends, and stop scheduling new
// peers once successCount reaches minSuccess. Peers already scheduled
// when the threshold is hit still run to completion and are recorded in
// Results, but are not required for success. Returns
// gatewayerr.ErrNoPeerSucceeded only if minSuccess is never reached.
func (q *PeerQueue) Broadcast(ctx context.Context, peers []string, taskTemplate Task, minSuccess int) (BroadcastResult, error) {
	if len(peers) == 0 {
		return BroadcastResult{}, fmt.Errorf("%w: no peers to broadcast to", gatewayerr.ErrNoPeerSucceeded)
	}

	eligible := q.eligiblePeers(peers)
	if len(eligible) == 0 {
		return BroadcastResult{}, fmt.Errorf("%w: no peer below queue depth threshold", gatewayerr.ErrQueueFull)
	}

	var (
		mu           sync.Mutex
		results      []PeerResult
		successCount int
		wg           sync.WaitGroup
	)
	sem := make(chan struct{}, q.cfg.BroadcastConcurrency)

	for _, peer := range eligible {
		sem <- struct{}{}
		mu.Lock()
		stop := successCount >= minSuccess
		mu.Unlock()
		if stop {
			<-sem
			break
		}

		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			defer func() { <-sem }()

			task := taskTemplate
			task.Peer = p
			res, err := q.Submit(ctx, task)

			mu.Lock()
			results = append(results, PeerResult{Peer: p, Result: res, Err: err})
			if err == nil && res.Success {
				successCount++
			}
			mu.Unlock()
		}(peer)
	}
	wg.Wait()

	failureCount := len(results) - successCount
	out := BroadcastResult{SuccessCount: successCount, FailureCount: failureCount, Results: results}
	if successCount < minSuccess {
		return out, fmt.Errorf("%w: %d/%d peers succeeded, need %d", gatewayerr.ErrNoPeerSucceeded, successCount, len(results), minSuccess)
	}
	return out, nil
}

// eligiblePeers filters peers to those below the queue depth threshold,
// then sorts preferred-first and weight-descending within each group.
func (q *PeerQueue) eligiblePeers(peers []string) []string {
	type candidate struct {
		peer      string
		preferred bool
		weight    int
	}
	candidates := make([]candidate, 0, len(peers))
	for _, p := range peers {
		if q.Depth(p) >= int32(q.cfg.QueueDepthThreshold) {
			continue
		}
		weight, _ := q.weights.Weight(p)
		candidates = append(candidates, candidate{peer: p, preferred: q.weights.IsPreferred(p), weight: weight})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].preferred != candidates[j].preferred {
			return candidates[i].preferred
		}
		return candidates[i].weight > candidates[j].weight
	})
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.peer
	}
	return out
}

func (q *PeerQueue) poolFor(peer string) (*ants.PoolWithFunc, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p, ok := q.pools[peer]; ok {
		return p, nil
	}
	p, err := ants.NewPoolWithFunc(q.cfg.ConcurrencyPerPeer, func(i interface{}) {
		j := i.(*job)
		j.result = q.submit(j.ctx, j.task)
		close(j.done)
	})
	if err != nil {
		return nil, fmt.Errorf("creating peer pool for %q: %w", peer, err)
	}
	q.pools[peer] = p
	q.weights.Register(peer, false)
	return p, nil
}

// Close releases every per-peer pool. Safe to call once all in-flight
// Submit/Broadcast calls have returned.
func (q *PeerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for peer, p := range q.pools {
		p.Release()
		delete(q.pools, peer)
	}
}
