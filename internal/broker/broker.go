// Copyright 2025 James Ross
package broker

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/obs"
)

// entry is one submitted job waiting for dispatch.
type entry struct {
	jobID       string
	priority    job.Priority
	submittedAt time.Time
	eligibleAt  time.Time
	retryCount  int
	index       int
}

// priorityHeap orders eligible entries by priority descending, then earliest
// submission (spec.md §4.4 dispatch ordering).
type priorityHeap []*entry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].submittedAt.Before(h[j].submittedAt)
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TypeStats reports per-type broker counters (spec.md §4.4 "Stats").
type TypeStats struct {
	Waiting   int
	Active    int
	Completed int64
	Failed    int64
}

type typeQueue struct {
	mu             sync.Mutex
	eligible       priorityHeap
	delayed        []*entry
	inFlight       map[string]*entry
	maxConcurrency int
	completed      int64
	failed         int64
}

// BackoffBase, together with the Broker's configurable backoffMax cap,
// implements spec.md §4.4's "exponential backoff: base 2 seconds, doubled per
// attempt, capped at a configurable maximum."
const (
	BackoffBase = 2 * time.Second
)

// Broker is a set of per-job-type in-memory priority queues: the active
// dispatch layer described in spec.md §4.4. Grounded on the teacher's
// worker.go dequeue loop (poll-with-short-timeout across priorities) and
// backoff() helper, reimagined over an in-memory heap instead of Redis
// BRPOPLPUSH since this spec's broker is explicitly in-memory.
type Broker struct {
	mu         sync.RWMutex
	queues     map[job.Type]*typeQueue
	backoffMax time.Duration
}

func New(backoffMax time.Duration) *Broker {
	if backoffMax <= 0 {
		backoffMax = 5 * time.Minute
	}
	return &Broker{queues: make(map[job.Type]*typeQueue), backoffMax: backoffMax}
}

// RegisterType declares a job type's maximum in-flight count, matching the
// Worker Runtime's "each type has a maximum in-flight count" contract.
func (b *Broker) RegisterType(typ job.Type, maxConcurrency int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	b.queues[typ] = &typeQueue{inFlight: make(map[string]*entry), maxConcurrency: maxConcurrency}
}

func (b *Broker) queueFor(typ job.Type) *typeQueue {
	b.mu.RLock()
	q := b.queues[typ]
	b.mu.RUnlock()
	return q
}

// Submit accepts a job for dispatch. If delay>0 the job is eligible for
// dispatch only after now+delay.
func (b *Broker) Submit(typ job.Type, jobID string, priority job.Priority, delay time.Duration) {
	q := b.queueFor(typ)
	if q == nil {
		b.RegisterType(typ, 1)
		q = b.queueFor(typ)
	}
	now := time.Now()
	e := &entry{jobID: jobID, priority: priority, submittedAt: now, eligibleAt: now.Add(delay)}
	q.mu.Lock()
	defer q.mu.Unlock()
	if delay > 0 {
		q.delayed = append(q.delayed, e)
	} else {
		heap.Push(&q.eligible, e)
	}
}

// promoteEligible moves delayed entries whose eligibility time has arrived
// into the dispatch heap. Caller must hold q.mu.
func promoteEligible(q *typeQueue) {
	now := time.Now()
	remaining := q.delayed[:0]
	for _, e := range q.delayed {
		if now.After(e.eligibleAt) || now.Equal(e.eligibleAt) {
			heap.Push(&q.eligible, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	q.delayed = remaining
}

// Dispatch returns the highest-priority eligible job id for typ, or ok=false
// if none is eligible or the type's concurrency cap is already saturated.
// Non-blocking: the Worker Runtime polls this on a short interval, mirroring
// the teacher's BRPOPLPUSH-with-timeout poll loop.
func (b *Broker) Dispatch(typ job.Type) (jobID string, ok bool) {
	q := b.queueFor(typ)
	if q == nil {
		return "", false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	promoteEligible(q)
	if len(q.inFlight) >= q.maxConcurrency {
		return "", false
	}
	if q.eligible.Len() == 0 {
		return "", false
	}
	e := heap.Pop(&q.eligible).(*entry)
	q.inFlight[e.jobID] = e
	obs.BrokerDispatchLatency.Observe(time.Since(e.submittedAt).Seconds())
	return e.jobID, true
}

// Ack marks a dispatched job as successfully completed, freeing its
// concurrency slot.
func (b *Broker) Ack(typ job.Type, jobID string) {
	q := b.queueFor(typ)
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, jobID)
	atomic.AddInt64(&q.completed, 1)
}

// Discard frees a dispatched job's concurrency slot without requeueing it,
// used when a job reaches a terminal failed state (schema validation
// failure, or retry budget exhausted) rather than being retried.
func (b *Broker) Discard(typ job.Type, jobID string) {
	q := b.queueFor(typ)
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, jobID)
	atomic.AddInt64(&q.failed, 1)
}

// Requeue re-enqueues a failed job with exponential backoff, freeing its
// concurrency slot. retryCount is the job's retry count after incrementing;
// the caller (Worker Runtime) is responsible for the terminal-vs-retry
// decision against MaxRetries.
func (b *Broker) Requeue(typ job.Type, jobID string, priority job.Priority, retryCount int) {
	q := b.queueFor(typ)
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, jobID)
	atomic.AddInt64(&q.failed, 1)
	delay := backoffDelay(retryCount, b.backoffMax)
	now := time.Now()
	e := &entry{jobID: jobID, priority: priority, submittedAt: now, eligibleAt: now.Add(delay), retryCount: retryCount}
	q.delayed = append(q.delayed, e)
}

func backoffDelay(retryCount int, max time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := BackoffBase << uint(retryCount-1)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// Remove drops a pending (not yet dispatched) job. Active jobs cannot be
// cancelled mid-flight (spec.md §4.4 "Removal").
func (b *Broker) Remove(typ job.Type, jobID string) bool {
	q := b.queueFor(typ)
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.eligible {
		if e.jobID == jobID {
			heap.Remove(&q.eligible, i)
			return true
		}
	}
	for i, e := range q.delayed {
		if e.jobID == jobID {
			q.delayed = append(q.delayed[:i], q.delayed[i+1:]...)
			return true
		}
	}
	return false
}

// Stats reports waiting/active/completed/failed counts for typ.
func (b *Broker) Stats(typ job.Type) TypeStats {
	q := b.queueFor(typ)
	if q == nil {
		return TypeStats{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return TypeStats{
		Waiting:   q.eligible.Len() + len(q.delayed),
		Active:    len(q.inFlight),
		Completed: atomic.LoadInt64(&q.completed),
		Failed:    atomic.LoadInt64(&q.failed),
	}
}

// ActiveCount returns the number of jobs currently in flight for typ,
// used by tests verifying the per-type concurrency cap invariant.
func (b *Broker) ActiveCount(typ job.Type) int {
	q := b.queueFor(typ)
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// RegisteredTypes lists every job type with a live queue, used by the Queue
// Manager to iterate all queues for statistics and health scans.
func (b *Broker) RegisteredTypes() []job.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]job.Type, 0, len(b.queues))
	for typ := range b.queues {
		types = append(types, typ)
	}
	return types
}

// Waiting returns the number of jobs eligible or delayed for typ, used by
// the queue length metrics sampler.
func (b *Broker) Waiting(typ job.Type) int {
	return b.Stats(typ).Waiting
}

// Ping reports whether the broker's backing store is reachable. The broker
// is purely in-memory, so this always succeeds; it exists so the Queue
// Manager's health loop has the same "ping the backing store" step the
// spec names regardless of backend.
func (b *Broker) Ping() error {
	return nil
}
