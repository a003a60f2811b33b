// Package preview schedules interactive 3D model loads: a bounded
// number of in-flight load operations, a priority-ordered pending
// queue deduplicated by request id, cooperative cancellation, and
// idle eviction of loaded scenes with deterministic teardown.
package preview

import (
	"container/heap"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/scene"
)

// Request asks the queue to load and render a model into a surface.
// ID identifies a logical preview slot: re-submitting an id replaces
// its still-queued request, and an id with a loaded scene is served
// from cache.
type Request struct {
	ID        string
	ModelPath string
	Surface   SurfaceProvider
	Priority  int
	OnLoad    func(*Handle)
	OnError   func(error)
}

// Options configures a Queue. Zero fields take defaults.
type Options struct {
	MaxConcurrent int           // Default 4
	MaxLoaded     int           // Default 15
	IdleThreshold time.Duration // Default 3m
	SweepInterval time.Duration // Default 30s
	FrameInterval time.Duration // Default 100ms
	FrameSize     int           // Default 320
	Loader        Loader        // Default: native scene loader
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 4
	}
	if o.MaxLoaded <= 0 {
		o.MaxLoaded = 15
	}
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = 3 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = 100 * time.Millisecond
	}
	if o.FrameSize <= 0 {
		o.FrameSize = 320
	}
	if o.Loader == nil {
		o.Loader = sceneLoader{}
	}
}

// Queue owns every scene and surface binding it creates and is
// responsible for tearing them down on eviction, cancellation and
// clear. Callers hold only request ids.
type Queue struct {
	opts Options

	mu       sync.Mutex
	pending  pendingHeap
	byID     map[string]*pendingItem
	inflight map[string]*flight
	loaded   map[string]*Handle
	seq      uint64
	closed   bool

	stopSweep chan struct{}
	sweepOnce sync.Once

	now func() time.Time // Test hook
}

type pendingItem struct {
	req     Request
	seq     uint64
	index   int
	removed bool
}

type flight struct {
	req    Request
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue constructs a queue and starts its eviction sweeper.
func NewQueue(opts Options) *Queue {
	opts.applyDefaults()
	q := &Queue{
		opts:      opts,
		byID:      make(map[string]*pendingItem),
		inflight:  make(map[string]*flight),
		loaded:    make(map[string]*Handle),
		stopSweep: make(chan struct{}),
		now:       time.Now,
	}
	go q.sweepLoop()
	return q
}

// Submit enqueues a load request. A loaded id is answered immediately
// from cache with a refreshed last-used time; a queued id is replaced;
// an in-flight id is left to finish with its original callbacks.
func (q *Queue) Submit(req Request) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	if h, ok := q.loaded[req.ID]; ok {
		h.lastUsed = q.now()
		q.mu.Unlock()
		debug.Log(debug.PREVIEW, "Submit: %s served from loaded cache", req.ID)
		if req.OnLoad != nil {
			req.OnLoad(h)
		}
		return
	}

	if _, ok := q.inflight[req.ID]; ok {
		q.mu.Unlock()
		debug.Log(debug.PREVIEW, "Submit: %s already loading, ignored", req.ID)
		return
	}

	if stale, ok := q.byID[req.ID]; ok {
		stale.removed = true
	}
	item := &pendingItem{req: req, seq: q.seq}
	q.seq++
	heap.Push(&q.pending, item)
	q.byID[req.ID] = item

	debug.Log(debug.PREVIEW, "Submit: %s queued prio=%d pending=%d", req.ID, req.Priority, len(q.byID))
	q.scheduleLocked()
	q.mu.Unlock()
}

// Cancel drops a queued request or signals cancellation to an
// in-flight one. Neither callback fires for a cancelled request.
func (q *Queue) Cancel(id string) {
	q.mu.Lock()
	if item, ok := q.byID[id]; ok {
		item.removed = true
		delete(q.byID, id)
		debug.Log(debug.PREVIEW, "Cancel: %s dropped from pending", id)
	}
	if fl, ok := q.inflight[id]; ok {
		fl.cancel()
		delete(q.inflight, id) // Slot is free; the operation discards itself
		debug.Log(debug.PREVIEW, "Cancel: %s signalled in flight", id)
		q.scheduleLocked()
	}
	q.mu.Unlock()
}

// Evict disposes the loaded handle for id, if any, freeing its slot
// immediately instead of waiting for the idle sweep. Returns whether a
// handle was evicted.
func (q *Queue) Evict(id string) bool {
	q.mu.Lock()
	h, ok := q.loaded[id]
	if ok {
		delete(q.loaded, id)
	}
	q.mu.Unlock()

	if !ok {
		return false
	}
	h.dispose()
	debug.Log(debug.PREVIEW, "Evict: disposed %s", id)
	return true
}

// ClearAll cancels every queued and in-flight request and disposes
// every loaded handle, regardless of recency. Used on navigation away.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	for _, item := range q.byID {
		item.removed = true
	}
	q.byID = make(map[string]*pendingItem)
	q.pending = q.pending[:0]

	for id, fl := range q.inflight {
		fl.cancel()
		delete(q.inflight, id)
	}

	handles := make([]*Handle, 0, len(q.loaded))
	for _, h := range q.loaded {
		handles = append(handles, h)
	}
	q.loaded = make(map[string]*Handle)
	q.mu.Unlock()

	for _, h := range handles {
		h.dispose()
	}
	debug.Log(debug.PREVIEW, "ClearAll: disposed %d handles", len(handles))
}

// Close stops the sweeper and clears all state. The queue accepts no
// submissions afterwards.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.sweepOnce.Do(func() { close(q.stopSweep) })
	q.ClearAll()
}

// scheduleLocked starts pending loads while slots are free. Caller
// holds q.mu.
func (q *Queue) scheduleLocked() {
	for len(q.inflight) < q.opts.MaxConcurrent && q.pending.Len() > 0 {
		item := heap.Pop(&q.pending).(*pendingItem)
		if item.removed {
			continue
		}
		delete(q.byID, item.req.ID)

		ctx, cancel := context.WithCancel(context.Background())
		fl := &flight{req: item.req, ctx: ctx, cancel: cancel}
		q.inflight[item.req.ID] = fl
		debug.Log(debug.PREVIEW, "schedule: %s starting (inflight=%d)", item.req.ID, len(q.inflight))
		go q.run(fl)
	}
}

// run executes one load operation end to end.
func (q *Queue) run(fl *flight) {
	req := fl.req

	// A surface that no longer exists is a silent skip, not an error.
	var surf Surface
	if req.Surface != nil {
		var ok bool
		surf, ok = req.Surface.Acquire()
		if !ok {
			debug.Log(debug.PREVIEW, "run: %s surface gone, skipping", req.ID)
			q.release(fl)
			return
		}
	}

	s, err := q.opts.Loader.Load(fl.ctx, req.ModelPath)
	q.finishLoad(fl, surf, s, err)
}

// release frees the flight's slot with no result and no callbacks.
func (q *Queue) release(fl *flight) {
	q.mu.Lock()
	if cur, ok := q.inflight[fl.req.ID]; ok && cur == fl {
		delete(q.inflight, fl.req.ID)
	}
	q.scheduleLocked()
	q.mu.Unlock()
}

// finishLoad settles a completed load: cancelled results are disposed
// silently, errors go to the error callback, successes register a
// handle and start its render loop.
func (q *Queue) finishLoad(fl *flight, surf Surface, s *scene.Scene, err error) {
	req := fl.req

	q.mu.Lock()
	cur, still := q.inflight[req.ID]
	cancelled := !still || cur != fl || fl.ctx.Err() != nil
	if still && cur == fl {
		delete(q.inflight, req.ID)
	}

	if cancelled || errors.Is(err, context.Canceled) {
		q.scheduleLocked()
		q.mu.Unlock()
		// The operation may have raced past its last cancellation
		// check; its result is disposed, never leaked.
		if s != nil {
			s.Dispose()
		}
		debug.Log(debug.PREVIEW, "finishLoad: %s cancelled, result discarded", req.ID)
		return
	}

	if err != nil {
		q.scheduleLocked()
		q.mu.Unlock()
		debug.Log(debug.PREVIEW, "finishLoad: %s failed: %v", req.ID, err)
		if req.OnError != nil {
			req.OnError(err)
		}
		return
	}

	h := &Handle{
		ID:       req.ID,
		Scene:    s,
		surface:  surf,
		lastUsed: q.now(),
	}
	q.loaded[req.ID] = h
	q.startRenderLoop(h)
	q.scheduleLocked()
	q.mu.Unlock()

	debug.Log(debug.PREVIEW, "finishLoad: %s loaded (resident=%d)", req.ID, q.LoadedCount())
	if req.OnLoad != nil {
		req.OnLoad(h)
	}
}

// sweepLoop periodically evicts idle handles.
func (q *Queue) sweepLoop() {
	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopSweep:
			return
		case <-ticker.C:
			q.Sweep()
		}
	}
}

// Sweep evicts handles once the resident count exceeds the bound:
// every idle-expired handle goes, plus the least-recently-used ones
// until the count returns to the bound.
func (q *Queue) Sweep() {
	now := q.now()

	q.mu.Lock()
	if len(q.loaded) <= q.opts.MaxLoaded {
		q.mu.Unlock()
		return
	}

	// Snapshot before evicting; the map must not be mutated mid-walk.
	handles := make([]*Handle, 0, len(q.loaded))
	for _, h := range q.loaded {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].lastUsed.Before(handles[j].lastUsed)
	})

	remaining := len(handles)
	var evict []*Handle
	for _, h := range handles {
		expired := now.Sub(h.lastUsed) > q.opts.IdleThreshold
		if !expired && remaining <= q.opts.MaxLoaded {
			break
		}
		evict = append(evict, h)
		delete(q.loaded, h.ID)
		remaining--
	}
	q.mu.Unlock()

	for _, h := range evict {
		debug.Log(debug.PREVIEW, "Sweep: evicting %s (idle %s)", h.ID, now.Sub(h.lastUsed))
		h.dispose()
	}
}

// Touch refreshes a loaded handle's last-used time, reporting whether
// the id is resident.
func (q *Queue) Touch(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.loaded[id]
	if ok {
		h.lastUsed = q.now()
	}
	return ok
}

// InFlightCount reports currently running load operations.
func (q *Queue) InFlightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// PendingCount reports queued (not yet started) requests.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

// LoadedCount reports resident loaded handles.
func (q *Queue) LoadedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.loaded)
}

// Loaded returns the resident handle for id, if any.
func (q *Queue) Loaded(id string) (*Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.loaded[id]
	return h, ok
}

// pendingHeap orders requests by descending priority, ties broken by
// arrival sequence.
type pendingHeap []*pendingItem

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}
func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *pendingHeap) Push(x interface{}) {
	item := x.(*pendingItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
