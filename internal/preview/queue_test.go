package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tannerhall/assetview/internal/scene"
)

// fakeSurface records pushes and detaches.
type fakeSurface struct {
	pushes   int32
	detaches int32
}

func (s *fakeSurface) Push(*image.RGBA) error { atomic.AddInt32(&s.pushes, 1); return nil }
func (s *fakeSurface) Detach()                { atomic.AddInt32(&s.detaches, 1) }

func provider(s Surface) SurfaceProvider {
	return SurfaceProviderFunc(func() (Surface, bool) { return s, true })
}

func goneProvider() SurfaceProvider {
	return SurfaceProviderFunc(func() (Surface, bool) { return nil, false })
}

// gateLoader blocks each load until a token arrives on release, and
// records the order in which loads start.
type gateLoader struct {
	mu      sync.Mutex
	started []string
	release chan struct{}

	ignoreCancel bool // Simulates an operation racing past its last check
	err          error
}

func newGateLoader() *gateLoader {
	return &gateLoader{release: make(chan struct{})}
}

func newTestScene() *scene.Scene {
	return &scene.Scene{
		Root: &scene.Node{
			Name: "test",
			Mesh: &scene.Mesh{
				Vertices: []scene.Vec3{{X: 0}, {X: 1}},
				Edges:    [][2]int{{0, 1}},
			},
		},
	}
}

func (l *gateLoader) Load(ctx context.Context, path string) (*scene.Scene, error) {
	l.mu.Lock()
	l.started = append(l.started, path)
	l.mu.Unlock()

	if l.ignoreCancel {
		<-l.release
	} else {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.release:
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return newTestScene(), nil
}

func (l *gateLoader) startedPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.started))
	copy(out, l.started)
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func quietOptions(loader Loader) Options {
	return Options{
		Loader:        loader,
		FrameInterval: time.Hour, // Keep render loops quiet during tests
		SweepInterval: time.Hour,
	}
}

func TestQueue_ConcurrencyBound(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxConcurrent = 4
	q := NewQueue(opts)
	defer q.Close()

	for i := 0; i < 10; i++ {
		q.Submit(Request{
			ID:        fmt.Sprintf("r%d", i),
			ModelPath: fmt.Sprintf("m%d.obj", i),
			Surface:   provider(&fakeSurface{}),
		})
	}

	waitFor(t, "4 loads started", func() bool { return len(loader.startedPaths()) == 4 })
	if got := q.InFlightCount(); got != 4 {
		t.Fatalf("expected exactly 4 in flight, got %d", got)
	}
	if got := q.PendingCount(); got != 6 {
		t.Fatalf("expected 6 pending, got %d", got)
	}

	// Each completion frees exactly one slot for the next request.
	for released := 1; released <= 6; released++ {
		loader.release <- struct{}{}
		want := 4 + released
		waitFor(t, "next load started", func() bool { return len(loader.startedPaths()) == want })
		if got := q.InFlightCount(); got > 4 {
			t.Fatalf("in-flight bound violated: %d", got)
		}
	}
	for i := 0; i < 4; i++ {
		loader.release <- struct{}{}
	}
	waitFor(t, "queue drained", func() bool {
		return q.InFlightCount() == 0 && q.PendingCount() == 0
	})
	if got := q.LoadedCount(); got != 10 {
		t.Errorf("expected 10 loaded handles, got %d", got)
	}
}

func TestQueue_PriorityOrdering(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxConcurrent = 1
	q := NewQueue(opts)
	defer q.Close()

	q.Submit(Request{ID: "blocker", ModelPath: "blocker.obj", Surface: provider(&fakeSurface{})})
	waitFor(t, "blocker started", func() bool { return len(loader.startedPaths()) == 1 })

	q.Submit(Request{ID: "low", ModelPath: "low.obj", Priority: 1, Surface: provider(&fakeSurface{})})
	q.Submit(Request{ID: "hi1", ModelPath: "hi1.obj", Priority: 5, Surface: provider(&fakeSurface{})})
	q.Submit(Request{ID: "hi2", ModelPath: "hi2.obj", Priority: 5, Surface: provider(&fakeSurface{})})
	q.Submit(Request{ID: "mid", ModelPath: "mid.obj", Priority: 3, Surface: provider(&fakeSurface{})})

	for i := 0; i < 5; i++ {
		loader.release <- struct{}{}
	}
	waitFor(t, "all loads finished", func() bool { return q.LoadedCount() == 5 })

	got := loader.startedPaths()
	expected := []string{"blocker.obj", "hi1.obj", "hi2.obj", "mid.obj", "low.obj"}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("start order[%d]: expected %s, got %s (full order %v)", i, expected[i], got[i], got)
		}
	}
}

func TestQueue_CancelQueued(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxConcurrent = 1
	q := NewQueue(opts)
	defer q.Close()

	var callbacks int32
	q.Submit(Request{ID: "blocker", ModelPath: "blocker.obj", Surface: provider(&fakeSurface{})})
	waitFor(t, "blocker started", func() bool { return len(loader.startedPaths()) == 1 })

	q.Submit(Request{
		ID:        "victim",
		ModelPath: "victim.obj",
		Surface:   provider(&fakeSurface{}),
		OnLoad:    func(*Handle) { atomic.AddInt32(&callbacks, 1) },
		OnError:   func(error) { atomic.AddInt32(&callbacks, 1) },
	})
	q.Cancel("victim")

	loader.release <- struct{}{}
	waitFor(t, "blocker loaded", func() bool { return q.LoadedCount() == 1 })

	for _, p := range loader.startedPaths() {
		if p == "victim.obj" {
			t.Fatal("cancelled queued request must never start")
		}
	}
	if atomic.LoadInt32(&callbacks) != 0 {
		t.Error("cancelled request must not invoke callbacks")
	}
}

func TestQueue_CancelInFlight(t *testing.T) {
	loader := newGateLoader()
	q := NewQueue(quietOptions(loader))
	defer q.Close()

	var callbacks int32
	q.Submit(Request{
		ID:        "x",
		ModelPath: "x.obj",
		Surface:   provider(&fakeSurface{}),
		OnLoad:    func(*Handle) { atomic.AddInt32(&callbacks, 1) },
		OnError:   func(error) { atomic.AddInt32(&callbacks, 1) },
	})
	waitFor(t, "load started", func() bool { return len(loader.startedPaths()) == 1 })

	q.Cancel("x")
	waitFor(t, "slot freed", func() bool { return q.InFlightCount() == 0 })

	// Give the cancelled operation time to settle, then verify nothing
	// was registered and no callback fired.
	time.Sleep(20 * time.Millisecond)
	if _, ok := q.Loaded("x"); ok {
		t.Error("cancelled in-flight request must not register a handle")
	}
	if atomic.LoadInt32(&callbacks) != 0 {
		t.Error("cancelled in-flight request must not invoke callbacks")
	}
}

func TestQueue_CancellationRaceDisposesResult(t *testing.T) {
	loader := newGateLoader()
	loader.ignoreCancel = true
	q := NewQueue(quietOptions(loader))
	defer q.Close()

	q.Submit(Request{ID: "x", ModelPath: "x.obj", Surface: provider(&fakeSurface{})})
	waitFor(t, "load started", func() bool { return len(loader.startedPaths()) == 1 })

	q.Cancel("x")
	// The operation races past cancellation and produces a scene.
	loader.release <- struct{}{}

	waitFor(t, "result discarded", func() bool {
		_, ok := q.Loaded("x")
		return !ok && q.InFlightCount() == 0
	})
}

func TestQueue_SurfaceGoneSkipsSilently(t *testing.T) {
	loader := newGateLoader()
	q := NewQueue(quietOptions(loader))
	defer q.Close()

	var callbacks int32
	q.Submit(Request{
		ID:        "gone",
		ModelPath: "gone.obj",
		Surface:   goneProvider(),
		OnLoad:    func(*Handle) { atomic.AddInt32(&callbacks, 1) },
		OnError:   func(error) { atomic.AddInt32(&callbacks, 1) },
	})

	waitFor(t, "slot freed", func() bool { return q.InFlightCount() == 0 && q.PendingCount() == 0 })
	if len(loader.startedPaths()) != 0 {
		t.Error("load must not start when the surface is gone")
	}
	if atomic.LoadInt32(&callbacks) != 0 {
		t.Error("surface-gone skip must not invoke callbacks")
	}
}

func TestQueue_ErrorCallback(t *testing.T) {
	loader := newGateLoader()
	loader.err = errors.New("unsupported model format: .fbx")
	q := NewQueue(quietOptions(loader))
	defer q.Close()

	errCh := make(chan error, 1)
	q.Submit(Request{
		ID:        "bad",
		ModelPath: "bad.fbx",
		Surface:   provider(&fakeSurface{}),
		OnLoad:    func(*Handle) { t.Error("OnLoad must not fire on error") },
		OnError:   func(err error) { errCh <- err },
	})
	loader.release <- struct{}{}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected a descriptive error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("error callback never fired")
	}
	if _, ok := q.Loaded("bad"); ok {
		t.Error("failed load must not register a handle")
	}
}

func TestQueue_LoadedServedFromCache(t *testing.T) {
	loader := newGateLoader()
	q := NewQueue(quietOptions(loader))
	defer q.Close()

	loadedCh := make(chan *Handle, 2)
	req := Request{
		ID:        "x",
		ModelPath: "x.obj",
		Surface:   provider(&fakeSurface{}),
		OnLoad:    func(h *Handle) { loadedCh <- h },
	}
	q.Submit(req)
	loader.release <- struct{}{}
	first := <-loadedCh

	q.Submit(req)
	second := <-loadedCh

	if first != second {
		t.Error("resubmitted id must be served the cached handle")
	}
	if n := len(loader.startedPaths()); n != 1 {
		t.Errorf("expected a single load, got %d", n)
	}
}

func TestQueue_EvictDisposesLoadedHandle(t *testing.T) {
	loader := newGateLoader()
	q := NewQueue(quietOptions(loader))
	defer q.Close()

	surf := &fakeSurface{}
	loadedCh := make(chan *Handle, 1)
	q.Submit(Request{
		ID:        "e",
		ModelPath: "e.obj",
		Surface:   provider(surf),
		OnLoad:    func(h *Handle) { loadedCh <- h },
	})
	loader.release <- struct{}{}
	<-loadedCh

	if !q.Evict("e") {
		t.Fatal("Evict: expected true for a loaded id")
	}
	if got := q.LoadedCount(); got != 0 {
		t.Errorf("after evict: expected 0 loaded, got %d", got)
	}
	if got := atomic.LoadInt32(&surf.detaches); got != 1 {
		t.Errorf("after evict: expected 1 detach, got %d", got)
	}

	// Unknown and already-evicted ids are no-ops
	if q.Evict("e") {
		t.Error("Evict: expected false for an already evicted id")
	}
	if q.Evict("never-loaded") {
		t.Error("Evict: expected false for an unknown id")
	}
	if got := atomic.LoadInt32(&surf.detaches); got != 1 {
		t.Errorf("repeat evict: expected detaches to stay at 1, got %d", got)
	}
}

func TestQueue_ResubmitReplacesQueuedEntry(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxConcurrent = 1
	q := NewQueue(opts)
	defer q.Close()

	q.Submit(Request{ID: "blocker", ModelPath: "blocker.obj", Surface: provider(&fakeSurface{})})
	waitFor(t, "blocker started", func() bool { return len(loader.startedPaths()) == 1 })

	q.Submit(Request{ID: "x", ModelPath: "old.obj", Surface: provider(&fakeSurface{})})
	q.Submit(Request{ID: "x", ModelPath: "new.obj", Surface: provider(&fakeSurface{})})

	if got := q.PendingCount(); got != 1 {
		t.Fatalf("expected 1 pending after replacement, got %d", got)
	}

	loader.release <- struct{}{}
	loader.release <- struct{}{}
	waitFor(t, "both loads done", func() bool { return q.LoadedCount() == 2 })

	for _, p := range loader.startedPaths() {
		if p == "old.obj" {
			t.Error("replaced queued request must not load")
		}
	}
}

func TestQueue_IdleEviction(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxConcurrent = 3
	opts.MaxLoaded = 2
	opts.IdleThreshold = time.Minute
	q := NewQueue(opts)
	defer q.Close()

	base := time.Now()
	var clockMu sync.Mutex
	clock := base
	q.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	setClock := func(t time.Time) {
		clockMu.Lock()
		clock = t
		clockMu.Unlock()
	}

	surfaces := map[string]*fakeSurface{}
	load := func(id string) {
		s := &fakeSurface{}
		surfaces[id] = s
		q.Submit(Request{ID: id, ModelPath: id + ".obj", Surface: provider(s)})
		loader.release <- struct{}{}
		waitFor(t, id+" loaded", func() bool { _, ok := q.Loaded(id); return ok })
	}

	load("old")
	setClock(base.Add(2 * time.Minute)) // "old" ages past the idle threshold
	load("mid")
	load("fresh")

	setClock(base.Add(3 * time.Minute))
	// mid and fresh are 1m old (not expired); old is 3m old (expired).
	q.Sweep()

	if _, ok := q.Loaded("old"); ok {
		t.Error("expired LRU handle should have been evicted")
	}
	if got := q.LoadedCount(); got != 2 {
		t.Errorf("expected count back at bound (2), got %d", got)
	}
	waitFor(t, "old disposed", func() bool { return atomic.LoadInt32(&surfaces["old"].detaches) == 1 })

	// Sweeping again must not dispose anything twice or evict below bound.
	q.Sweep()
	if got := atomic.LoadInt32(&surfaces["old"].detaches); got != 1 {
		t.Errorf("disposal must run exactly once, ran %d times", got)
	}
	if got := q.LoadedCount(); got != 2 {
		t.Errorf("sweep below bound should be a no-op, got %d resident", got)
	}
}

func TestQueue_SweepBelowBoundIsNoOp(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxLoaded = 5
	opts.IdleThreshold = time.Nanosecond
	q := NewQueue(opts)
	defer q.Close()

	q.Submit(Request{ID: "x", ModelPath: "x.obj", Surface: provider(&fakeSurface{})})
	loader.release <- struct{}{}
	waitFor(t, "loaded", func() bool { return q.LoadedCount() == 1 })

	time.Sleep(5 * time.Millisecond)
	q.Sweep()
	if got := q.LoadedCount(); got != 1 {
		t.Errorf("idle handles are kept while under the bound, got %d resident", got)
	}
}

func TestQueue_ClearAll(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.MaxConcurrent = 1
	q := NewQueue(opts)
	defer q.Close()

	// One loaded, one in flight, one queued.
	s1 := &fakeSurface{}
	q.Submit(Request{ID: "done", ModelPath: "done.obj", Surface: provider(s1)})
	loader.release <- struct{}{}
	waitFor(t, "first loaded", func() bool { return q.LoadedCount() == 1 })

	q.Submit(Request{ID: "flying", ModelPath: "flying.obj", Surface: provider(&fakeSurface{})})
	waitFor(t, "second started", func() bool { return len(loader.startedPaths()) == 2 })
	q.Submit(Request{ID: "waiting", ModelPath: "waiting.obj", Surface: provider(&fakeSurface{})})

	q.ClearAll()

	if got := q.LoadedCount(); got != 0 {
		t.Errorf("expected zero loaded handles, got %d", got)
	}
	if got := q.PendingCount(); got != 0 {
		t.Errorf("expected zero pending requests, got %d", got)
	}
	if got := q.InFlightCount(); got != 0 {
		t.Errorf("expected zero in-flight requests, got %d", got)
	}
	if got := atomic.LoadInt32(&s1.detaches); got != 1 {
		t.Errorf("loaded handle disposal must run exactly once, ran %d times", got)
	}

	// A second clear must not double-dispose.
	q.ClearAll()
	if got := atomic.LoadInt32(&s1.detaches); got != 1 {
		t.Errorf("double clear double-disposed: %d detaches", got)
	}
}

func TestQueue_RenderLoopPushesFrames(t *testing.T) {
	loader := newGateLoader()
	opts := quietOptions(loader)
	opts.FrameInterval = time.Millisecond
	opts.FrameSize = 32
	q := NewQueue(opts)
	defer q.Close()

	s := &fakeSurface{}
	q.Submit(Request{ID: "x", ModelPath: "x.obj", Surface: provider(s)})
	loader.release <- struct{}{}

	waitFor(t, "frames pushed", func() bool { return atomic.LoadInt32(&s.pushes) >= 3 })

	q.ClearAll()
	if got := atomic.LoadInt32(&s.detaches); got != 1 {
		t.Errorf("expected surface detached once, got %d", got)
	}
	// The render loop must have stopped with disposal.
	settled := atomic.LoadInt32(&s.pushes)
	time.Sleep(10 * time.Millisecond)
	if after := atomic.LoadInt32(&s.pushes); after != settled {
		t.Error("render loop kept pushing after disposal")
	}
}
