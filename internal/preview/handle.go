package preview

import (
	"context"
	"sync"
	"time"

	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/scene"
)

// rotationRate is the turntable speed in radians per second.
const rotationRate = 0.5

// Handle owns the live resources of one loaded model: its scene, its
// surface binding and its render loop. The queue is the sole owner;
// callers must never mutate a handle.
type Handle struct {
	ID    string
	Scene *scene.Scene

	surface      Surface
	renderCancel context.CancelFunc
	renderDone   chan struct{}
	lastUsed     time.Time

	disposeOnce sync.Once
}

// LastUsed reports when the handle last served a request.
func (h *Handle) LastUsed() time.Time { return h.lastUsed }

// startRenderLoop spins the handle's continuous slow auto-rotation:
// one goroutine ticking frames onto the surface until disposal or a
// push failure. Caller holds q.mu.
func (q *Queue) startRenderLoop(h *Handle) {
	ctx, cancel := context.WithCancel(context.Background())
	h.renderCancel = cancel
	h.renderDone = make(chan struct{})

	if h.surface == nil {
		close(h.renderDone)
		return
	}

	frameInterval := q.opts.FrameInterval
	frameSize := q.opts.FrameSize

	go func() {
		defer close(h.renderDone)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		start := time.Now()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				angle := rotationRate * now.Sub(start).Seconds()
				frame := scene.RenderFrame(h.Scene, angle, frameSize)
				if err := h.surface.Push(frame); err != nil {
					debug.Log(debug.SCENE_FRAME, "render loop %s: push failed: %v", h.ID, err)
					return
				}
			}
		}
	}()
}

// dispose tears the handle down: stop and await the render loop,
// recursively dispose the scene graph, detach the surface binding.
// Idempotent and panic-safe; cleanup errors are logged, never thrown.
func (h *Handle) dispose() {
	h.disposeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				debug.Log(debug.PREVIEW, "dispose %s: recovered: %v", h.ID, r)
			}
		}()

		if h.renderCancel != nil {
			h.renderCancel()
		}
		if h.renderDone != nil {
			<-h.renderDone
		}
		h.Scene.Dispose()
		if h.surface != nil {
			h.surface.Detach()
		}
		debug.Log(debug.PREVIEW, "dispose: %s released", h.ID)
	})
}
