package preview

import "image"

// Surface is the rendering target a loaded model's frames are pushed
// to. Implementations are created and destroyed by the transport layer
// (e.g. a websocket session); the queue only pushes frames and
// detaches.
type Surface interface {
	// Push delivers one rendered frame. An error stops the render loop.
	Push(frame *image.RGBA) error
	// Detach releases the binding. Called exactly once per disposal;
	// implementations must tolerate late or repeated calls.
	Detach()
}

// SurfaceProvider resolves the target surface at load time. Acquire
// reports false when the surface no longer exists (the view went
// away), which skips the load silently rather than failing it.
type SurfaceProvider interface {
	Acquire() (Surface, bool)
}

// SurfaceProviderFunc adapts a closure to SurfaceProvider.
type SurfaceProviderFunc func() (Surface, bool)

func (f SurfaceProviderFunc) Acquire() (Surface, bool) { return f() }
