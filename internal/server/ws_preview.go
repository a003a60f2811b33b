package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/preview"
)

// previewOp is a command sent by a preview client.
type previewOp struct {
	Op       string `json:"op"` // "submit", "cancel", "clear", "touch"
	ID       string `json:"id"`
	Path     string `json:"path"`
	Priority int    `json:"priority"`
}

// previewEvent is a text-frame status message sent to the client.
// Rendered frames travel separately as binary messages: one byte of
// id length, the id bytes, then PNG data.
type previewEvent struct {
	Event string `json:"event"` // "loaded" or "error"
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type outbound struct {
	messageType int
	data        []byte
}

// previewSession owns one websocket connection and the preview
// requests submitted over it. Closing the socket cancels them all,
// which detaches their surfaces and stops their render loops.
type previewSession struct {
	conn  *websocket.Conn
	queue *preview.Queue

	send      chan outbound
	closed    chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	ids map[string]bool
}

var errSessionClosed = errors.New("preview session closed")

// sessionSurface routes rendered frames for one request onto the
// session's websocket.
type sessionSurface struct {
	sess *previewSession
	id   string
}

func (ss *sessionSurface) Push(img *image.RGBA) error {
	select {
	case <-ss.sess.closed:
		return errSessionClosed
	default:
	}

	if len(ss.id) > 255 {
		return fmt.Errorf("preview id too long: %d bytes", len(ss.id))
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(len(ss.id)))
	buf.WriteString(ss.id)
	if err := png.Encode(&buf, img); err != nil {
		return err
	}

	select {
	case ss.sess.send <- outbound{websocket.BinaryMessage, buf.Bytes()}:
	case <-ss.sess.closed:
		return errSessionClosed
	default:
		// Client is not keeping up; skip this frame
	}
	return nil
}

func (ss *sessionSurface) Detach() {
	ss.sess.forget(ss.id)
}

func (s *previewSession) forget(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *previewSession) track(id string) {
	s.mu.Lock()
	s.ids[id] = true
	s.mu.Unlock()
}

func (s *previewSession) close() {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.mu.Lock()
		ids := make([]string, 0, len(s.ids))
		for id := range s.ids {
			ids = append(ids, id)
		}
		s.ids = make(map[string]bool)
		s.mu.Unlock()

		// Cancel covers queued and in-flight ids; loaded handles are
		// evicted outright so a dead session does not hold slots until
		// the sweep bound kicks in.
		for _, id := range ids {
			s.queue.Cancel(id)
			s.queue.Evict(id)
		}
	})
}

func (s *previewSession) sendEvent(ev previewEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case s.send <- outbound{websocket.TextMessage, payload}:
	case <-s.closed:
	}
}

// handlePreviewWS upgrades the connection and runs a preview session:
// the client submits model load requests and receives status events
// and rendered turntable frames.
func (s *Server) handlePreviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Log(debug.HTTP, "preview upgrade: %v", err)
		return
	}

	sess := &previewSession{
		conn:   conn,
		queue:  s.queue,
		send:   make(chan outbound, 32),
		closed: make(chan struct{}),
		ids:    make(map[string]bool),
	}

	go sess.writePump()
	s.previewReadPump(sess)
}

func (s *Server) previewReadPump(sess *previewSession) {
	defer func() {
		sess.close()
		sess.conn.Close()
	}()

	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Log(debug.HTTP, "preview read: %v", err)
			}
			return
		}

		var op previewOp
		if err := json.Unmarshal(message, &op); err != nil {
			debug.Log(debug.HTTP, "preview: invalid message: %v", err)
			continue
		}

		switch op.Op {
		case "submit":
			s.previewSubmit(sess, op)
		case "cancel":
			sess.forget(op.ID)
			s.queue.Cancel(op.ID)
			s.queue.Evict(op.ID)
		case "clear":
			sess.mu.Lock()
			sess.ids = make(map[string]bool)
			sess.mu.Unlock()
			s.queue.ClearAll()
		case "touch":
			s.queue.Touch(op.ID)
		default:
			debug.Log(debug.HTTP, "preview: unknown op %q", op.Op)
		}
	}
}

func (s *Server) previewSubmit(sess *previewSession, op previewOp) {
	if op.ID == "" {
		sess.sendEvent(previewEvent{Event: "error", ID: op.ID, Error: "missing id"})
		return
	}

	path, err := s.resolvePath(op.Path)
	if err != nil {
		sess.sendEvent(previewEvent{Event: "error", ID: op.ID, Error: err.Error()})
		return
	}

	id := op.ID
	sess.track(id)

	s.queue.Submit(preview.Request{
		ID:        id,
		ModelPath: path,
		Priority:  op.Priority,
		Surface: preview.SurfaceProviderFunc(func() (preview.Surface, bool) {
			select {
			case <-sess.closed:
				return nil, false
			default:
				return &sessionSurface{sess: sess, id: id}, true
			}
		}),
		OnLoad: func(h *preview.Handle) {
			sess.sendEvent(previewEvent{Event: "loaded", ID: id})
		},
		OnError: func(err error) {
			sess.forget(id)
			sess.sendEvent(previewEvent{Event: "error", ID: id, Error: err.Error()})
		},
	})
}

func (s *previewSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.closed:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
