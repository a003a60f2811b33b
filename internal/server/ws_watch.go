package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/watch"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to localhost and serves its own clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watchMessage is a subscription change sent by a watch client.
type watchMessage struct {
	Op  string `json:"op"` // "watch" or "unwatch"
	Dir string `json:"dir"`
}

// refreshEvent tells clients a directory's contents changed.
type refreshEvent struct {
	Dir string `json:"dir"`
}

type watchClient struct {
	conn *websocket.Conn
	send chan []byte
	dirs map[string]bool
}

// watchHub fans directory change notifications out to subscribed
// websocket clients and keeps the underlying watcher's watch set in
// step with the union of subscriptions.
type watchHub struct {
	watcher *watch.DirectoryWatcher

	mu   sync.Mutex
	subs map[string]map[*watchClient]bool
}

func newWatchHub(w *watch.DirectoryWatcher) *watchHub {
	return &watchHub{
		watcher: w,
		subs:    make(map[string]map[*watchClient]bool),
	}
}

func (h *watchHub) subscribe(c *watchClient, dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[dir] == nil {
		if err := h.watcher.Watch(dir); err != nil {
			return err
		}
		h.subs[dir] = make(map[*watchClient]bool)
	}
	h.subs[dir][c] = true
	c.dirs[dir] = true
	return nil
}

func (h *watchHub) unsubscribe(c *watchClient, dir string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, dir)
}

func (h *watchHub) unsubscribeLocked(c *watchClient, dir string) {
	clients, ok := h.subs[dir]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	delete(c.dirs, dir)
	if len(clients) == 0 {
		delete(h.subs, dir)
		h.watcher.Unwatch(dir)
	}
}

func (h *watchHub) drop(c *watchClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for dir := range c.dirs {
		h.unsubscribeLocked(c, dir)
	}
	close(c.send)
}

// run forwards watcher notifications to subscribers until the context
// is cancelled.
func (h *watchHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dir, ok := <-h.watcher.Notify():
			if !ok {
				return
			}
			payload, err := json.Marshal(refreshEvent{Dir: dir})
			if err != nil {
				continue
			}

			h.mu.Lock()
			for c := range h.subs[dir] {
				select {
				case c.send <- payload:
				default:
					// Slow client; drop the event rather than block
				}
			}
			h.mu.Unlock()
			debug.Log(debug.WATCH, "broadcast refresh for %q", dir)
		}
	}
}

// handleWatchWS upgrades the connection and runs a subscription
// session until the client goes away.
func (s *Server) handleWatchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Log(debug.HTTP, "watch upgrade: %v", err)
		return
	}

	c := &watchClient{
		conn: conn,
		send: make(chan []byte, 16),
		dirs: make(map[string]bool),
	}

	go s.watchWritePump(c)
	s.watchReadPump(c)
}

func (s *Server) watchReadPump(c *watchClient) {
	defer func() {
		s.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Log(debug.HTTP, "watch read: %v", err)
			}
			return
		}

		var msg watchMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			debug.Log(debug.HTTP, "watch: invalid message: %v", err)
			continue
		}

		dir, err := s.resolvePath(msg.Dir)
		if err != nil {
			if !errors.Is(err, errOutsideRoot) {
				debug.Log(debug.HTTP, "watch: resolve %q: %v", msg.Dir, err)
			}
			continue
		}

		switch msg.Op {
		case "watch":
			if err := s.hub.subscribe(c, dir); err != nil {
				debug.Log(debug.WATCH, "subscribe %q: %v", dir, err)
			}
		case "unwatch":
			s.hub.unsubscribe(c, dir)
		}
	}
}

func (s *Server) watchWritePump(c *watchClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
