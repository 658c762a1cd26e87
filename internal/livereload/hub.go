// Package livereload pushes module change events to connected browsers over websockets.
package livereload

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"git.home.luguber.info/inful/tails/internal/events"
	"git.home.luguber.info/inful/tails/internal/logfields"
	"git.home.luguber.info/inful/tails/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is what clients receive for every change event.
type Message struct {
	Event string `json:"event"`
	Path  string `json:"path"`
}

// Hub manages websocket clients and fans out change events to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	recorder metrics.Recorder

	mu      sync.RWMutex
	nextID  int
	clients map[int]*client
	closed  bool
}

type client struct {
	id   int
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(l *slog.Logger) Option { return func(h *Hub) { h.logger = l } }

func WithRecorder(r metrics.Recorder) Option { return func(h *Hub) { h.recorder = r } }

// NewHub creates a hub without clients.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dev server is served from localhost; pages may be opened from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		clients:  make(map[int]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach forwards every event of e to connected clients.
func (h *Hub) Attach(e *events.Emitter) uint64 {
	return e.OnAny(func(name, payload string) { h.Broadcast(name, payload) })
}

// ServeHTTP upgrades the request and keeps the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", logfields.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)
	h.logger.Debug("Live reload client connected", logfields.Clients(n))

	go h.readPump(c)
	h.writePump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer h.removeClient(c.id)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Live reload read failed", logfields.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("Live reload write failed", logfields.Error(err))
				h.removeClient(c.id)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.removeClient(c.id)
				return
			}
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// Broadcast sends one event to every client. Clients whose buffers are full are dropped.
func (h *Hub) Broadcast(event, path string) {
	msg, err := json.Marshal(Message{Event: event, Path: path})
	if err != nil {
		h.logger.Warn("Failed to encode live reload message", logfields.Error(err))
		return
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.send <- msg:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.logger.Debug("Live reload broadcast", logfields.Event(event), logfields.Clients(len(snapshot)), logfields.Count(dropped))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[int]*client)
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
