// Package feed streams bus events to websocket observers as JSON.
//
// Every message is one event envelope:
//
//	{"topic": "dataset.added", "payload": {...}, "metadata": {"id": "...", ...}}
//
// Clients pick the events they want with a topic pattern in the query
// string (?topic=dataset.**); the default is every event. A client that
// cannot keep up loses messages instead of slowing the session down.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/topic"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultBuffer is the per-client message buffer.
	DefaultBuffer = 256
)

// ErrClosed is returned for connections made after Close.
var ErrClosed = errors.New("feed closed")

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBuffer sets the per-client message buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithCheckOrigin replaces the origin check of the websocket upgrade.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

type client struct {
	conn    *websocket.Conn
	pattern topic.Topic
	send    chan []byte
}

// Hub fans bus events out to connected clients. It implements
// http.Handler.
type Hub struct {
	logger   *zap.Logger
	buffer   int
	upgrader websocket.Upgrader
	sub      event.Subscription

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// New subscribes a hub to every event on bus.
func New(bus event.Bus, opts ...Option) (*Hub, error) {
	h := &Hub{
		logger:  zap.NewNop(),
		buffer:  DefaultBuffer,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("feed")

	sub, err := bus.SubscribeFunc(topic.WildcardMulti, h.broadcast,
		event.WithPriority(event.PriorityLow),
		event.WithDeliveryMode(event.DeliveryAsync))
	if err != nil {
		return nil, err
	}
	h.sub = sub
	return h, nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sent returns the number of messages queued to clients.
func (h *Hub) Sent() uint64 { return h.sent.Load() }

// Dropped returns the number of messages lost to slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) broadcast(_ context.Context, ev any) error {
	env, ok := event.ToEnvelope(ev)
	if !ok {
		return nil
	}
	var msg []byte

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !env.Topic.Matches(c.pattern) {
			continue
		}
		if msg == nil {
			var err error
			if msg, err = json.Marshal(env); err != nil {
				h.logger.Warn("event not encoded", zap.String("topic", env.Topic.String()), zap.Error(err))
				return err
			}
		}
		select {
		case c.send <- msg:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams events until the client
// goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pattern := topic.Topic(topic.WildcardMulti)
	if q := r.URL.Query().Get("topic"); q != "" {
		pattern = topic.Topic(q)
	}
	if !pattern.IsValid() {
		http.Error(w, "invalid topic pattern", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, pattern: pattern, send: make(chan []byte, h.buffer)}
	if err := h.register(c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.String("topic", pattern.String()))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

// unregister closes the send channel once; the write pump then closes the
// connection.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump discards client messages and keeps the pong deadline fresh.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("client read failed", zap.Error(err))
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
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// Close stops following the bus and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	if h.sub != nil {
		h.sub.Cancel()
	}
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
