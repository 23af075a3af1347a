// Package events fans orchestration events out to WebSocket subscribers.
//
// The hub is the gateway's push surface: dashboards and agent consoles
// subscribe once and receive every session, transfer and agent state change
// as it happens, instead of polling the REST endpoints.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/warmline/warmline/pkg/core"
	"github.com/warmline/warmline/pkg/core/orchestrator"
	"github.com/warmline/warmline/pkg/gateway/config"
	"github.com/warmline/warmline/pkg/gateway/lifecycle"
	"github.com/warmline/warmline/pkg/gateway/metrics"
)

// Gateway-local event types, published alongside the orchestrator's own.
const (
	EventConnected       = "connected"
	EventDraining        = "draining"
	EventTelephonyStatus = "telephony_status"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxInboundSize = 512
	sendBufferSize = 32
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks connected event stream clients and broadcasts events to them.
// It implements orchestrator.Sink; Publish never blocks the caller.
type Hub struct {
	cfg       config.Config
	logger    *slog.Logger
	lifecycle *lifecycle.Lifecycle
	metrics   *metrics.Metrics

	mu      sync.Mutex
	clients map[string]*client
	wg      sync.WaitGroup
	closed  bool
}

func NewHub(cfg config.Config, logger *slog.Logger, lc *lifecycle.Lifecycle, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		lifecycle: lc,
		metrics:   m,
		clients:   make(map[string]*client),
	}
}

// Publish implements orchestrator.Sink. Slow clients are evicted rather
// than allowed to stall the broadcast.
func (h *Hub) Publish(ev orchestrator.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("event marshal failed", "type", ev.Type, "error", err)
		}
		return
	}

	h.mu.Lock()
	var stale []*client
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	for _, c := range stale {
		if h.logger != nil {
			h.logger.Warn("evicting slow event client", "client_id", c.id)
		}
		c.shutdown()
	}
}

// ClientCount reports the number of attached subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// NotifyDraining tells every subscriber the gateway is shutting down so
// they can reconnect elsewhere.
func (h *Hub) NotifyDraining() {
	h.Publish(orchestrator.Event{Type: EventDraining, At: time.Now()})
}

// Close detaches all clients and waits for their pumps to exit. It reports
// false when ctx expires first.
func (h *Hub) Close(ctx context.Context) bool {
	h.mu.Lock()
	h.closed = true
	all := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range all {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		c.shutdown()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.lifecycle.IsDraining() {
		writeJSONError(w, http.StatusServiceUnavailable, &core.Error{
			Type:    core.ErrConflict,
			Message: "gateway is draining",
			Code:    "draining",
		})
		return
	}
	if !h.originAllowed(r) {
		writeJSONError(w, http.StatusForbidden, &core.Error{
			Type:    core.ErrValidation,
			Message: "origin is not allowed",
			Param:   "Origin",
		})
		return
	}
	if !h.keyAllowed(r) {
		writeJSONError(w, http.StatusUnauthorized, &core.Error{
			Type:    core.ErrValidation,
			Message: "invalid api key",
			Param:   "api_key",
		})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		id:   "ws_" + uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.unregister(c)

	if h.metrics != nil {
		h.metrics.WSClientConnected()
		defer h.metrics.WSClientDisconnected()
	}
	if h.logger != nil {
		h.logger.Info("event client attached", "client_id", c.id)
	}

	hello, _ := json.Marshal(orchestrator.Event{
		Type: EventConnected,
		Data: map[string]any{"client_id": c.id},
		At:   time.Now(),
	})
	c.send <- hello

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.wg.Add(1)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.shutdown()
	h.wg.Done()
	if h.logger != nil {
		h.logger.Info("event client detached", "client_id", c.id)
	}
}

// writePump owns all writes on the connection. Exits on send error, ping
// failure or shutdown.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump discards inbound frames; the stream is one-way. Reading is still
// required to process pong frames and detect the peer going away.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.cfg.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.cfg.CORSAllowedOrigins[origin]
	return ok
}

// keyAllowed mirrors the REST bearer rules for the in-band api_key query
// parameter, since browsers cannot set Authorization on a WS dial.
func (h *Hub) keyAllowed(r *http.Request) bool {
	if h.cfg.AuthMode == config.AuthModeDisabled {
		return true
	}
	key := strings.TrimSpace(r.URL.Query().Get("api_key"))
	if key == "" {
		return h.cfg.AuthMode == config.AuthModeOptional
	}
	_, ok := h.cfg.APIKeys[key]
	return ok
}

type errorEnvelope struct {
	Error *core.Error `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, err *core.Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: err})
}
