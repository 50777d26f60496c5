package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/netrecon/internal/api/middleware"
	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time to read next pong message from peer
	pongWait = 60 * time.Second
	// Send pings to peer (must be < pongWait)
	pingPeriod = pongWait * 9 / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
	// Size of the broadcast channel buffer
	bufferSize = 256
	// Messages queued per client before it is dropped
	clientBuffer = 64
)

// Message types sent to WebSocket clients.
const (
	MessageProgress = "scan_progress"
	MessageComplete = "scan_complete"
	MessageError    = "scan_error"
)

// EventMessage is the JSON form of a scan event.
type EventMessage struct {
	Type      string              `json:"type"`
	ScanID    string              `json:"scan_id"`
	Timestamp time.Time           `json:"timestamp"`
	Progress  netmap.ScanProgress `json:"progress"`
	Devices   []netmap.Device     `json:"devices,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// NewEventMessage converts a coordinator event.
func NewEventMessage(ev coordinator.Event) EventMessage {
	msg := EventMessage{
		Type:      MessageProgress,
		ScanID:    ev.ScanID,
		Timestamp: time.Now().UTC(),
		Progress:  ev.Progress,
	}
	switch {
	case ev.Err != nil:
		msg.Type = MessageError
		msg.Error = ev.Err.Error()
	case ev.Progress.Phase == netmap.PhaseComplete:
		msg.Type = MessageComplete
		msg.Devices = ev.Devices
	}
	return msg
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHandler fans scan events out to WebSocket clients.
type WebSocketHandler struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	broadcast chan []byte
	shutdown  chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewWebSocketHandler creates the hub and starts its broadcast loop.
// Browser origins must appear in allowedOrigins; "*" allows any origin.
// Requests without an Origin header are always accepted.
func NewWebSocketHandler(allowedOrigins []string, logger *logging.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:    logger.WithFields("handler", "websocket"),
		broadcast: make(chan []byte, bufferSize),
		shutdown:  make(chan struct{}),
		clients:   make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowedOrigins, r.Header.Get("Origin"))
		},
	}

	go h.run()
	return h
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// ServeWS handles GET /api/v1/ws.
//
// @Summary Scan event stream
// @Description Upgrades to a WebSocket that receives an EventMessage for every scan event.
// @Tags Scans
// @Success 101 {object} EventMessage
// @Failure 403 {string} string "Origin not allowed"
// @Router /api/v1/ws [get]
// @ID streamScanEvents
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("WebSocket upgrade failed", "request_id", requestID, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.logger.Debug("Client registered", "request_id", requestID, "total_clients", h.Clients())

	go h.writePump(c, requestID)
	h.readPump(c, requestID)
}

// Publish broadcasts a scan event. Events are dropped when the hub is
// saturated or shut down.
func (h *WebSocketHandler) Publish(ev coordinator.Event) {
	data, err := json.Marshal(NewEventMessage(ev))
	if err != nil {
		h.logger.Error("Failed to encode scan event", "scan_id", ev.ScanID, "error", err)
		return
	}

	select {
	case <-h.shutdown:
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event", "scan_id", ev.ScanID)
	}
}

// Clients returns the number of connected clients.
func (h *WebSocketHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown disconnects all clients and stops the hub.
func (h *WebSocketHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.shutdown) })
}

func (h *WebSocketHandler) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *WebSocketHandler) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// run delivers broadcasts to every client queue.
func (h *WebSocketHandler) run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			h.closed = true
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket handler shut down")
			return

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					h.logger.Warn("Client too slow, disconnecting")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// readPump consumes client frames so pongs and close frames are seen.
func (h *WebSocketHandler) readPump(c *client, requestID string) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket unexpected close", "request_id", requestID, "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *WebSocketHandler) writePump(c *client, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", requestID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		}
	}
}
