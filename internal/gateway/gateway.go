// Package gateway fans analyzer output out to WebSocket clients: an
// id→bounded-sender map plus a single monotonic id counter, so a slow
// client is dropped in one pass rather than blocking the publisher.
package gateway

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-systemv1/internal/analyzer/controller"
	"trading-systemv1/internal/metrics"
)

// Action is the envelope's message-kind discriminator.
type Action string

const (
	ActionUpdateAccount Action = "UPDATE_ACCOUNT"
	ActionUpdateSymbols Action = "UPDATE_SYMBOLS"
	ActionUpdateChart   Action = "UPDATE_CHART"
	ActionReplayMode    Action = "REPLAY_MODE"
	ActionHeartbeat     Action = "HEARTBEAT"
)

// Envelope is the wire format for every message sent to a client.
type Envelope struct {
	Action Action `json:"action"`
	Data   any    `json:"data"`
}

const (
	clientSendBuffer = 128
	deflateThreshold = 500
	heartbeatPeriod  = 10 * time.Second
)

// Hub owns the id→Client map. Writes (add/remove) are rare relative to
// broadcasts, so a plain RWMutex is sufficient.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
	nextID  uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[uint64]*Client),
		logger:  logger,
		metrics: m,
	}
}

// Client is a single connected WebSocket peer.
type Client struct {
	id   uint64
	conn *websocket.Conn
	send chan frame
	hub  *Hub
}

type frame struct {
	data   []byte
	binary bool
}

// Register adds conn as a new client and starts its read/write pumps.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	h.mu.Lock()
	h.nextID++
	c := &Client{id: h.nextID, conn: conn, send: make(chan frame, clientSendBuffer), hub: h}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}

	go c.writePump()
	go c.readPump()
	return c
}

// Remove drops a client by id, closing its send channel.
func (h *Hub) Remove(id uint64) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(c.send)
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes data under action and fans it to every client. A
// client whose send buffer is full is marked for removal in this same
// pass rather than blocking the broadcaster.
func (h *Hub) Broadcast(action Action, data any) {
	raw, err := json.Marshal(Envelope{Action: action, Data: data})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("envelope marshal failed", "action", action, "err", err)
		}
		return
	}
	f := encodeFrame(raw)

	h.mu.RLock()
	var dead []uint64
	for id, c := range h.clients {
		select {
		case c.send <- f:
		default:
			dead = append(dead, id)
			if h.metrics != nil {
				h.metrics.WSFanoutDrop.Inc()
			}
		}
	}
	h.mu.RUnlock()

	for _, id := range dead {
		h.Remove(id)
	}
}

// PublishChart implements controller.Publisher.
func (h *Hub) PublishChart(symbol string, snapshot controller.Snapshot) {
	h.Broadcast(ActionUpdateChart, snapshot)
}

// PublishSymbols implements dispatcher.SymbolsPublisher.
func (h *Hub) PublishSymbols(symbols []string) {
	h.Broadcast(ActionUpdateSymbols, symbols)
}

// encodeFrame deflates payloads above the threshold and marks them
// binary; smaller payloads are sent as UTF-8 text untouched.
func encodeFrame(raw []byte) frame {
	if len(raw) <= deflateThreshold {
		return frame{data: raw, binary: false}
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return frame{data: raw, binary: false}
	}
	w.Write(raw)
	w.Close()
	return frame{data: buf.Bytes(), binary: true}
}

func (c *Client) writePump() {
	heartbeat := time.NewTicker(heartbeatPeriod)
	defer func() {
		heartbeat.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			mt := websocket.TextMessage
			if f.binary {
				mt = websocket.BinaryMessage
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(mt, f.data); err != nil {
				return
			}
		case <-heartbeat.C:
			raw, _ := json.Marshal(Envelope{Action: ActionHeartbeat, Data: map[string]int64{"timestamp": time.Now().Unix()}})
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
			if c.hub.metrics != nil {
				c.hub.metrics.WSHeartbeats.Inc()
			}
		}
	}
}

// readPump only drains the connection for control frames (ping/close);
// the analyzer's clients are pure subscribers. A close is normal
// termination and is not logged at error level.
func (c *Client) readPump() {
	defer c.hub.Remove(c.id)
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if c.hub.logger != nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.logger.Warn("websocket read error", "err", err)
			}
			return
		}
	}
}
