package webhook

import (
	"net/http"
	"sync"
	"time"

	"tvcollector/pkg/storage"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub fans stored observations out to connected dashboard clients over
// WebSocket, so the dashboard can update without polling.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
	}
}

// observationUpdate is the wire format pushed to stream clients.
type observationUpdate struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	ATR       float64   `json:"atr"`
	ExitPrice float64   `json:"exit_price"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcast sends an observation to every connected client. Clients that fail
// the write are dropped; a slow dashboard never blocks ingestion for long.
func (h *Hub) Broadcast(obs storage.Observation) {
	update := observationUpdate{
		Symbol:    obs.Symbol,
		Price:     obs.Price,
		ATR:       obs.ATR,
		ExitPrice: obs.ExitPrice(),
		Timestamp: obs.Timestamp,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(update); err != nil {
			h.logger.Warn("dropping stream client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than the receiver.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamObservations handles GET /ws. It upgrades the connection, registers
// the client with the hub, and holds the read loop open until the client
// disconnects. Clients only listen; inbound messages are discarded.
func (h *Handler) StreamObservations(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.add(conn)
	h.logger.Info("stream client connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		h.hub.remove(conn)
		h.logger.Info("stream client disconnected", zap.String("remote", r.RemoteAddr))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
