package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ejames/nowcast/internal/api/handlers"
	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard runs on a different local port
	},
}

// Hub pushes completed run metrics to connected websocket clients.
// Writes to each connection are serialized with a per-connection mutex
// since gorilla connections allow one concurrent writer.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	logger  *logger.Logger
}

// NewHub creates a websocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		logger:  log.Component("api.hub"),
	}
}

// wsMessage is the envelope every hub push uses
type wsMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// HandleWebSocket upgrades the connection and keeps it registered
// until the client goes away
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", total).Debug("Websocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.WithField("clients", remaining).Debug("Websocket client disconnected")
	}()

	// drain client messages to detect disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Warn("Websocket read error")
			}
			return
		}
	}
}

// BroadcastMetrics pushes one run's metrics to every connected client.
// Metrics go through the JSON payload type so NaN spreads serialize as
// null instead of failing to marshal.
func (h *Hub) BroadcastMetrics(metrics []contracts.RunMetrics) {
	now := time.Now().UTC()
	h.broadcast(wsMessage{
		Type:      "run_metrics",
		Timestamp: now,
		Payload:   handlers.NewMetricsPayloads(metrics, now),
	})
}

// ClientCount reports the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mu := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, mu)
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()

		if err != nil {
			h.logger.WithError(err).Warn("Failed to push to websocket client")
		}
	}
}
