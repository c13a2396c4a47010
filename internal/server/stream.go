package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/pkg/types"
)

const (
	// writeWait is the deadline for one frame to a client.
	writeWait = 10 * time.Second

	// clientSendBuffer is how many events may queue per client before it
	// is considered too slow and dropped.
	clientSendBuffer = 32
)

// TurnEvent is one progress notification pushed to stream clients.
type TurnEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

const (
	EventPlanBuilt      = "plan_built"
	EventAgentResponded = "agent_responded"
	EventSynthesisReady = "synthesis_ready"
)

// Hub fans turn events out to connected WebSocket clients. It implements
// orchestrator.EventSink; the engine calls it inline, so Broadcast must not
// block on slow clients.
type Hub struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]bool
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty stream hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log: log.WithComponent("stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]bool),
	}
}

// handleStream upgrades the connection and registers the client.
// GET /v1/stream
func (h *Hub) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed: %v", err)
		return
	}

	client := &streamClient{conn: conn, send: make(chan []byte, clientSendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	h.log.Debug("stream client connected (%d total)", h.ClientCount())

	go h.writePump(client)
	go h.readPump(client)
}

// writePump drains the client's send channel onto the socket.
func (h *Hub) writePump(client *streamClient) {
	defer client.conn.Close()
	for message := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.drop(client)
			return
		}
	}
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; it exists to notice disconnects.
func (h *Hub) readPump(client *streamClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

// drop unregisters one client and closes its send channel.
func (h *Hub) drop(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// Broadcast sends an event to every connected client, dropping clients
// whose buffers are full.
func (h *Hub) Broadcast(event TurnEvent) {
	event.Timestamp = time.Now().UTC()
	message, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("event marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
			h.log.Warn("dropping slow stream client")
		}
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients; the hub accepts no new ones afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// orchestrator.EventSink
// ─────────────────────────────────────────────────────────────────────────────

func (h *Hub) PlanBuilt(plan *types.OrchestrationPlan) {
	h.Broadcast(TurnEvent{Type: EventPlanBuilt, Payload: plan})
}

func (h *Hub) AgentResponded(response types.ParsedAgentResponse) {
	h.Broadcast(TurnEvent{Type: EventAgentResponded, Payload: response})
}

func (h *Hub) SynthesisReady(summary string) {
	h.Broadcast(TurnEvent{Type: EventSynthesisReady, Payload: summary})
}
