package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/suryavirkapur/DrivinData/internal/monitoring"
	"github.com/suryavirkapur/DrivinData/internal/trip"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// liveMessage is one frame on the live stream. Kind is "sample" for
// telemetry and "incident" for detector alerts.
type liveMessage struct {
	Kind     string              `json:"kind"`
	Sample   *trip.Sample        `json:"sample,omitempty"`
	Incident *trip.IncidentEvent `json:"incident,omitempty"`
}

// LiveHub fans recorder output out to websocket clients. It implements both
// trip.Observer and trip.Notifier so one hub carries samples and incident
// alerts on the same stream. Slow clients are dropped rather than allowed
// to stall the ingest path.
type LiveHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan liveMessage
}

func NewLiveHub() *LiveHub {
	return &LiveHub{clients: make(map[*websocket.Conn]chan liveMessage)}
}

// ObserveSample implements trip.Observer.
func (h *LiveHub) ObserveSample(s trip.Sample) {
	h.broadcast(liveMessage{Kind: "sample", Sample: &s})
}

// Notify implements trip.Notifier.
func (h *LiveHub) Notify(e trip.IncidentEvent) {
	h.broadcast(liveMessage{Kind: "incident", Incident: &e})
}

func (h *LiveHub) broadcast(msg liveMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// client is not keeping up; disconnect it
			delete(h.clients, conn)
			close(ch)
		}
	}
}

// ClientCount reports the number of connected websocket clients.
func (h *LiveHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and streams live messages until the client
// disconnects.
func (h *LiveHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("live: websocket upgrade error: %v", err)
		return
	}

	ch := make(chan liveMessage, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			close(ch)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Reader goroutine: the client sends nothing useful, but reading is
	// what detects disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					monitoring.Logf("live: websocket write error: %v", err)
				}
				return
			}
		case <-done:
			return
		}
	}
}
