package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub maintains the per-session subscriber sets and fans published events
// out to them. Events for one session reach each subscriber in publish
// order, the per-client Send channel is the FIFO. There is no ordering
// between sessions and no replay: a reconnecting client gets a fresh sync
// frame instead of missed deltas.
type Hub struct {
	clients    map[string]map[*Client]bool // sessionID -> subscribers
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Publish enqueues an event for every current subscriber of the session.
// It never blocks the caller for longer than the broadcast buffer.
func (h *Hub) Publish(sessionID string, e Event) {
	e.SessionID = sessionID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.broadcast <- &e
}

// Subscribers reports how many clients are attached to a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Run processes register/unregister/broadcast requests until the process
// exits. Must run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]bool)
			}
			h.clients[client.SessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.SessionID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				zap.L().Error("Failed to marshal event", zap.Error(err))
				continue
			}

			h.mu.Lock()
			clients := h.clients[event.SessionID]
			for client := range clients {
				select {
				case client.Send <- payload:
				default:
					// Subscriber can't keep up, drop it. It will
					// reconnect and reconcile from a sync frame.
					delete(clients, client)
					close(client.Send)
				}
			}
			if clients != nil && len(clients) == 0 {
				delete(h.clients, event.SessionID)
			}
			h.mu.Unlock()
		}
	}
}
