// Package ws pushes live pipeline events to dashboard clients over
// websockets. Clients subscribe to a branch room; the wildcard room "*"
// receives every event.
package ws

import (
	"encoding/json"
	"sync"
)

// AllBranches is the wildcard room that receives every broadcast.
const AllBranches = "*"

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// branchEvent is an internal struct for routing events to branch rooms
type branchEvent struct {
	Branch string
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by branch
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *branchEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *branchEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.branch] == nil {
				h.rooms[client.branch] = make(map[*Client]bool)
			}
			h.rooms[client.branch][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.branch]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.branch)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			h.deliver(event.Branch, message)
			if event.Branch != AllBranches {
				h.deliver(AllBranches, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends message to every client in room. Callers must hold h.mu.
func (h *Hub) deliver(room string, message []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and unregister
			close(client.send)
			delete(h.rooms[room], client)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// BroadcastToBranch sends an event to all clients subscribed to a branch and
// to the wildcard room. This is the public API for handlers to broadcast
// events.
func (h *Hub) BroadcastToBranch(branch string, event Event) {
	h.broadcast <- &branchEvent{
		Branch: branch,
		Event:  event,
	}
}
