package ws

import (
	"encoding/json"
	"sync"
)

// Event is the envelope pushed to user streams when server-side state
// changes (balance updates, application status moves, session results).
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages stream subscriptions keyed by user email.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with the receiving user.
type message struct {
	userEmail string
	payload   []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	userEmail string
	client    Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.userEmail]; !ok {
				h.clients[sub.userEmail] = make(map[Subscriber]struct{})
			}
			h.clients[sub.userEmail][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.userEmail]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.userEmail)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.userEmail]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.userEmail)
				}
			}
		}
	}
}

// Register adds a client to a user stream.
func (h *Hub) Register(userEmail string, client Subscriber) {
	h.register <- subscription{userEmail: userEmail, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(userEmail string, client Subscriber) {
	h.unreg <- subscription{userEmail: userEmail, client: client}
}

// Broadcast sends payload to all clients of a user.
func (h *Hub) Broadcast(userEmail string, payload []byte) {
	h.broadcast <- message{userEmail: userEmail, payload: payload}
}

// Publish marshals an event and broadcasts it to a user's clients.
// Marshal failures are swallowed; events are best-effort notifications.
func (h *Hub) Publish(userEmail string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.Broadcast(userEmail, payload)
}
