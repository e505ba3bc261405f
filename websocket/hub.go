package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"houtveilig/metrics"
	"houtveilig/models"

	"github.com/apex/log"
)

// Inbound is a message sent by a connected form.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub manages WebSocket connections and broadcasting
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// OnMessage, when set, receives messages sent by clients
	OnMessage func(msg Inbound)

	mutex sync.RWMutex
	done  chan struct{}
	once  sync.Once

	// Statistics
	broadcastCount   int
	connectedClients int
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			metrics.EventClients.Set(float64(h.connectedClients))
			log.Infof("Client connected. Total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			metrics.EventClients.Set(float64(h.connectedClients))
			log.Infof("Client disconnected. Total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.broadcastCount++
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.connectedClients = 0
			h.mutex.Unlock()
			metrics.EventClients.Set(0)
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Broadcast sends an event to all connected clients. It never blocks: when the
// queue is full the event is dropped.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	message := models.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Errorf("Failed to marshal %s event: %v", eventType, err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Warnf("Broadcast queue full, dropping %s event", eventType)
	}
}

// Toast broadcasts a transient notice.
func (h *Hub) Toast(level, message string) {
	h.Broadcast(models.EventToast, models.Notice{Level: level, Message: message})
}

// GetStats returns the number of connected clients and broadcasts sent.
func (h *Hub) GetStats() (int, int) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.broadcastCount
}
