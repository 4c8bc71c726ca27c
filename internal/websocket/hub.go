package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/your-username/syslog-sender/internal/collector"
	"github.com/your-username/syslog-sender/internal/monitoring"
)

// Message is the JSON envelope exchanged with tail clients
type Message struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Filters []Filter    `json:"filters,omitempty"`
}

type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Entries to fan out
	broadcast chan collector.Entry

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	metrics *monitoring.Metrics

	mu sync.RWMutex
}

func NewHub(metrics *monitoring.Metrics) *Hub {
	return &Hub{
		broadcast:  make(chan collector.Entry, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		metrics:    metrics,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.metrics.SetTailClients(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetTailClients(count)
			log.Info().Str("client_id", client.id).Msg("Tail client connected")

			client.sendStatus("connected", "Connected to syslog stream")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetTailClients(count)
			log.Info().Str("client_id", client.id).Msg("Tail client disconnected")

		case entry := <-h.broadcast:
			h.deliver(entry)
		}
	}
}

func (h *Hub) deliver(entry collector.Entry) {
	msg, err := json.Marshal(Message{Type: "entry", Data: entry})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode tail entry")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.accepts(entry) {
			continue
		}
		if !client.enqueue(msg) {
			log.Warn().Str("client_id", client.id).Msg("Tail client too slow, disconnecting")
			client.closeSend()
			delete(h.clients, client)
		}
	}
	h.metrics.SetTailClients(len(h.clients))
}

// Broadcast queues an entry for all matching clients. It is a
// collector.Handler.
func (h *Hub) Broadcast(entry collector.Entry) {
	select {
	case h.broadcast <- entry:
	default:
		log.Warn().Str("id", entry.ID).Msg("Tail broadcast queue full, dropping entry")
	}
}

// ConnectedClients returns the number of connected clients
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
