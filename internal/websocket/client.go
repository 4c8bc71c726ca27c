package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/your-username/syslog-sender/internal/collector"
	"github.com/your-username/syslog-sender/pkg/syslog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Filter matches one entry field. Field is one of facility, level,
// hostname, text, source or format.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	filters  []Filter
	maxLevel syslog.Level
	facility *syslog.Facility
	isPaused bool
	closed   bool
}

// HandleWebSocket upgrades the request and streams collector entries.
// Optional query parameters: facility (keyword or code, exact match) and
// level (most verbose severity to include). Both survive filter updates.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxLevel := syslog.Debug
		if v := r.URL.Query().Get("level"); v != "" {
			level, err := syslog.ParseLevel(v)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			maxLevel = level
		}
		var facility *syslog.Facility
		if v := r.URL.Query().Get("facility"); v != "" {
			f, err := syslog.ParseFacility(v)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			facility = &f
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("Failed to upgrade connection")
			return
		}

		client := &Client{
			id:       uuid.New().String(),
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, 256),
			maxLevel: maxLevel,
			facility: facility,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump handles control messages from the peer
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("client_id", c.id).Msg("WebSocket error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Error().Err(err).Msg("Failed to parse WebSocket message")
			continue
		}

		switch msg.Type {
		case "filter":
			c.mu.Lock()
			c.filters = msg.Filters
			c.mu.Unlock()
			c.sendStatus("filters_updated", "Filters updated successfully")
		case "pause":
			c.setPaused(true)
			c.sendStatus("paused", "Stream paused")
		case "resume":
			c.setPaused(false)
			c.sendStatus("resumed", "Stream resumed")
		case "ping":
			c.sendStatus("pong", "")
		default:
			log.Warn().Str("type", msg.Type).Msg("Unknown message type")
		}
	}
}

// writePump forwards queued messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) setPaused(paused bool) {
	c.mu.Lock()
	c.isPaused = paused
	c.mu.Unlock()
}

// accepts reports whether the entry passes the client's level threshold
// and filters
func (c *Client) accepts(entry collector.Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isPaused {
		return false
	}
	if level, ok := entry.Severity(); ok && level > c.maxLevel {
		return false
	}
	if c.facility != nil {
		if f, ok := entry.FacilityCode(); !ok || f != *c.facility {
			return false
		}
	}
	for _, filter := range c.filters {
		if !matchFilter(entry, filter) {
			return false
		}
	}
	return true
}

func matchFilter(entry collector.Entry, filter Filter) bool {
	var fieldValue string
	switch filter.Field {
	case "facility":
		fieldValue = entry.Facility
	case "level":
		fieldValue = entry.Level
	case "hostname":
		fieldValue = entry.Hostname
	case "text":
		fieldValue = entry.Text
	case "source":
		fieldValue = entry.Source
	case "format":
		fieldValue = entry.Format
	default:
		return false
	}

	fieldValue = strings.ToLower(fieldValue)
	filterValue := strings.ToLower(filter.Value)

	switch filter.Operator {
	case "equals", "=":
		return fieldValue == filterValue
	case "contains":
		return strings.Contains(fieldValue, filterValue)
	case "starts_with":
		return strings.HasPrefix(fieldValue, filterValue)
	case "not_equals", "!=":
		return fieldValue != filterValue
	case "not_contains":
		return !strings.Contains(fieldValue, filterValue)
	default:
		return false
	}
}

// sendStatus queues a status message without blocking
func (c *Client) sendStatus(status, message string) {
	msg := Message{
		Type: "status",
		Data: map[string]string{
			"status":  status,
			"message": message,
		},
	}

	if msgBytes, err := json.Marshal(msg); err == nil {
		c.enqueue(msgBytes)
	}
}

// enqueue queues msg without blocking. It returns false when the send
// buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once, which makes writePump hang up
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
