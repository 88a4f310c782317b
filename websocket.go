package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		// The host shell may load from any origin; access control is the
		// reverse proxy's job
		return true
	},
}

// EventMessage is the JSON envelope for every emitted event.
type EventMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// hubClient is one subscribed WebSocket connection with a dedicated writer
// goroutine. Events are queued on a buffered channel; when a slow client's
// queue fills, the event is dropped for that client rather than blocking the
// pipeline.
type hubClient struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	sendCh  chan []byte
	done    chan struct{}
}

func (c *hubClient) writeLoop() {
	defer close(c.done)
	for msg := range c.sendCh {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// enqueue offers a message to the client. Returns false if dropped.
func (c *hubClient) enqueue(msg []byte) bool {
	select {
	case c.sendCh <- msg:
		return true
	default:
		return false
	}
}

// EventHub fans pipeline events out to all subscribed WebSocket clients.
type EventHub struct {
	mu      sync.RWMutex
	clients map[string]*hubClient

	statBytes    int64
	statMessages int64
	statDropped  int64

	metrics *PrometheusMetrics
}

// NewEventHub creates an empty hub and starts its periodic stats logger.
func NewEventHub(metrics *PrometheusMetrics) *EventHub {
	hub := &EventHub{
		clients: make(map[string]*hubClient),
		metrics: metrics,
	}
	go hub.statsLogger()
	return hub
}

// statsLogger reports fan-out volume once a minute while clients are attached.
func (h *EventHub) statsLogger() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.Lock()
		clients := len(h.clients)
		bytes, messages, dropped := h.statBytes, h.statMessages, h.statDropped
		h.statBytes, h.statMessages, h.statDropped = 0, 0, 0
		h.mu.Unlock()

		if clients > 0 || messages > 0 {
			log.Printf("WebSocket stats - clients: %d, messages: %d, bytes: %d, dropped: %d",
				clients, messages, bytes, dropped)
		}
	}
}

// Broadcast serializes an event once and queues it to every client. Emission
// order is preserved per client because each client has a single writer.
func (h *EventHub) Broadcast(event string, payload interface{}) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	msg, err := json.Marshal(EventMessage{Type: event, Data: payload})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		if client.enqueue(msg) {
			h.statBytes += int64(len(msg))
			h.statMessages++
		} else {
			h.statDropped++
		}
	}
}

// ClientCount reports the number of attached subscribers.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) addClient(c *hubClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetWSClients(count)
	}
	log.Printf("WebSocket client connected: %s (%d total)", c.id, count)
}

func (h *EventHub) removeClient(c *hubClient) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	count := len(h.clients)
	h.mu.Unlock()
	if !present {
		return
	}

	close(c.sendCh)
	<-c.done

	if h.metrics != nil {
		h.metrics.SetWSClients(count)
	}
	log.Printf("WebSocket client disconnected: %s (%d total)", c.id, count)
}

// HandleWebSocket upgrades the request and subscribes the client to all
// pipeline events until it disconnects.
func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &hubClient{
		id:   uuid.New().String(),
		conn: conn,
		// ~1 second of full-rate emissions
		sendCh: make(chan []byte, 512),
		done:   make(chan struct{}),
	}
	go client.writeLoop()
	h.addClient(client)

	defer func() {
		h.removeClient(client)
		conn.Close()
	}()

	// Subscribers don't send anything meaningful; this read loop exists to
	// detect disconnects and service ping/pong
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
