package api

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"popdash/internal"
	"popdash/internal/store"
)

// KeepAliveInterval is how often an idle stream gets a ping event.
var KeepAliveInterval = 30 * time.Second

// StateEvent is one SSE payload: the store snapshot after a change.
type StateEvent struct {
	EventType string         `json:"event_type"`
	Snapshot  store.Snapshot `json:"snapshot"`
	Timestamp time.Time      `json:"timestamp"`
}

// SnapshotSource is the part of the store the hub reads.
type SnapshotSource interface {
	Snapshot() store.Snapshot
	Subscribe(buffer int) (<-chan store.Snapshot, func())
}

// SSEHub fans store snapshots out to Server-Sent Events clients
type SSEHub struct {
	source     SnapshotSource
	clients    map[chan StateEvent]bool
	clientsMu  sync.RWMutex
	register   chan chan StateEvent
	unregister chan chan StateEvent
	broadcast  chan StateEvent
	logger     *internal.Logger
}

// NewSSEHub creates a new SSE hub. Call Run to start delivering.
func NewSSEHub(source SnapshotSource) *SSEHub {
	return &SSEHub{
		source:     source,
		clients:    make(map[chan StateEvent]bool),
		register:   make(chan chan StateEvent, 10),
		unregister: make(chan chan StateEvent, 10),
		broadcast:  make(chan StateEvent, 100),
		logger:     internal.DefaultLogger.WithComponent("sse"),
	}
}

// Run subscribes to the store and processes hub operations until ctx is done.
func (h *SSEHub) Run(ctx context.Context) {
	updates, cancel := h.source.Subscribe(32)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.clientsMu.Lock()
			for ch := range h.clients {
				close(ch)
			}
			h.clients = make(map[chan StateEvent]bool)
			h.clientsMu.Unlock()
			return

		case snap, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(StateEvent{EventType: "state", Snapshot: snap, Timestamp: time.Now()})

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.logger.Debug("client registered (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client)
				h.logger.Debug("client unregistered (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("client channel full, skipping snapshot %d", event.Snapshot.Version)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast queues an event for every connected client
func (h *SSEHub) Broadcast(event StateEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event: %s", event.EventType)
	}
}

// HandleSSE streams the current snapshot followed by every change.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	clientChan := make(chan StateEvent, 10)
	select {
	case h.register <- clientChan:
	default:
		c.JSON(500, gin.H{"error": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- clientChan:
		default:
		}
	}()

	first := StateEvent{EventType: "state", Snapshot: h.source.Snapshot(), Timestamp: time.Now()}
	h.send(c, first)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			h.send(c, event)
			return true

		case <-time.After(KeepAliveInterval):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

func (h *SSEHub) send(c *gin.Context, event StateEvent) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event: %v", err)
		return
	}
	c.SSEvent(event.EventType, string(eventJSON))
	c.Writer.Flush()
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
