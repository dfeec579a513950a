// Package livereload pushes rebuild and error events to browsers over
// Server-Sent Events.
package livereload

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// EventType distinguishes messages sent to browsers.
type EventType string

const (
	// EventHello carries the current hash on connect.
	EventHello  EventType = "hello"
	EventReload EventType = "reload"
	EventError  EventType = "error"
)

// Event is the JSON payload of one SSE message.
type Event struct {
	Type    EventType `json:"type"`
	Hash    string    `json:"hash,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message,omitempty"`
}

const (
	clientBuffer = 8
	pingInterval = 30 * time.Second
)

// Hub manages SSE clients. It is created once per dev session and shared by
// the server, the watcher and the notifier.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	lastHash  string
	lastError *Event
	logger    *slog.Logger
}

type client struct {
	id   int
	ch   chan Event
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: map[int]*client{}, logger: logger}
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	c := &client{ch: make(chan Event, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	current, pending := h.lastHash, h.lastError
	h.mu.Unlock()
	defer h.removeClient(c.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(e Event) bool {
		payload, err := json.Marshal(e)
		if err != nil {
			return false
		}
		if _, err := bw.WriteString("data: " + string(payload) + "\n\n"); err != nil {
			h.logger.Debug("livereload write", "error", err)
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if !send(Event{Type: EventHello, Hash: current}) {
		return
	}
	if pending != nil && !send(*pending) {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-ping.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				_ = bw.Flush()
				flusher.Flush()
			}
		case e := <-c.ch:
			if !send(e) {
				return
			}
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast tells clients to reload. Empty or repeated hashes are ignored.
// A reload clears any pending error.
func (h *Hub) Broadcast(hash string) {
	h.mu.Lock()
	if h.closed || hash == "" || hash == h.lastHash {
		h.mu.Unlock()
		return
	}
	h.lastHash = hash
	h.lastError = nil
	snapshot := h.snapshotLocked()
	h.mu.Unlock()

	dropped := h.deliver(snapshot, Event{Type: EventReload, Hash: hash})
	h.logger.Debug("livereload broadcast", "hash", hash, "clients", len(snapshot), "dropped", dropped)
}

// BroadcastError shows a build error in connected browsers. Clients that
// connect later receive it until the next reload.
func (h *Hub) BroadcastError(stage, message string) {
	e := Event{Type: EventError, Stage: stage, Message: message}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.lastError = &e
	snapshot := h.snapshotLocked()
	h.mu.Unlock()
	h.deliver(snapshot, e)
}

func (h *Hub) snapshotLocked() []*client {
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// deliver sends e to every client, dropping clients whose buffer is full.
func (h *Hub) deliver(clients []*client, e Event) int {
	dropped := 0
	for _, c := range clients {
		select {
		case c.ch <- e:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	return dropped
}

// Shutdown disconnects all clients and ignores further broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}
