// Package server exposes the settings watcher to a UI over HTTP: a
// WebSocket stream of config_changed events and a one-shot offset read.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hupe1980/offsetwatch/internal/notify"
)

const defaultClientBuffer = 8

// Hub fans events out to connected clients. A client that falls behind
// loses events rather than slowing the others.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	buffer  int
	logger  *slog.Logger
}

type client struct {
	events chan notify.Event
}

// NewHub creates a Hub whose per-client queues hold buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		clients: make(map[*client]struct{}),
		buffer:  buffer,
		logger:  logger,
	}
}

// Run forwards events from source to all clients until source is closed or
// ctx is done. Client queues are closed on return.
func (h *Hub) Run(ctx context.Context, source <-chan notify.Event) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-source:
			if !ok {
				return
			}

			h.broadcast(ev)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *Hub) subscribe() *client {
	c := &client{events: make(chan notify.Event, h.buffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
}

func (h *Hub) broadcast(ev notify.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.events <- ev:
		default:
			h.logger.Warn("client not keeping up, dropping event", slog.Uint64("seq", ev.Seq))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.events)
	}
}
