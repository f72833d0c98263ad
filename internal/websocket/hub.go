// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package websocket feeds quest events to connected admin consoles in
// real time. The hub fans broadcasts out to clients; slow clients are
// dropped rather than allowed to back-pressure the event router.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/metrics"
)

// Message types for the admin feed.
const (
	MessageTypeEvent = "event"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is the envelope written to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them. Register and Unregister are serviced by Run.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run services registrations and broadcasts until the context is
// canceled, then closes every client and returns ctx.Err(). Designed
// to sit under a supervisor.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Str("component", "websocket-hub").Msg("Websocket hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnectionsActive.Set(float64(total))
			logging.Info().Int("total_clients", total).Msg("Websocket client connected")

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnectionsActive.Set(float64(total))
			logging.Info().Int("total_clients", total).Msg("Websocket client disconnected")

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Broadcast parses serialized event bytes and queues them for all
// clients. Implements the event router's Broadcaster interface.
// Non-blocking: a full broadcast queue drops the message.
func (h *Hub) Broadcast(data []byte) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		logging.Warn().Err(err).Msg("Failed to unmarshal event for broadcast")
		return
	}

	select {
	case h.broadcast <- Message{Type: MessageTypeEvent, Data: payload}:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Msg("Broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastToClients writes one message to every client's send buffer.
// Clients are walked in ID order so delivery order is reproducible in
// tests. A client with a full buffer is disconnected.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSMessagesDropped.Inc()
	}
	if len(toRemove) > 0 {
		metrics.WSConnectionsActive.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnectionsActive.Set(0)
}
