// Package server exposes the live diagnostic stream over a websocket so
// an external dashboard can follow a long run.
package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Immie1996/boussinesq-convection/internal/run"
)

// Hub maintains the set of active clients and broadcasts each diagnostic
// sample to them as JSON. It implements run.Observer.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    run.Sample
	seen    bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// OnSample broadcasts the sample to every connected client. Clients whose
// writes fail are dropped.
func (h *Hub) OnSample(s run.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = s
	h.seen = true
	for conn := range h.clients {
		if err := conn.WriteJSON(s); err != nil {
			logrus.WithError(err).Debug("dropping websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Clients reports the number of connected peers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the peer. A newly connected
// client immediately receives the most recent sample.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if h.seen {
		if err := conn.WriteJSON(h.last); err != nil {
			conn.Close()
			delete(h.clients, conn)
			h.mu.Unlock()
			return
		}
	}
	h.mu.Unlock()

	// Drain the peer so pings and close frames are handled; the stream
	// is one-way.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ListenAndServe serves the hub on addr under /ws until the listener fails.
func (h *Hub) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	logrus.WithField("addr", addr).Info("serving diagnostics over websocket")
	return http.ListenAndServe(addr, mux)
}
