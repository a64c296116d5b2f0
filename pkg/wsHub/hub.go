package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/metrics"
	"github.com/google/uuid"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
)

// ConnectionHub keeps every live subscriber of a feed.
type ConnectionHub struct {
	name    string
	clients map[uuid.UUID]*Conn
	l       logger.Logger
	mu      sync.RWMutex
}

func NewConnHub(name string, l logger.Logger) *ConnectionHub {
	return &ConnectionHub{
		name:    name,
		clients: make(map[uuid.UUID]*Conn),
		l:       l,
	}
}

func (h *ConnectionHub) Add(c *Conn) error {
	if c == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	metrics.WebSocketConnectionsGauge.WithLabelValues(h.name).Inc()
	return nil
}

// Delete closes and forgets the connection.
func (h *ConnectionHub) Delete(id uuid.UUID) error {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if !ok {
		return ErrConnIsNotFound
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues(h.name).Dec()
	if err := c.Close(); err != nil {
		h.l.Debug(wrap.WithAction(context.Background(), "ws_connection_delete"),
			"failed to close conn", "conn_id", id, "err", err.Error())
	}
	return nil
}

// Broadcast sends msg to every subscriber. Subscribers that fail are dropped.
// Returns the number of successful deliveries.
func (h *ConnectionHub) Broadcast(ctx context.Context, msg any) int {
	h.mu.RLock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			h.l.Warn(ctx, "dropping websocket subscriber", "conn_id", c.id, "err", err.Error())
			_ = h.Delete(c.id)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *ConnectionHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes every websocket connection.
func (h *ConnectionHub) Close() {
	h.mu.RLock()
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		_ = h.Delete(id)
	}

	h.l.Info(wrap.WithAction(context.Background(), "hub_close"), "all websocket connections closed gracefully", "hub", h.name)
}
