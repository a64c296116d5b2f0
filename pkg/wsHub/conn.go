package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var ErrConnClosed = errors.New("connection closed")

// Conn is one websocket subscriber. Writes are serialised.
type Conn struct {
	id      uuid.UUID
	ownerID uuid.UUID
	conn    *websocket.Conn
	done    context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewConn wraps conn. ownerID is the authenticated user behind it.
func NewConn(ctx context.Context, ownerID uuid.UUID, conn *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(ctx)

	return &Conn{
		id:      uuid.New(),
		ownerID: ownerID,
		conn:    conn,
		done:    ctx,
		cancel:  cancel,
	}
}

func (c *Conn) ID() uuid.UUID      { return c.id }
func (c *Conn) OwnerID() uuid.UUID { return c.ownerID }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done.Done()
}

func (c *Conn) Ping() error {
	return c.write(func() error {
		return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
	})
}

func (c *Conn) Send(msg any) error {
	return c.write(func() error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return c.conn.WriteJSON(msg)
	})
}

func (c *Conn) write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done.Done():
		return ErrConnClosed
	default:
	}

	if err := fn(); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Listen reads client frames until the peer disconnects or the conn is closed.
// handler may be nil for send-only feeds.
func (c *Conn) Listen(handler func(msg map[string]any) error) error {
	for {
		var msg map[string]any
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done.Done():
				return nil
			default:
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if handler == nil {
			continue
		}
		if err := handler(msg); err != nil {
			return fmt.Errorf("handler failed: %w", err)
		}
	}
}

func (c *Conn) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
