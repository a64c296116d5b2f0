package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewConnHub("test", logger.Discard())
	upgrader := websocket.Upgrader{}
	added := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConn(context.Background(), uuid.New(), c)
		_ = hub.Add(conn)
		added <- struct{}{}
		_ = conn.Listen(nil)
		_ = hub.Delete(conn.ID())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-added:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}

	n := hub.Broadcast(context.Background(), map[string]string{"type": "penalty"})
	assert.Equal(t, 1, n)

	var got map[string]string
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "penalty", got["type"])

	hub.Close()
	assert.Equal(t, 0, hub.Len())
}

func TestHubDeleteUnknown(t *testing.T) {
	hub := NewConnHub("test", logger.Discard())
	assert.ErrorIs(t, hub.Delete(uuid.New()), ErrConnIsNotFound)
	assert.ErrorIs(t, hub.Add(nil), ErrEmptyConn)
}
