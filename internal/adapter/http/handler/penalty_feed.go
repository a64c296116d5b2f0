package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	ws "github.com/Temutjin2k/driver-engine/pkg/wsHub"
	"github.com/gorilla/websocket"
)

const feedPingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedMessage is one frame of the admin penalty feed.
type feedMessage struct {
	Type string                  `json:"type"`
	Data models.EvaluationResult `json:"data"`
	At   time.Time               `json:"at"`
}

// PenaltyFeed streams penalty results to connected admins. It doubles as a
// penalty result publisher.
type PenaltyFeed struct {
	hub *ws.ConnectionHub
	l   logger.Logger
}

func NewPenaltyFeed(hub *ws.ConnectionHub, l logger.Logger) *PenaltyFeed {
	return &PenaltyFeed{hub: hub, l: l}
}

// Publish broadcasts res to every subscriber. Results without penalty events
// are not sent.
func (f *PenaltyFeed) Publish(ctx context.Context, res models.EvaluationResult) error {
	if len(res.Events) == 0 {
		return nil
	}
	delivered := f.hub.Broadcast(ctx, feedMessage{Type: "penalty_result", Data: res, At: time.Now().UTC()})
	f.l.Debug(ctx, "penalty result broadcast", "subscribers", delivered)
	return nil
}

// Subscribe godoc
// @Summary      Live penalty feed
// @Description  Upgrades to a websocket that receives every penalty result. Browsers may pass the token as the token query parameter.
// @Tags         Penalties
// @Security     BearerAuth
// @Param        token  query  string  false  "Access token"
// @Success      101
// @Failure      403  {object}  map[string]string
// @Router       /ws/admin/penalties [get]
func (f *PenaltyFeed) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "penalty_feed_subscribe")
	user := caller(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		f.l.Error(ctx, "websocket upgrade failed", err)
		return
	}

	c := ws.NewConn(context.WithoutCancel(ctx), user.ID, conn)
	if err := f.hub.Add(c); err != nil {
		f.l.Error(ctx, "failed to register subscriber", err)
		_ = conn.Close()
		return
	}
	f.l.Info(ctx, "penalty feed subscriber connected", "conn_id", c.ID().String())

	go f.keepAlive(ctx, c)

	if err := c.Listen(nil); err != nil {
		f.l.Debug(ctx, "penalty feed subscriber left", "conn_id", c.ID().String(), "reason", err.Error())
	}
	_ = f.hub.Delete(c.ID())
}

func (f *PenaltyFeed) keepAlive(ctx context.Context, c *ws.Conn) {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				f.l.Debug(ctx, "ping failed", "conn_id", c.ID().String(), "error", err.Error())
				_ = f.hub.Delete(c.ID())
				return
			}
		}
	}
}
