package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/metrics"
	"github.com/Temutjin2k/driver-engine/pkg/rabbit"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnectDelay = 2 * time.Second

// EventHandler applies the three collaborator event kinds.
type EventHandler interface {
	HandleTripOutcome(ctx context.Context, ev models.TripOutcomeEvent) error
	HandleAttendance(ctx context.Context, ev models.AttendanceEvent) error
	HandleComplaint(ctx context.Context, ev models.ComplaintEvent) error
}

type deliveryFunc func(ctx context.Context, body []byte) error

// EventConsumer reads trip, attendance and complaint events. Failed
// deliveries are requeued unless the payload can never succeed.
type EventConsumer struct {
	client   *rabbit.RabbitMQ
	handler  EventHandler
	prefetch int
	l        logger.Logger
}

func NewEventConsumer(client *rabbit.RabbitMQ, handler EventHandler, prefetch int, l logger.Logger) *EventConsumer {
	return &EventConsumer{
		client:   client,
		handler:  handler,
		prefetch: prefetch,
		l:        l,
	}
}

// Run consumes every route until ctx is done.
func (c *EventConsumer) Run(ctx context.Context) error {
	routes := map[Route]deliveryFunc{
		TripOutcomeRoute: decodeInto(c.handler.HandleTripOutcome),
		AttendanceRoute:  decodeInto(c.handler.HandleAttendance),
		ComplaintRoute:   decodeInto(c.handler.HandleComplaint),
	}

	var wg sync.WaitGroup
	for route, fn := range routes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.consume(ctx, route, fn)
		}()
	}
	wg.Wait()
	return nil
}

// consume keeps one subscription on route alive, resubscribing after
// channel loss.
func (c *EventConsumer) consume(ctx context.Context, route Route, fn deliveryFunc) {
	const op = "EventConsumer.consume"
	ctx = wrap.WithAction(ctx, types.ActionEventConsumed)

	for {
		if ctx.Err() != nil {
			c.l.Debug(ctx, "consumer stopped by context", "queue", route.Queue)
			return
		}

		msgs, err := c.subscribe(ctx, route)
		if err != nil {
			c.l.Error(ctx, "subscribe failed", err, "op", op, "queue", route.Queue)
			if !sleepCtx(ctx, reconnectDelay) {
				return
			}
			continue
		}

		c.l.Info(ctx, "start consuming", "queue", route.Queue, "binding", route.Key)

	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				c.l.Info(ctx, "consumer shutting down", "queue", route.Queue)
				return
			case msg, ok := <-msgs:
				if !ok {
					c.l.Warn(ctx, "delivery channel closed, resubscribing", "queue", route.Queue)
					break consumeLoop
				}
				c.handleDelivery(ctx, route.Queue, fn, msg)
			}
		}

		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

// subscribe consumes route on the connection's shared channel. The client
// owns that channel and replaces it on reconnect, so it is never closed here.
func (c *EventConsumer) subscribe(ctx context.Context, route Route) (<-chan amqp.Delivery, error) {
	if err := c.client.Declare(ctx, ConsumerTopology()); err != nil {
		return nil, err
	}

	ch, err := c.client.Channel(ctx)
	if err != nil {
		return nil, err
	}
	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	msgs, err := ch.Consume(route.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", route.Queue, err)
	}
	return msgs, nil
}

// handleDelivery acks on success, rejects poison messages and requeues the rest.
func (c *EventConsumer) handleDelivery(ctx context.Context, queue string, fn deliveryFunc, msg amqp.Delivery) {
	const op = "EventConsumer.handleDelivery"

	requestID := msg.MessageId
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = wrap.WithRequestID(ctx, requestID)

	err := fn(ctx, msg.Body)
	metrics.RecordRabbitMQConsume(queue, err)

	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			c.l.Error(ctx, "ack failed", ackErr, "op", op)
		}
	case isPoison(err):
		c.l.Error(wrap.ErrorCtx(ctx, err), "dropping event", err, "op", op, "queue", queue)
		if rejErr := msg.Reject(false); rejErr != nil {
			c.l.Error(ctx, "reject failed", rejErr, "op", op)
		}
	default:
		c.l.Warn(wrap.ErrorCtx(ctx, err), "requeueing event", "op", op, "queue", queue, "error", err.Error())
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.l.Error(ctx, "nack failed", nackErr, "op", op)
		}
	}
}

// decodeInto adapts a typed handler to raw delivery bodies.
func decodeInto[T any](fn func(context.Context, T) error) deliveryFunc {
	return func(ctx context.Context, body []byte) error {
		var ev T
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("%w: decode %T: %v", types.ErrInvalidInput, ev, err)
		}
		return fn(ctx, ev)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
