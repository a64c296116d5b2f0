package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/metrics"
	"github.com/Temutjin2k/driver-engine/pkg/rabbit"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DriverStatusMessage announces a registry status change of a driver.
type DriverStatusMessage struct {
	DriverID  uuid.UUID          `json:"driver_id"`
	Status    types.DriverStatus `json:"status"`
	Reason    string             `json:"reason"`
	Timestamp time.Time          `json:"timestamp"`
}

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PenaltyPublisher sends block announcements to driver_topic and
// notification intents to notification_topic.
type PenaltyPublisher struct {
	channel func(ctx context.Context) (channelPublisher, error)
	now     func() time.Time
}

func NewPenaltyPublisher(client *rabbit.RabbitMQ) *PenaltyPublisher {
	return &PenaltyPublisher{
		channel: func(ctx context.Context) (channelPublisher, error) {
			return client.Channel(ctx)
		},
		now: time.Now,
	}
}

// Publish implements the penalty result publisher. Every message is attempted,
// failures are joined.
func (p *PenaltyPublisher) Publish(ctx context.Context, res models.EvaluationResult) error {
	const op = "PenaltyPublisher.Publish"
	ctx = wrap.WithDriverID(ctx, res.DriverID.String())

	var errs []error
	if res.Blocked {
		msg := DriverStatusMessage{
			DriverID:  res.DriverID,
			Status:    types.DriverBlocked,
			Reason:    blockReason(res),
			Timestamp: p.now().UTC(),
		}
		if err := p.publish(ctx, DriverExchange, DriverStatusKey(res.DriverID), msg); err != nil {
			errs = append(errs, err)
		}
	}

	for _, n := range res.Notifications {
		if err := p.publish(ctx, NotificationExchange, NotificationKey(n.Recipient), n); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func (p *PenaltyPublisher) publish(ctx context.Context, exchange, key string, v any) (err error) {
	defer func() { metrics.RecordRabbitMQPublish(exchange, err) }()

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", key, err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Body:         body,
			Timestamp:    p.now(),
		},
	); err != nil {
		ctx = wrap.WithAction(ctx, "publish_message")
		return wrap.Error(ctx, fmt.Errorf("publish %s: %w", key, err))
	}
	return nil
}

func DriverStatusKey(driverID uuid.UUID) string {
	return fmt.Sprintf("driver.status.%s", driverID)
}

func NotificationKey(r types.Recipient) string {
	return "penalty.notify." + strings.ToLower(string(r))
}

func blockReason(res models.EvaluationResult) string {
	for _, e := range res.Events {
		if reason, ok := e.Context["rule_name"].(string); ok {
			return "penalty rule " + reason
		}
	}
	return "penalty rule triggered"
}
