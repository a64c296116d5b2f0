// Package kafka streams applied penalties to an audit topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditRecord is one penalty event as written to the audit topic.
type AuditRecord struct {
	Event    models.PenaltyEvent `json:"event"`
	State    types.PenaltyState  `json:"state"`
	Blocked  bool                `json:"blocked"`
	Recorded time.Time           `json:"recorded_at"`
}

// PenaltyAudit writes every penalty event of an evaluation keyed by driver id,
// so the events of one driver stay ordered within a partition.
type PenaltyAudit struct {
	writer messageWriter
	now    func() time.Time
}

func NewPenaltyAudit(brokers []string, topic string, writeTimeout time.Duration) (*PenaltyAudit, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newPenaltyAudit(w), nil
}

func newPenaltyAudit(w messageWriter) *PenaltyAudit {
	return &PenaltyAudit{writer: w, now: time.Now}
}

// Publish writes the events of res in one batch. Results without events are skipped.
func (a *PenaltyAudit) Publish(ctx context.Context, res models.EvaluationResult) error {
	const op = "PenaltyAudit.Publish"

	if len(res.Events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(res.Events))
	for _, e := range res.Events {
		value, err := json.Marshal(AuditRecord{
			Event:    e,
			State:    res.State,
			Blocked:  res.Blocked,
			Recorded: a.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("%s: marshal %s: %w", op, e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   driverKey(res.DriverID),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "rule_id", Value: []byte(e.RuleID.String())},
			},
		})
	}

	if err := a.writer.WriteMessages(ctx, msgs...); err != nil {
		ctx = wrap.WithAction(wrap.WithDriverID(ctx, res.DriverID.String()), types.ActionExternalServiceFailed)
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func (a *PenaltyAudit) Close() error {
	return a.writer.Close()
}

func driverKey(id uuid.UUID) []byte {
	return []byte(id.String())
}
