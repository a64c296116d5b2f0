package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPenaltyAudit_Publish(t *testing.T) {
	w := &fakeWriter{}
	a := newPenaltyAudit(w)
	driverID, ruleID := uuid.New(), uuid.New()
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	res := models.EvaluationResult{
		DriverID: driverID,
		Blocked:  true,
		State:    types.StateBlocked,
		Events: []models.PenaltyEvent{{
			ID:            uuid.New(),
			DriverID:      driverID,
			RuleID:        ruleID,
			SourceEventID: "complaint-3",
			OccurredAt:    at,
			Application:   models.Automatic{RuleID: ruleID},
		}},
	}

	require.NoError(t, a.Publish(context.Background(), res))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, driverID.String(), string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, ruleID.String(), string(msg.Headers[0].Value))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	assert.Equal(t, "BLOCKED", rec["state"])
	assert.Equal(t, true, rec["blocked"])
	event := rec["event"].(map[string]any)
	assert.Equal(t, "AUTOMATIC", event["applied_by"])
	assert.Equal(t, "complaint-3", event["source_event_id"])
}

func TestPenaltyAudit_SkipsEmptyResults(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	a := newPenaltyAudit(w)

	assert.NoError(t, a.Publish(context.Background(), models.EvaluationResult{DriverID: uuid.New()}))
	assert.Empty(t, w.msgs)
}

func TestPenaltyAudit_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	a := newPenaltyAudit(&fakeWriter{err: boom})

	err := a.Publish(context.Background(), models.EvaluationResult{
		DriverID: uuid.New(),
		Events:   []models.PenaltyEvent{{ID: uuid.New()}},
	})
	assert.ErrorIs(t, err, boom)
}

func TestNewPenaltyAudit_Validation(t *testing.T) {
	_, err := NewPenaltyAudit(nil, "penalties", time.Second)
	assert.Error(t, err)

	_, err = NewPenaltyAudit([]string{"localhost:9092"}, "", time.Second)
	assert.Error(t, err)

	a, err := NewPenaltyAudit([]string{"localhost:9092"}, "penalties", 0)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}
