package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/pkg/validator"
	"github.com/google/uuid"
)

const (
	EventKindTrip       = "trip"
	EventKindAttendance = "attendance"
	EventKindComplaint  = "complaint"
)

// PenaltyEventRequest carries one collaborator event for evaluation.
type PenaltyEventRequest struct {
	Kind  string          `json:"kind"`
	Event json.RawMessage `json:"event"`
}

func (r *PenaltyEventRequest) Validate(v *validator.Validator) {
	v.Check(validator.PermittedValue(r.Kind, EventKindTrip, EventKindAttendance, EventKindComplaint),
		"kind", "must be one of trip, attendance, complaint")
	v.Check(len(r.Event) > 0, "event", "must be provided")
}

// Decode builds the concrete event named by Kind.
func (r *PenaltyEventRequest) Decode() (models.DriverEvent, error) {
	switch r.Kind {
	case EventKindTrip:
		return decodeEvent[models.TripOutcomeEvent](r.Event)
	case EventKindAttendance:
		return decodeEvent[models.AttendanceEvent](r.Event)
	case EventKindComplaint:
		return decodeEvent[models.ComplaintEvent](r.Event)
	default:
		return nil, fmt.Errorf("unknown event kind %q", r.Kind)
	}
}

func decodeEvent[T models.DriverEvent](raw json.RawMessage) (models.DriverEvent, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("event is not a valid %T: %v", ev, err)
	}
	return ev, nil
}

type ManualPenaltyRequest struct {
	RuleID        uuid.UUID      `json:"rule_id"`
	SourceEventID string         `json:"source_event_id,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	OccurredAt    *time.Time     `json:"occurred_at,omitempty"`
}

func (r *ManualPenaltyRequest) Validate(v *validator.Validator) {
	v.Check(r.RuleID != uuid.Nil, "rule_id", "must be provided")
	v.Check(len(r.SourceEventID) <= 128, "source_event_id", "must not be more than 128 characters")
	v.Check(len(r.Reason) <= 500, "reason", "must not be more than 500 characters")
}

// ToModel generates a source event id when none was sent, so every manual
// submission is a distinct penalty.
func (r *ManualPenaltyRequest) ToModel(driverID, actorID uuid.UUID, now time.Time) models.ManualPenalty {
	sourceID := r.SourceEventID
	if sourceID == "" {
		sourceID = "manual-" + uuid.NewString()
	}
	occurredAt := now
	if r.OccurredAt != nil {
		occurredAt = *r.OccurredAt
	}

	ctx := make(map[string]any, len(r.Context)+1)
	for k, v := range r.Context {
		ctx[k] = v
	}
	if r.Reason != "" {
		ctx["reason"] = r.Reason
	}

	return models.ManualPenalty{
		DriverID:      driverID,
		RuleID:        r.RuleID,
		ActorID:       actorID,
		SourceEventID: sourceID,
		Context:       ctx,
		OccurredAt:    occurredAt,
	}
}
