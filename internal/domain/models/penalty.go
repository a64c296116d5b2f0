package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
)

// Trigger is the threshold payload of a penalty rule, one variant per trigger type.
type Trigger interface {
	Type() types.TriggerType
	Validate() error
	trigger()
}

type LateArrival struct {
	DelayMinutes int `json:"delay_minutes"`
}

type ComplaintCount struct {
	ComplaintCount int `json:"complaint_count"`
	WindowDays     int `json:"window_days"`
}

type CancellationCount struct {
	CancellationCount int `json:"cancellation_count"`
	WindowDays        int `json:"window_days"`
}

type Absence struct {
	AbsentDays int `json:"absent_days"`
	WindowDays int `json:"window_days"`
}

// ManualOnly marks rules that are applied by staff, never by the evaluator.
type ManualOnly struct{}

// InvalidTrigger stands in for a stored config that could not be decoded.
// It never validates, so the evaluator disables the rule.
type InvalidTrigger struct {
	Kind   types.TriggerType
	Reason string
}

func (LateArrival) Type() types.TriggerType       { return types.TriggerLateArrival }
func (ComplaintCount) Type() types.TriggerType    { return types.TriggerComplaintCount }
func (CancellationCount) Type() types.TriggerType { return types.TriggerCancellationCount }
func (Absence) Type() types.TriggerType           { return types.TriggerAbsence }
func (ManualOnly) Type() types.TriggerType        { return types.TriggerManual }
func (t InvalidTrigger) Type() types.TriggerType  { return t.Kind }

func (LateArrival) trigger()       {}
func (ComplaintCount) trigger()    {}
func (CancellationCount) trigger() {}
func (Absence) trigger()           {}
func (ManualOnly) trigger()        {}
func (InvalidTrigger) trigger()    {}

func (t LateArrival) Validate() error {
	if t.DelayMinutes <= 0 {
		return fmt.Errorf("%w: delay_minutes must be positive, got %d", types.ErrConfiguration, t.DelayMinutes)
	}
	return nil
}

func (t ComplaintCount) Validate() error {
	return validateCount("complaint_count", t.ComplaintCount, t.WindowDays)
}

func (t CancellationCount) Validate() error {
	return validateCount("cancellation_count", t.CancellationCount, t.WindowDays)
}

func (t Absence) Validate() error {
	return validateCount("absent_days", t.AbsentDays, t.WindowDays)
}

func (ManualOnly) Validate() error { return nil }

func (t InvalidTrigger) Validate() error {
	return fmt.Errorf("%w: %s", types.ErrConfiguration, t.Reason)
}

// DecodeTriggerOrInvalid is DecodeTrigger that never fails: undecodable
// configs become InvalidTrigger.
func DecodeTriggerOrInvalid(triggerType types.TriggerType, raw []byte) Trigger {
	t, err := DecodeTrigger(triggerType, raw)
	if err != nil {
		return InvalidTrigger{Kind: triggerType, Reason: strings.TrimPrefix(err.Error(), types.ErrConfiguration.Error()+": ")}
	}
	return t
}

func validateCount(name string, threshold, window int) error {
	if threshold <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", types.ErrConfiguration, name, threshold)
	}
	if window < 0 {
		return fmt.Errorf("%w: window_days must not be negative, got %d", types.ErrConfiguration, window)
	}
	return nil
}

// DecodeTrigger builds the variant matching triggerType from its JSON payload.
func DecodeTrigger(triggerType types.TriggerType, raw []byte) (Trigger, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var (
		t   Trigger
		err error
	)
	switch triggerType {
	case types.TriggerLateArrival:
		var v LateArrival
		err = json.Unmarshal(raw, &v)
		t = v
	case types.TriggerComplaintCount:
		var v ComplaintCount
		err = json.Unmarshal(raw, &v)
		t = v
	case types.TriggerCancellationCount:
		var v CancellationCount
		err = json.Unmarshal(raw, &v)
		t = v
	case types.TriggerAbsence:
		var v Absence
		err = json.Unmarshal(raw, &v)
		t = v
	case types.TriggerManual:
		t = ManualOnly{}
	default:
		return nil, fmt.Errorf("%w: unknown trigger type %q", types.ErrConfiguration, triggerType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: trigger config of %s: %v", types.ErrConfiguration, triggerType, err)
	}
	return t, nil
}

type NotifyFlags struct {
	Admin   bool `json:"admin"`
	Manager bool `json:"manager"`
	Driver  bool `json:"driver"`
}

// Recipients lists the flagged recipients in a fixed order.
func (n NotifyFlags) Recipients() []types.Recipient {
	var out []types.Recipient
	if n.Admin {
		out = append(out, types.RecipientAdmin)
	}
	if n.Manager {
		out = append(out, types.RecipientManager)
	}
	if n.Driver {
		out = append(out, types.RecipientDriver)
	}
	return out
}

type PenaltyRule struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	TriggerType types.TriggerType `json:"trigger_type"`
	Trigger     Trigger           `json:"trigger_config"`
	Severity    types.Severity    `json:"severity"`
	Category    string            `json:"category"`
	IsAutomatic bool              `json:"is_automatic"`
	BlockDriver bool              `json:"block_driver"`
	Notify      NotifyFlags       `json:"notify"`
}

// Validate checks the rule is usable by the evaluator.
func (r PenaltyRule) Validate() error {
	if r.Trigger == nil {
		return fmt.Errorf("%w: rule %s has no trigger config", types.ErrConfiguration, r.Name)
	}
	if r.Trigger.Type() != r.TriggerType {
		return fmt.Errorf("%w: rule %s trigger type %s does not match config %s",
			types.ErrConfiguration, r.Name, r.TriggerType, r.Trigger.Type())
	}
	if r.IsAutomatic && r.TriggerType == types.TriggerManual {
		return fmt.Errorf("%w: rule %s is automatic with a manual trigger", types.ErrConfiguration, r.Name)
	}
	return r.Trigger.Validate()
}

// Application records how a penalty was applied: Automatic or Manual.
type Application interface {
	Kind() types.ApplicationKind
	application()
}

type Automatic struct {
	RuleID uuid.UUID
}

type Manual struct {
	ActorID uuid.UUID
}

func (Automatic) Kind() types.ApplicationKind { return types.AppliedAutomatic }
func (Manual) Kind() types.ApplicationKind    { return types.AppliedManual }
func (Automatic) application()                {}
func (Manual) application()                   {}

// ActorOf returns the actor of a manual application, nil otherwise.
func ActorOf(a Application) *uuid.UUID {
	if m, ok := a.(Manual); ok {
		id := m.ActorID
		return &id
	}
	return nil
}

type PenaltyEvent struct {
	ID            uuid.UUID      `json:"id"`
	DriverID      uuid.UUID      `json:"driver_id"`
	RuleID        uuid.UUID      `json:"rule_id"`
	SourceEventID string         `json:"source_event_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Context       map[string]any `json:"context,omitempty"`
	Application   Application    `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (e PenaltyEvent) MarshalJSON() ([]byte, error) {
	type plain PenaltyEvent
	out := struct {
		plain
		AppliedBy types.ApplicationKind `json:"applied_by"`
		ActorID   *uuid.UUID            `json:"actor_id,omitempty"`
	}{plain: plain(e)}
	if e.Application != nil {
		out.AppliedBy = e.Application.Kind()
		out.ActorID = ActorOf(e.Application)
	}
	return json.Marshal(out)
}

type DriverPenaltyState struct {
	DriverID      uuid.UUID          `json:"driver_id"`
	State         types.PenaltyState `json:"state"`
	BlockSynced   bool               `json:"block_synced"`
	BlockedAt     *time.Time         `json:"blocked_at,omitempty"`
	BlockedByRule *uuid.UUID         `json:"blocked_by_rule,omitempty"`
	Version       int64              `json:"version"`
	UpdatedAt     time.Time          `json:"updated_at,omitzero"`
}

// NeedsBlockSync reports a BLOCKED state that the registry has not confirmed yet.
func (s DriverPenaltyState) NeedsBlockSync() bool {
	return s.State == types.StateBlocked && !s.BlockSynced
}

type NotificationIntent struct {
	DriverID       uuid.UUID       `json:"driver_id"`
	PenaltyEventID uuid.UUID       `json:"penalty_event_id"`
	RuleID         uuid.UUID       `json:"rule_id"`
	Recipient      types.Recipient `json:"recipient"`
	Severity       types.Severity  `json:"severity"`
	Message        string          `json:"message"`
	CreatedAt      time.Time       `json:"created_at"`
}

type DisabledRule struct {
	RuleID uuid.UUID `json:"rule_id"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
}

// EvaluationResult is everything one evaluation produced.
type EvaluationResult struct {
	DriverID      uuid.UUID            `json:"driver_id"`
	Events        []PenaltyEvent       `json:"events"`
	Blocked       bool                 `json:"blocked"`
	State         types.PenaltyState   `json:"state"`
	Notifications []NotificationIntent `json:"notifications"`
	DisabledRules []DisabledRule       `json:"disabled_rules,omitempty"`
}

// ManualPenalty is a staff-initiated penalty.
type ManualPenalty struct {
	DriverID      uuid.UUID      `json:"driver_id"`
	RuleID        uuid.UUID      `json:"rule_id"`
	ActorID       uuid.UUID      `json:"actor_id"`
	SourceEventID string         `json:"source_event_id"`
	Context       map[string]any `json:"context,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

type OccurrenceKind string

const (
	OccurrenceComplaint    OccurrenceKind = "COMPLAINT"
	OccurrenceCancellation OccurrenceKind = "CANCELLATION"
	OccurrenceAbsence      OccurrenceKind = "ABSENCE"
)

// Occurrence is one counted incident for windowed triggers. Key is unique per
// driver and kind: the source event id, or the date for absences.
type Occurrence struct {
	DriverID   uuid.UUID      `json:"driver_id"`
	Kind       OccurrenceKind `json:"kind"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// DriverPenalties is the penalty history of a driver with the current state.
type DriverPenalties struct {
	State  DriverPenaltyState `json:"state"`
	Events []PenaltyEvent     `json:"events"`
}
