package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DriverEvent is one of TripOutcomeEvent, AttendanceEvent or ComplaintEvent.
type DriverEvent interface {
	EventDriverID() uuid.UUID
	EventSourceID() string
	EventTime() time.Time
	driverEvent()
}

// TripOutcomeEvent is emitted by the trip ledger when an assigned trip ends.
type TripOutcomeEvent struct {
	SourceEventID string            `json:"source_event_id"`
	DriverID      uuid.UUID         `json:"driver_id"`
	FranchiseID   uuid.UUID         `json:"franchise_id"`
	Outcome       types.TripOutcome `json:"outcome"`
	FareAmount    decimal.Decimal   `json:"fare_amount"`
	DelayMinutes  int               `json:"delay_minutes"`
	Rating        *float64          `json:"rating,omitempty"`
	OccurredAt    time.Time         `json:"timestamp"`
}

// AttendanceEvent reports a driver's attendance for one day.
type AttendanceEvent struct {
	SourceEventID string                 `json:"source_event_id"`
	DriverID      uuid.UUID              `json:"driver_id"`
	Date          time.Time              `json:"date"`
	CheckedIn     bool                   `json:"checked_in"`
	Status        types.AttendanceStatus `json:"attendance_status"`
	DelayMinutes  int                    `json:"delay_minutes"`
	OccurredAt    time.Time              `json:"timestamp"`
}

// UnmarshalJSON takes the date either as YYYY-MM-DD or as an RFC 3339 time.
func (e *AttendanceEvent) UnmarshalJSON(b []byte) error {
	type plain AttendanceEvent
	aux := struct {
		*plain
		Date string `json:"date"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Date == "" {
		e.Date = time.Time{}
		return nil
	}

	date, err := time.Parse(time.DateOnly, aux.Date)
	if err != nil {
		if date, err = time.Parse(time.RFC3339, aux.Date); err != nil {
			return fmt.Errorf("attendance date %q: %w", aux.Date, err)
		}
	}
	e.Date = date
	return nil
}

// ComplaintEvent is a customer complaint filed against a driver.
type ComplaintEvent struct {
	SourceEventID string     `json:"source_event_id"`
	DriverID      uuid.UUID  `json:"driver_id"`
	TripID        *uuid.UUID `json:"trip_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"timestamp"`
}

func (e TripOutcomeEvent) EventDriverID() uuid.UUID { return e.DriverID }
func (e TripOutcomeEvent) EventSourceID() string    { return e.SourceEventID }
func (e TripOutcomeEvent) EventTime() time.Time     { return e.OccurredAt }
func (TripOutcomeEvent) driverEvent()               {}

func (e AttendanceEvent) EventDriverID() uuid.UUID { return e.DriverID }
func (e AttendanceEvent) EventSourceID() string    { return e.SourceEventID }
func (e AttendanceEvent) EventTime() time.Time     { return e.OccurredAt }
func (AttendanceEvent) driverEvent()               {}

func (e ComplaintEvent) EventDriverID() uuid.UUID { return e.DriverID }
func (e ComplaintEvent) EventSourceID() string    { return e.SourceEventID }
func (e ComplaintEvent) EventTime() time.Time     { return e.OccurredAt }
func (ComplaintEvent) driverEvent()               {}

// EventKind names the concrete event type, used in logs and penalty context.
func EventKind(e DriverEvent) string {
	switch e.(type) {
	case TripOutcomeEvent, *TripOutcomeEvent:
		return "trip"
	case AttendanceEvent, *AttendanceEvent:
		return "attendance"
	case ComplaintEvent, *ComplaintEvent:
		return "complaint"
	default:
		return "unknown"
	}
}
