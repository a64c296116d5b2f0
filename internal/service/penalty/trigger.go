package penalty

import (
	"context"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
)

const day = 24 * time.Hour

// occurrenceOf returns the countable incident carried by ev, if any.
func occurrenceOf(ev models.DriverEvent) (models.Occurrence, bool) {
	o := models.Occurrence{DriverID: ev.EventDriverID(), Key: ev.EventSourceID(), OccurredAt: ev.EventTime()}

	switch e := ev.(type) {
	case models.ComplaintEvent:
		o.Kind = models.OccurrenceComplaint
		return o, true
	case models.TripOutcomeEvent:
		if e.Outcome != types.TripCancelled {
			return o, false
		}
		o.Kind = models.OccurrenceCancellation
		return o, true
	case models.AttendanceEvent:
		if e.Status != types.AttendanceAbsent {
			return o, false
		}
		date := e.Date
		if date.IsZero() {
			date = e.OccurredAt
		}
		// distinct days, not distinct reports
		o.Kind = models.OccurrenceAbsence
		o.Key = date.UTC().Format(time.DateOnly)
		return o, true
	}
	return o, false
}

// matches reports whether the trigger listens to this kind of event.
func matches(t models.Trigger, ev models.DriverEvent) bool {
	switch t.(type) {
	case models.LateArrival:
		return delayOf(ev) > 0
	case models.ComplaintCount:
		_, ok := ev.(models.ComplaintEvent)
		return ok
	case models.CancellationCount:
		e, ok := ev.(models.TripOutcomeEvent)
		return ok && e.Outcome == types.TripCancelled
	case models.Absence:
		e, ok := ev.(models.AttendanceEvent)
		return ok && e.Status == types.AttendanceAbsent
	}
	return false
}

func delayOf(ev models.DriverEvent) int {
	switch e := ev.(type) {
	case models.TripOutcomeEvent:
		return e.DelayMinutes
	case models.AttendanceEvent:
		return e.DelayMinutes
	}
	return 0
}

type counter func(ctx context.Context, kind models.OccurrenceKind, from, to time.Time) (int, error)

// crossed evaluates the threshold of t for ev. Counts include ev itself,
// which is recorded before evaluation.
func crossed(ctx context.Context, t models.Trigger, ev models.DriverEvent, count counter) (bool, map[string]any, error) {
	switch t := t.(type) {
	case models.LateArrival:
		delay := delayOf(ev)
		return delay >= t.DelayMinutes, map[string]any{
			"delay_minutes": delay,
			"threshold":     t.DelayMinutes,
		}, nil

	case models.ComplaintCount:
		return windowed(ctx, count, models.OccurrenceComplaint, t.ComplaintCount, t.WindowDays, ev.EventTime())

	case models.CancellationCount:
		return windowed(ctx, count, models.OccurrenceCancellation, t.CancellationCount, t.WindowDays, ev.EventTime())

	case models.Absence:
		return windowed(ctx, count, models.OccurrenceAbsence, t.AbsentDays, t.WindowDays, ev.EventTime())
	}
	return false, nil, nil
}

// windowed counts occurrences in (at - windowDays, at]. A zero window counts all history.
func windowed(ctx context.Context, count counter, kind models.OccurrenceKind, threshold, windowDays int, at time.Time) (bool, map[string]any, error) {
	var from time.Time
	if windowDays > 0 {
		from = at.Add(-time.Duration(windowDays) * day)
	}

	n, err := count(ctx, kind, from, at)
	if err != nil {
		return false, nil, err
	}

	return n >= threshold, map[string]any{
		"count":       n,
		"threshold":   threshold,
		"window_days": windowDays,
	}, nil
}
