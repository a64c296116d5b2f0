// Package ingest fans collaborator events out to the engine services.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
)

type (
	PerformanceRecorder interface {
		RecordTripOutcome(ctx context.Context, ev models.TripOutcomeEvent) (models.PerformanceMetrics, error)
		RecordComplaint(ctx context.Context, ev models.ComplaintEvent) (models.PerformanceMetrics, error)
	}

	EarningsRecorder interface {
		ApplyTripEarning(ctx context.Context, te models.TripEarning) (models.DailyLimitState, error)
	}

	PenaltyEvaluator interface {
		EvaluatePenaltyEvent(ctx context.Context, ev models.DriverEvent) (models.EvaluationResult, error)
	}
)

// Service applies one event to every interested service. Each step is
// idempotent on the source event id, so a failed event can be redelivered whole.
type Service struct {
	performance PerformanceRecorder
	earnings    EarningsRecorder
	penalties   PenaltyEvaluator
	l           logger.Logger
}

func NewService(performance PerformanceRecorder, earnings EarningsRecorder, penalties PenaltyEvaluator, l logger.Logger) *Service {
	return &Service{
		performance: performance,
		earnings:    earnings,
		penalties:   penalties,
		l:           l,
	}
}

// HandleTripOutcome rescores the driver, books the fare of completed trips
// and evaluates penalties.
func (s *Service) HandleTripOutcome(ctx context.Context, ev models.TripOutcomeEvent) error {
	const op = "IngestService.HandleTripOutcome"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionEventConsumed), ev.DriverID.String())

	if _, err := s.performance.RecordTripOutcome(ctx, ev); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: performance: %w", op, err))
	}

	if ev.Outcome == types.TripCompleted && ev.FareAmount.IsPositive() {
		_, err := s.earnings.ApplyTripEarning(ctx, models.TripEarning{
			DriverID:      ev.DriverID,
			FranchiseID:   ev.FranchiseID,
			SourceEventID: ev.SourceEventID,
			OccurredAt:    ev.OccurredAt,
			Amount:        ev.FareAmount,
		})
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("%s: earnings: %w", op, err))
		}
	}

	return s.evaluate(ctx, op, ev)
}

func (s *Service) HandleAttendance(ctx context.Context, ev models.AttendanceEvent) error {
	const op = "IngestService.HandleAttendance"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionEventConsumed), ev.DriverID.String())

	return s.evaluate(ctx, op, ev)
}

func (s *Service) HandleComplaint(ctx context.Context, ev models.ComplaintEvent) error {
	const op = "IngestService.HandleComplaint"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionEventConsumed), ev.DriverID.String())

	if _, err := s.performance.RecordComplaint(ctx, ev); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: performance: %w", op, err))
	}
	return s.evaluate(ctx, op, ev)
}

func (s *Service) evaluate(ctx context.Context, op string, ev models.DriverEvent) error {
	res, err := s.penalties.EvaluatePenaltyEvent(ctx, ev)
	if err != nil {
		if errors.Is(err, types.ErrBlockFailed) {
			// the penalty is stored, reconciliation finishes the block
			s.l.Warn(ctx, "driver block pending", "source_event_id", ev.EventSourceID())
			return nil
		}
		return wrap.Error(ctx, fmt.Errorf("%s: penalties: %w", op, err))
	}

	if len(res.Events) > 0 {
		s.l.Info(ctx, "event produced penalties", "kind", models.EventKind(ev), "penalties", len(res.Events), "state", res.State)
	}
	return nil
}
