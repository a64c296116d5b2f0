package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/keymutex"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/metrics"
	"github.com/Temutjin2k/driver-engine/pkg/retry"
	"github.com/Temutjin2k/driver-engine/pkg/trm"
	"github.com/google/uuid"
)

const (
	ledgerScopeTrip      = "performance.trip"
	ledgerScopeComplaint = "performance.complaint"
)

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Service owns PerformanceMetrics. Updates are serialised per driver and
// recomputed from cumulative counters on every event.
type Service struct {
	scorer *Scorer
	repo   MetricsRepo
	ledger EventLedger
	trm    trm.TxManager
	locks  *keymutex.KeyMutex[uuid.UUID]
	retry  RetryPolicy
	now    func() time.Time
	l      logger.Logger
}

func NewService(scorer *Scorer, repo MetricsRepo, ledger EventLedger, trm trm.TxManager, retry RetryPolicy, l logger.Logger) *Service {
	return &Service{
		scorer: scorer,
		repo:   repo,
		ledger: ledger,
		trm:    trm,
		locks:  keymutex.New[uuid.UUID](),
		retry:  retry,
		now:    time.Now,
		l:      l,
	}
}

// RecordTripOutcome applies one trip outcome to the driver's counters.
func (s *Service) RecordTripOutcome(ctx context.Context, ev models.TripOutcomeEvent) (models.PerformanceMetrics, error) {
	const op = "PerformanceService.RecordTripOutcome"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionScoreRecomputed), ev.DriverID.String())

	if err := validateTrip(ev); err != nil {
		return models.PerformanceMetrics{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	m, err := s.update(ctx, ev.DriverID, ledgerScopeTrip, ev.SourceEventID, func(m *models.PerformanceMetrics) {
		m.TotalTrips++
		switch ev.Outcome {
		case types.TripCompleted:
			m.CompletedTrips++
		case types.TripRejected:
			m.RejectedTrips++
		case types.TripCancelled:
			m.CancelledTrips++
		}
		if ev.Rating != nil {
			m.RatingSum += *ev.Rating
			m.RatingCount++
		}
	})
	if err != nil {
		return models.PerformanceMetrics{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return m, nil
}

// RecordComplaint counts one complaint against the driver.
func (s *Service) RecordComplaint(ctx context.Context, ev models.ComplaintEvent) (models.PerformanceMetrics, error) {
	const op = "PerformanceService.RecordComplaint"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionScoreRecomputed), ev.DriverID.String())

	if ev.DriverID == uuid.Nil || ev.SourceEventID == "" {
		return models.PerformanceMetrics{}, wrap.Error(ctx, fmt.Errorf("%s: %w: driver_id and source_event_id are required", op, types.ErrInvalidInput))
	}

	m, err := s.update(ctx, ev.DriverID, ledgerScopeComplaint, ev.SourceEventID, func(m *models.PerformanceMetrics) {
		m.ComplaintCount++
	})
	if err != nil {
		return models.PerformanceMetrics{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return m, nil
}

// GetPerformance returns the stored metrics, or neutral defaults for an unknown driver.
func (s *Service) GetPerformance(ctx context.Context, driverID uuid.UUID) (models.PerformanceMetrics, error) {
	const op = "PerformanceService.GetPerformance"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "get_performance"), driverID.String())

	m, err := s.repo.Get(ctx, driverID)
	if errors.Is(err, types.ErrNotFound) {
		return s.defaults(driverID), nil
	}
	if err != nil {
		return models.PerformanceMetrics{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return m, nil
}

// Categories returns the category of every requested driver. Drivers without
// metrics get the neutral category.
func (s *Service) Categories(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]types.Category, error) {
	const op = "PerformanceService.Categories"

	stored, err := s.repo.GetMany(ctx, driverIDs)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	out := make(map[uuid.UUID]types.Category, len(driverIDs))
	for _, id := range driverIDs {
		if m, ok := stored[id]; ok && m.Category.Valid() {
			out[id] = m.Category
			continue
		}
		out[id] = s.scorer.NeutralCategory()
	}
	return out, nil
}

func (s *Service) defaults(driverID uuid.UUID) models.PerformanceMetrics {
	return models.PerformanceMetrics{
		DriverID: driverID,
		Score:    s.scorer.NeutralScore(),
		Category: s.scorer.NeutralCategory(),
	}
}

// update runs one read-modify-write under the driver lock with optimistic
// retry. Already processed source events return the current metrics.
func (s *Service) update(ctx context.Context, driverID uuid.UUID, scope, sourceEventID string, apply func(*models.PerformanceMetrics)) (models.PerformanceMetrics, error) {
	unlock := s.locks.Lock(driverID)
	defer unlock()

	var result models.PerformanceMetrics
	err := retry.Do(ctx, s.retry.MaxAttempts, s.retry.Backoff, isConflict, func(ctx context.Context) error {
		return s.trm.Do(ctx, func(ctx context.Context) error {
			current, err := s.repo.Get(ctx, driverID)
			switch {
			case errors.Is(err, types.ErrNotFound):
				current = models.PerformanceMetrics{DriverID: driverID}
			case err != nil:
				return err
			}

			processed, err := s.ledger.IsProcessed(ctx, scope, sourceEventID)
			if err != nil {
				return err
			}
			if processed {
				s.l.Debug(ctx, "source event already applied", "source_event_id", sourceEventID)
				if current.Version == 0 {
					current = s.defaults(driverID)
				}
				result = current
				return nil
			}

			next := current
			apply(&next)
			next.Recompute()

			score, category, err := s.scorer.Score(next.Stats())
			if err != nil {
				return fmt.Errorf("%w: counters produced invalid stats: %v", types.ErrInvariantViolation, err)
			}
			next.Score, next.Category = score, category
			next.Version = current.Version + 1
			next.UpdatedAt = s.now().UTC()

			if err := s.repo.Save(ctx, next, current.Version); err != nil {
				if errors.Is(err, types.ErrConflict) {
					metrics.RecordConflict("performance_metrics")
				}
				return err
			}
			if err := s.ledger.MarkProcessed(ctx, scope, sourceEventID); err != nil {
				return err
			}

			result = next
			return nil
		})
	})
	if err != nil {
		return models.PerformanceMetrics{}, err
	}

	s.l.Debug(ctx, "performance recomputed", "score", result.Score, "category", result.Category, "version", result.Version)
	return result, nil
}

func isConflict(err error) bool {
	return errors.Is(err, types.ErrConflict)
}

func validateTrip(ev models.TripOutcomeEvent) error {
	switch {
	case ev.DriverID == uuid.Nil:
		return fmt.Errorf("%w: driver_id is required", types.ErrInvalidInput)
	case ev.SourceEventID == "":
		return fmt.Errorf("%w: source_event_id is required", types.ErrInvalidInput)
	case !ev.Outcome.Valid():
		return fmt.Errorf("%w: unknown trip outcome %q", types.ErrInvalidInput, ev.Outcome)
	case ev.Rating != nil && (*ev.Rating < 0 || *ev.Rating > 5):
		return fmt.Errorf("%w: rating %v is outside [0,5]", types.ErrInvalidInput, *ev.Rating)
	case ev.DelayMinutes < 0:
		return fmt.Errorf("%w: delay_minutes must not be negative", types.ErrInvalidInput)
	}
	return nil
}
