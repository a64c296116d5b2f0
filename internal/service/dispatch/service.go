package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	DistanceTimeout   time.Duration
	LookupConcurrency int
	// MaxCandidates caps the eligible drivers ranked per request. The nearest
	// ones by straight-line distance are kept.
	MaxCandidates int
	// Location decides which calendar day "today" is for attendance.
	Location *time.Location
}

// Service assembles driver snapshots and ranks them. Read only.
type Service struct {
	ranker      *Ranker
	registry    DriverRegistry
	distance    DistanceLookup
	penalties   PenaltyStates
	performance PerformanceCategories
	limits      DailyLimits
	opts        Options
	now         func() time.Time
	l           logger.Logger
}

func NewService(ranker *Ranker, registry DriverRegistry, distance DistanceLookup, penalties PenaltyStates, performance PerformanceCategories, limits DailyLimits, opts Options, l logger.Logger) *Service {
	if opts.LookupConcurrency <= 0 {
		opts.LookupConcurrency = 8
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		ranker:      ranker,
		registry:    registry,
		distance:    distance,
		penalties:   penalties,
		performance: performance,
		limits:      limits,
		opts:        opts,
		now:         time.Now,
		l:           l,
	}
}

// RankCandidates returns the eligible drivers for trip, best first. A failed
// or slow distance lookup leaves that driver without a distance.
func (s *Service) RankCandidates(ctx context.Context, trip models.TripRequest) ([]models.DispatchCandidate, error) {
	const op = "DispatchService.RankCandidates"
	ctx = wrap.WithAction(ctx, types.ActionCandidatesRanked)

	if err := validateTrip(trip); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	day := models.Day(s.now(), s.opts.Location)
	records, err := s.registry.ListCandidates(ctx, trip.FranchiseID, day)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: list candidates: %w", op, err))
	}

	snapshots, err := s.snapshots(ctx, records)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	snapshots = s.window(ctx, trip, snapshots)

	// distances only for drivers that can be offered the trip
	s.lookupDistances(ctx, trip, snapshots)

	ranked := s.ranker.Rank(trip, snapshots)
	metrics.RecordRanking(len(ranked))

	s.l.Info(ctx, "candidates ranked", "trip_id", trip.TripID.String(), "drivers", len(records), "eligible", len(ranked))
	return ranked, nil
}

// window drops ineligible drivers and, over MaxCandidates, keeps the nearest
// eligible ones. Drivers without a location go last.
func (s *Service) window(ctx context.Context, trip models.TripRequest, snapshots []models.DriverSnapshot) []models.DriverSnapshot {
	eligible := make([]models.DriverSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if s.ranker.Exclusion(trip, snap) == "" {
			eligible = append(eligible, snap)
		}
	}
	if s.opts.MaxCandidates <= 0 || len(eligible) <= s.opts.MaxCandidates {
		return eligible
	}

	straight := func(snap models.DriverSnapshot) float64 {
		if snap.Location == nil {
			return math.Inf(1)
		}
		return HaversineDistance(*snap.Location, trip.Pickup)
	}
	slices.SortStableFunc(eligible, func(a, b models.DriverSnapshot) int {
		if c := cmp.Compare(straight(a), straight(b)); c != 0 {
			return c
		}
		return strings.Compare(a.DriverID.String(), b.DriverID.String())
	})

	s.l.Warn(ctx, "candidate list truncated", "eligible", len(eligible), "max", s.opts.MaxCandidates)
	return eligible[:s.opts.MaxCandidates]
}

func (s *Service) snapshots(ctx context.Context, records []models.DriverRecord) ([]models.DriverSnapshot, error) {
	ids := make([]uuid.UUID, len(records))
	franchises := make(map[uuid.UUID]uuid.UUID, len(records))
	for i, r := range records {
		ids[i] = r.DriverID
		franchises[r.DriverID] = r.FranchiseID
	}

	states, err := s.penalties.States(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("penalty states: %w", err)
	}
	categories, err := s.performance.Categories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("performance categories: %w", err)
	}
	limits, err := s.limits.RemainingLimits(ctx, franchises)
	if err != nil {
		return nil, fmt.Errorf("daily limits: %w", err)
	}

	out := make([]models.DriverSnapshot, len(records))
	for i, r := range records {
		out[i] = models.DriverSnapshot{
			DriverRecord:        r,
			PenaltyState:        states[r.DriverID],
			Category:            categories[r.DriverID],
			RemainingDailyLimit: limits[r.DriverID],
		}
	}
	return out, nil
}

// lookupDistances fills DistanceKm with bounded parallelism. Errors never
// fail the ranking.
func (s *Service) lookupDistances(ctx context.Context, trip models.TripRequest, snapshots []models.DriverSnapshot) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.LookupConcurrency)

	for i := range snapshots {
		snap := &snapshots[i]
		if snap.Location == nil || s.ranker.Exclusion(trip, *snap) != "" {
			continue
		}

		g.Go(func() error {
			lctx := gctx
			if s.opts.DistanceTimeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(gctx, s.opts.DistanceTimeout)
				defer cancel()
			}

			km, err := s.distance.Distance(lctx, *snap.Location, trip.Pickup)
			if err != nil {
				metrics.DistanceLookupFailures.Inc()
				s.l.Warn(wrap.WithAction(ctx, types.ActionDistanceDegraded), "distance lookup failed, ranking without distance",
					"driver_id", snap.DriverID.String(), "err", err.Error())
				return nil
			}
			snap.DistanceKm = &km
			return nil
		})
	}
	_ = g.Wait()
}

func validateTrip(trip models.TripRequest) error {
	switch {
	case trip.VehicleClass != "" && !trip.VehicleClass.Valid():
		return fmt.Errorf("%w: unknown vehicle class %q", types.ErrInvalidInput, trip.VehicleClass)
	case !trip.Pickup.Valid():
		return fmt.Errorf("%w: pickup coordinates are out of range", types.ErrInvalidInput)
	case trip.Limit < 0:
		return fmt.Errorf("%w: limit must not be negative", types.ErrInvalidInput)
	}
	return nil
}
