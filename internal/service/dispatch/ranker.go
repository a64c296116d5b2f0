package dispatch

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
)

// Weights of the composite terms.
type Weights struct {
	Proximity   float64
	Performance float64
	Limit       float64
}

// Multipliers map a performance category to its term value.
type Multipliers struct {
	Green  float64
	Yellow float64
	Red    float64
}

var (
	DefaultWeights     = Weights{Proximity: 0.5, Performance: 0.35, Limit: 0.15}
	DefaultMultipliers = Multipliers{Green: 1.0, Yellow: 0.6, Red: 0.2}
)

// Exclusion reasons, empty when eligible.
const (
	ExcludedInactive       = "driver_not_active"
	ExcludedBanned         = "driver_banned"
	ExcludedBlocked        = "penalty_blocked"
	ExcludedVehicle        = "vehicle_mismatch"
	ExcludedNotCheckedIn   = "not_checked_in"
	ExcludedAttendance     = "attendance_absent"
	ExcludedLimitExhausted = "daily_limit_exhausted"
)

// Ranker orders eligible drivers for a trip. Pure and deterministic.
type Ranker struct {
	weights          Weights
	multipliers      Multipliers
	excludeExhausted bool
}

func NewRanker(w Weights, m Multipliers, excludeExhausted bool) (*Ranker, error) {
	for _, v := range []float64{w.Proximity, w.Performance, w.Limit, m.Green, m.Yellow, m.Red} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: dispatch weights and multipliers must be finite and non-negative", types.ErrConfiguration)
		}
	}
	if w.Proximity+w.Performance+w.Limit <= 0 {
		return nil, fmt.Errorf("%w: dispatch weights must sum to a positive value", types.ErrConfiguration)
	}
	if !(m.Green >= m.Yellow && m.Yellow >= m.Red) {
		return nil, fmt.Errorf("%w: multipliers must satisfy green >= yellow >= red", types.ErrConfiguration)
	}
	return &Ranker{weights: w, multipliers: m, excludeExhausted: excludeExhausted}, nil
}

func MustDefaultRanker() *Ranker {
	r, err := NewRanker(DefaultWeights, DefaultMultipliers, false)
	if err != nil {
		panic(err)
	}
	return r
}

// Exclusion returns why s can never be offered trip, or "".
func (r *Ranker) Exclusion(trip models.TripRequest, s models.DriverSnapshot) string {
	switch {
	case s.Banned:
		return ExcludedBanned
	case s.Status == types.DriverBlocked || s.PenaltyState == types.StateBlocked:
		return ExcludedBlocked
	case s.Status != types.DriverActive:
		return ExcludedInactive
	case trip.VehicleClass != "" && s.VehicleClass != trip.VehicleClass:
		return ExcludedVehicle
	case !s.CheckedIn:
		return ExcludedNotCheckedIn
	case s.AttendanceStatus == types.AttendanceAbsent || s.AttendanceStatus == types.AttendanceOnLeave:
		return ExcludedAttendance
	case r.excludeExhausted && !s.RemainingDailyLimit.IsPositive():
		return ExcludedLimitExhausted
	}
	return ""
}

// Rank returns the eligible candidates best first. Exhausted drivers sort
// after every driver with limit remaining. Ties break on distance, active
// trips, check-in time and driver id.
func (r *Ranker) Rank(trip models.TripRequest, snapshots []models.DriverSnapshot) []models.DispatchCandidate {
	out := make([]models.DispatchCandidate, 0, len(snapshots))
	for _, s := range snapshots {
		if r.Exclusion(trip, s) != "" {
			continue
		}
		out = append(out, r.candidate(s))
	}

	slices.SortFunc(out, compareCandidates)

	if trip.Limit > 0 && len(out) > trip.Limit {
		out = out[:trip.Limit]
	}
	return out
}

func (r *Ranker) candidate(s models.DriverSnapshot) models.DispatchCandidate {
	proximity := 0.0
	if s.DistanceKm != nil {
		proximity = 1 / (1 + max(0, *s.DistanceKm))
	}

	exhausted := !s.RemainingDailyLimit.IsPositive()
	limit := 1.0
	if exhausted {
		limit = 0
	}

	composite := r.weights.Proximity*proximity + r.weights.Performance*r.multiplier(s.Category) + r.weights.Limit*limit

	return models.DispatchCandidate{
		DriverID:            s.DriverID,
		VehicleMatch:        true,
		DistanceKm:          s.DistanceKm,
		PerformanceCategory: s.Category,
		RemainingDailyLimit: s.RemainingDailyLimit,
		CheckedIn:           s.CheckedIn,
		AttendanceStatus:    s.AttendanceStatus,
		Eligible:            true,
		LimitExhausted:      exhausted,
		// rounded so float noise never decides a tie
		CompositeScore: math.Round(composite*1e9) / 1e9,
		ActiveTrips:    s.ActiveTrips,
		CheckedInAt:    s.CheckedInAt,
	}
}

func (r *Ranker) multiplier(c types.Category) float64 {
	switch c {
	case types.CategoryGreen:
		return r.multipliers.Green
	case types.CategoryYellow:
		return r.multipliers.Yellow
	default:
		return r.multipliers.Red
	}
}

func compareCandidates(a, b models.DispatchCandidate) int {
	if a.LimitExhausted != b.LimitExhausted {
		if a.LimitExhausted {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(b.CompositeScore, a.CompositeScore); c != 0 {
		return c
	}
	if c := cmp.Compare(distanceOrInf(a.DistanceKm), distanceOrInf(b.DistanceKm)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ActiveTrips, b.ActiveTrips); c != 0 {
		return c
	}
	switch {
	case a.CheckedInAt != nil && b.CheckedInAt != nil:
		if c := a.CheckedInAt.Compare(*b.CheckedInAt); c != 0 {
			return c
		}
	case a.CheckedInAt != nil:
		return -1
	case b.CheckedInAt != nil:
		return 1
	}
	return cmp.Compare(a.DriverID.String(), b.DriverID.String())
}

func distanceOrInf(d *float64) float64 {
	if d == nil {
		return math.Inf(1)
	}
	return *d
}
