package dispatch

import (
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func km(v float64) *float64 { return &v }

func driver(id string, opts ...func(*models.DriverSnapshot)) models.DriverSnapshot {
	checkedIn := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s := models.DriverSnapshot{
		DriverRecord: models.DriverRecord{
			DriverID:         uuid.MustParse(id),
			Status:           types.DriverActive,
			VehicleClass:     types.EconomyClass,
			CheckedIn:        true,
			CheckedInAt:      &checkedIn,
			AttendanceStatus: types.AttendancePresent,
		},
		PenaltyState:        types.StateNormal,
		Category:            types.CategoryGreen,
		RemainingDailyLimit: decimal.NewFromInt(500),
		DistanceKm:          km(2),
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

const (
	idA = "00000000-0000-0000-0000-0000000000a1"
	idB = "00000000-0000-0000-0000-0000000000b2"
	idC = "00000000-0000-0000-0000-0000000000c3"
	idD = "00000000-0000-0000-0000-0000000000d4"
)

var economyTrip = models.TripRequest{TripID: uuid.New(), VehicleClass: types.EconomyClass}

func ids(cs []models.DispatchCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.DriverID.String()
	}
	return out
}

func TestRanker_HardExclusions(t *testing.T) {
	r := MustDefaultRanker()

	tests := []struct {
		name   string
		mutate func(*models.DriverSnapshot)
		reason string
	}{
		{"inactive", func(s *models.DriverSnapshot) { s.Status = types.DriverInactive }, ExcludedInactive},
		{"registry blocked", func(s *models.DriverSnapshot) { s.Status = types.DriverBlocked }, ExcludedBlocked},
		{"penalty blocked", func(s *models.DriverSnapshot) { s.PenaltyState = types.StateBlocked }, ExcludedBlocked},
		{"banned", func(s *models.DriverSnapshot) { s.Banned = true }, ExcludedBanned},
		{"vehicle mismatch", func(s *models.DriverSnapshot) { s.VehicleClass = types.PremiumClass }, ExcludedVehicle},
		{"not checked in", func(s *models.DriverSnapshot) { s.CheckedIn = false }, ExcludedNotCheckedIn},
		{"absent", func(s *models.DriverSnapshot) { s.AttendanceStatus = types.AttendanceAbsent }, ExcludedAttendance},
		{"on leave", func(s *models.DriverSnapshot) { s.AttendanceStatus = types.AttendanceOnLeave }, ExcludedAttendance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			excluded := driver(idA, tt.mutate)
			assert.Equal(t, tt.reason, r.Exclusion(economyTrip, excluded))

			got := r.Rank(economyTrip, []models.DriverSnapshot{excluded, driver(idB)})
			assert.Equal(t, []string{idB}, ids(got))
		})
	}
}

func TestRanker_WarnedDriverStaysEligible(t *testing.T) {
	r := MustDefaultRanker()
	got := r.Rank(economyTrip, []models.DriverSnapshot{driver(idA, func(s *models.DriverSnapshot) { s.PenaltyState = types.StateWarned })})
	assert.Len(t, got, 1)
}

func TestRanker_SmallerDistanceRanksHigher(t *testing.T) {
	r := MustDefaultRanker()

	got := r.Rank(economyTrip, []models.DriverSnapshot{
		driver(idA, func(s *models.DriverSnapshot) { s.DistanceKm = km(5) }),
		driver(idB, func(s *models.DriverSnapshot) { s.DistanceKm = km(1) }),
		driver(idC, func(s *models.DriverSnapshot) { s.DistanceKm = nil }),
		driver(idD, func(s *models.DriverSnapshot) { s.DistanceKm = km(3) }),
	})

	assert.Equal(t, []string{idB, idD, idA, idC}, ids(got))
	assert.Greater(t, got[0].CompositeScore, got[1].CompositeScore)
}

func TestRanker_PerformanceCategoryOrdering(t *testing.T) {
	r := MustDefaultRanker()

	got := r.Rank(economyTrip, []models.DriverSnapshot{
		driver(idA, func(s *models.DriverSnapshot) { s.Category = types.CategoryRed }),
		driver(idB, func(s *models.DriverSnapshot) { s.Category = types.CategoryYellow }),
		driver(idC, func(s *models.DriverSnapshot) { s.Category = types.CategoryGreen }),
	})
	assert.Equal(t, []string{idC, idB, idA}, ids(got))
}

func TestRanker_ExhaustedBand(t *testing.T) {
	exhausted := func(s *models.DriverSnapshot) {
		s.RemainingDailyLimit = decimal.Zero
		s.DistanceKm = km(0.1)
		s.Category = types.CategoryGreen
	}
	weak := func(s *models.DriverSnapshot) {
		s.DistanceKm = nil
		s.Category = types.CategoryRed
	}
	snapshots := []models.DriverSnapshot{driver(idA, exhausted), driver(idB, weak)}

	got := MustDefaultRanker().Rank(economyTrip, snapshots)
	require.Len(t, got, 2)
	assert.Equal(t, []string{idB, idA}, ids(got))
	assert.True(t, got[1].LimitExhausted)

	strict, err := NewRanker(DefaultWeights, DefaultMultipliers, true)
	require.NoError(t, err)
	got = strict.Rank(economyTrip, snapshots)
	assert.Equal(t, []string{idB}, ids(got))
}

func TestRanker_TieBreaks(t *testing.T) {
	r := MustDefaultRanker()
	early := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

	got := r.Rank(economyTrip, []models.DriverSnapshot{
		driver(idD),
		driver(idC),
		driver(idB, func(s *models.DriverSnapshot) { s.CheckedInAt = &early }),
		driver(idA, func(s *models.DriverSnapshot) { s.ActiveTrips = 1 }),
	})

	// equal composite: earlier check-in, then id order, then more active trips last
	assert.Equal(t, []string{idB, idC, idD, idA}, ids(got))
}

func TestRanker_Deterministic(t *testing.T) {
	r := MustDefaultRanker()
	snapshots := []models.DriverSnapshot{
		driver(idC), driver(idA), driver(idD, func(s *models.DriverSnapshot) { s.DistanceKm = nil }), driver(idB),
	}

	first := ids(r.Rank(economyTrip, snapshots))
	for i := range 20 {
		// reverse input order on every other run
		in := append([]models.DriverSnapshot(nil), snapshots...)
		if i%2 == 1 {
			for l, h := 0, len(in)-1; l < h; l, h = l+1, h-1 {
				in[l], in[h] = in[h], in[l]
			}
		}
		assert.Equal(t, first, ids(r.Rank(economyTrip, in)), "run %d", i)
	}
}

func TestRanker_Limit(t *testing.T) {
	trip := economyTrip
	trip.Limit = 2
	got := MustDefaultRanker().Rank(trip, []models.DriverSnapshot{driver(idA), driver(idB), driver(idC)})
	assert.Len(t, got, 2)
}

func TestNewRanker_Configuration(t *testing.T) {
	_, err := NewRanker(Weights{}, DefaultMultipliers, false)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewRanker(DefaultWeights, Multipliers{Green: 0.2, Yellow: 0.6, Red: 1}, false)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewRanker(Weights{Proximity: -1, Performance: 1}, DefaultMultipliers, false)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestHaversineDistance(t *testing.T) {
	almaty := models.Location{Latitude: 43.238949, Longitude: 76.889709}
	astana := models.Location{Latitude: 51.169392, Longitude: 71.449074}

	assert.InDelta(t, 970, HaversineDistance(almaty, astana), 15)
	assert.Zero(t, HaversineDistance(almaty, almaty))
}
