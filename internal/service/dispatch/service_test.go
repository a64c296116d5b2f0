package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/adapter/memory"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePenalties map[uuid.UUID]types.PenaltyState

func (f fakePenalties) States(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.PenaltyState, error) {
	out := map[uuid.UUID]types.PenaltyState{}
	for _, id := range ids {
		out[id] = types.StateNormal
		if st, ok := f[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

type fakeCategories map[uuid.UUID]types.Category

func (f fakeCategories) Categories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.Category, error) {
	out := map[uuid.UUID]types.Category{}
	for _, id := range ids {
		out[id] = types.CategoryYellow
		if c, ok := f[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeLimits map[uuid.UUID]decimal.Decimal

func (f fakeLimits) RemainingLimits(ctx context.Context, drivers map[uuid.UUID]uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := map[uuid.UUID]decimal.Decimal{}
	for id := range drivers {
		out[id] = decimal.NewFromInt(1000)
		if l, ok := f[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

// slowDistance fails for one driver location and hangs for another.
type slowDistance struct {
	fail models.Location
	hang models.Location
}

func (d slowDistance) Distance(ctx context.Context, from, to models.Location) (float64, error) {
	switch from {
	case d.fail:
		return 0, errors.New("routing backend unavailable")
	case d.hang:
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return HaversineDistance(from, to), nil
}

var (
	now    = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	pickup = models.Location{Latitude: 43.2389, Longitude: 76.8897}
)

func near(offset float64) *models.Location {
	return &models.Location{Latitude: pickup.Latitude + offset, Longitude: pickup.Longitude}
}

func newRegistry(records ...models.DriverRecord) *memory.Registry {
	reg := memory.NewRegistry()
	checkIn := now.Add(-4 * time.Hour)
	for _, rec := range records {
		reg.PutDriver(rec)
		reg.SetAttendance(rec.DriverID, models.Day(now, time.UTC), types.AttendancePresent, &checkIn)
	}
	return reg
}

func record(id string, loc *models.Location) models.DriverRecord {
	return models.DriverRecord{
		DriverID:     uuid.MustParse(id),
		Status:       types.DriverActive,
		VehicleClass: types.EconomyClass,
		Location:     loc,
	}
}

func newTestService(reg DriverRegistry, dist DistanceLookup, pen fakePenalties, cats fakeCategories, lim fakeLimits) *Service {
	svc := NewService(MustDefaultRanker(), reg, dist, pen, cats, lim, Options{
		DistanceTimeout:   50 * time.Millisecond,
		LookupConcurrency: 2,
	}, logger.Discard())
	svc.now = func() time.Time { return now }
	return svc
}

func TestService_RankCandidates(t *testing.T) {
	reg := newRegistry(
		record(idA, near(0.05)),
		record(idB, near(0.01)),
		record(idC, near(0.001)),
		record(idD, nil),
	)
	svc := newTestService(reg, Haversine{},
		fakePenalties{uuid.MustParse(idC): types.StateBlocked},
		fakeCategories{},
		fakeLimits{},
	)

	got, err := svc.RankCandidates(context.Background(), models.TripRequest{TripID: uuid.New(), VehicleClass: types.EconomyClass, Pickup: pickup})
	require.NoError(t, err)

	assert.Equal(t, []string{idB, idA, idD}, ids(got))
	require.NotNil(t, got[0].DistanceKm)
	assert.InDelta(t, 1.11, *got[0].DistanceKm, 0.05)
	assert.Nil(t, got[2].DistanceKm)
	assert.True(t, got[0].RemainingDailyLimit.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, types.CategoryYellow, got[0].PerformanceCategory)
}

func TestService_RankCandidatesDegradesDistanceFailures(t *testing.T) {
	failing, hanging := near(0.001), near(0.002)
	reg := newRegistry(
		record(idA, failing),
		record(idB, hanging),
		record(idC, near(0.05)),
	)
	svc := newTestService(reg, slowDistance{fail: *failing, hang: *hanging}, fakePenalties{}, fakeCategories{}, fakeLimits{})

	start := time.Now()
	got, err := svc.RankCandidates(context.Background(), models.TripRequest{TripID: uuid.New(), VehicleClass: types.EconomyClass, Pickup: pickup})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, got, 3)
	// the only driver with a distance ranks first, the rest keep id order
	assert.Equal(t, []string{idC, idA, idB}, ids(got))
	assert.Nil(t, got[1].DistanceKm)
	assert.Nil(t, got[2].DistanceKm)
}

func TestService_RankCandidatesExcludesNotCheckedIn(t *testing.T) {
	reg := newRegistry(record(idA, near(0.01)))
	absent := record(idB, near(0.001))
	reg.PutDriver(absent)

	svc := newTestService(reg, Haversine{}, fakePenalties{}, fakeCategories{}, fakeLimits{})
	got, err := svc.RankCandidates(context.Background(), models.TripRequest{TripID: uuid.New(), Pickup: pickup})
	require.NoError(t, err)
	assert.Equal(t, []string{idA}, ids(got))
}

func TestService_RankCandidatesInvalidTrip(t *testing.T) {
	svc := newTestService(newRegistry(), Haversine{}, fakePenalties{}, fakeCategories{}, fakeLimits{})

	_, err := svc.RankCandidates(context.Background(), models.TripRequest{VehicleClass: "BUS", Pickup: pickup})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = svc.RankCandidates(context.Background(), models.TripRequest{Pickup: models.Location{Latitude: 120}})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestService_RankCandidatesCapsEligibleDriversOnly(t *testing.T) {
	inactive := func(id string) models.DriverRecord {
		rec := record(id, near(0.001))
		rec.Status = types.DriverInactive
		return rec
	}
	const late = "ffffffff-0000-0000-0000-000000000001"

	reg := newRegistry(
		inactive("00000000-0000-0000-0000-000000000001"),
		inactive("00000000-0000-0000-0000-000000000002"),
		record(late, near(0.02)),
	)
	svc := newTestService(reg, Haversine{}, fakePenalties{}, fakeCategories{}, fakeLimits{})
	svc.opts.MaxCandidates = 2

	got, err := svc.RankCandidates(context.Background(), models.TripRequest{TripID: uuid.New(), Pickup: pickup})
	require.NoError(t, err)
	assert.Equal(t, []string{late}, ids(got))
}

func TestService_RankCandidatesKeepsNearestWhenCapped(t *testing.T) {
	reg := newRegistry(
		record(idA, near(0.09)),
		record(idB, nil),
		record(idC, near(0.001)),
		record(idD, near(0.03)),
	)
	svc := newTestService(reg, Haversine{}, fakePenalties{}, fakeCategories{}, fakeLimits{})
	svc.opts.MaxCandidates = 2

	got, err := svc.RankCandidates(context.Background(), models.TripRequest{TripID: uuid.New(), Pickup: pickup})
	require.NoError(t, err)
	assert.Equal(t, []string{idC, idD}, ids(got))
}
