package performance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/adapter/memory"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/Temutjin2k/driver-engine/pkg/trm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(
		MustDefaultScorer(),
		memory.NewPerformanceStore(),
		memory.NewLedger(),
		trm.Noop{},
		RetryPolicy{MaxAttempts: 3},
		logger.Discard(),
	)
}

func trip(driverID uuid.UUID, source string, outcome types.TripOutcome, rating *float64) models.TripOutcomeEvent {
	return models.TripOutcomeEvent{
		SourceEventID: source,
		DriverID:      driverID,
		Outcome:       outcome,
		Rating:        rating,
		OccurredAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestService_RecordTripOutcome(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	driverID := uuid.New()

	_, err := svc.RecordTripOutcome(ctx, trip(driverID, "t1", types.TripCompleted, ptr(5.0)))
	require.NoError(t, err)
	_, err = svc.RecordTripOutcome(ctx, trip(driverID, "t2", types.TripCompleted, ptr(4.0)))
	require.NoError(t, err)
	m, err := svc.RecordTripOutcome(ctx, trip(driverID, "t3", types.TripRejected, nil))
	require.NoError(t, err)

	assert.Equal(t, 3, m.TotalTrips)
	assert.Equal(t, 2, m.CompletedTrips)
	assert.Equal(t, 1, m.RejectedTrips)
	assert.Equal(t, 2, m.RatingCount)
	require.NotNil(t, m.Rating)
	assert.InDelta(t, 4.5, *m.Rating, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.CompletionRate, 1e-9)
	assert.EqualValues(t, 3, m.Version)

	// counters rescored from scratch match the stored score
	score, category, err := MustDefaultScorer().Score(m.Stats())
	require.NoError(t, err)
	assert.Equal(t, score, m.Score)
	assert.Equal(t, category, m.Category)
}

func TestService_DuplicateSourceEventIsNoop(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	driverID := uuid.New()

	first, err := svc.RecordTripOutcome(ctx, trip(driverID, "dup", types.TripCompleted, nil))
	require.NoError(t, err)
	second, err := svc.RecordTripOutcome(ctx, trip(driverID, "dup", types.TripCompleted, nil))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.TotalTrips)
}

func TestService_RecordComplaint(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	driverID := uuid.New()

	_, err := svc.RecordTripOutcome(ctx, trip(driverID, "t1", types.TripCompleted, ptr(5.0)))
	require.NoError(t, err)

	before, err := svc.GetPerformance(ctx, driverID)
	require.NoError(t, err)

	after, err := svc.RecordComplaint(ctx, models.ComplaintEvent{SourceEventID: "c1", DriverID: driverID, OccurredAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, after.ComplaintCount)
	assert.Less(t, after.Score, before.Score)

	again, err := svc.RecordComplaint(ctx, models.ComplaintEvent{SourceEventID: "c1", DriverID: driverID, OccurredAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, again.ComplaintCount)
}

func TestService_GetPerformanceUnknownDriver(t *testing.T) {
	svc := newTestService(t)
	driverID := uuid.New()

	m, err := svc.GetPerformance(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, driverID, m.DriverID)
	assert.Equal(t, NeutralScore, m.Score)
	assert.Equal(t, types.CategoryYellow, m.Category)
	assert.Zero(t, m.TotalTrips)
}

func TestService_InvalidEvents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.RecordTripOutcome(ctx, trip(uuid.New(), "x", "LOST", nil))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = svc.RecordTripOutcome(ctx, trip(uuid.New(), "", types.TripCompleted, nil))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = svc.RecordTripOutcome(ctx, trip(uuid.New(), "y", types.TripCompleted, ptr(7.0)))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = svc.RecordComplaint(ctx, models.ComplaintEvent{DriverID: uuid.New()})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestService_ConcurrentOutcomes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	driverID := uuid.New()

	var wg sync.WaitGroup
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordTripOutcome(ctx, trip(driverID, uuid.NewString(), types.TripCompleted, nil))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := svc.GetPerformance(ctx, driverID)
	require.NoError(t, err)
	assert.Equal(t, 40, m.TotalTrips)
	assert.EqualValues(t, 40, m.Version)
}

func TestService_Categories(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	known, unknown := uuid.New(), uuid.New()

	_, err := svc.RecordTripOutcome(ctx, trip(known, "t1", types.TripCompleted, ptr(5.0)))
	require.NoError(t, err)

	cats, err := svc.Categories(ctx, []uuid.UUID{known, unknown})
	require.NoError(t, err)
	assert.Equal(t, types.CategoryGreen, cats[known])
	assert.Equal(t, types.CategoryYellow, cats[unknown])
}
