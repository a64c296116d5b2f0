package earnings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Temutjin2k/driver-engine/internal/adapter/memory"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/Temutjin2k/driver-engine/pkg/trm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	mu       sync.Mutex
	archived []models.MonthlySettlement
	err      error
}

func (f *fakeArchiver) Archive(ctx context.Context, s models.MonthlySettlement) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, s)
	return "settlements/" + s.Month + "/" + s.DriverID.String() + ".json", nil
}

type testEnv struct {
	svc         *Service
	configs     *memory.ConfigStore
	daily       *memory.DailyLimitStore
	settlements *memory.SettlementStore
	archiver    *fakeArchiver
}

func newTestEnv(t *testing.T, now time.Time) testEnv {
	t.Helper()
	env := testEnv{
		configs:     memory.NewConfigStore(),
		daily:       memory.NewDailyLimitStore(),
		settlements: memory.NewSettlementStore(),
		archiver:    &fakeArchiver{},
	}
	env.svc = NewService(Deps{
		Global:      baseConfig(),
		Configs:     env.configs,
		Daily:       env.daily,
		Settlements: env.settlements,
		Archiver:    env.archiver,
		Ledger:      memory.NewLedger(),
		TxManager:   trm.Noop{},
		Retry:       RetryPolicy{MaxAttempts: 5},
	}, logger.Discard())
	env.svc.now = func() time.Time { return now }
	return env
}

func earning(driverID uuid.UUID, source, amount string, at time.Time) models.TripEarning {
	return models.TripEarning{
		DriverID:      driverID,
		FranchiseID:   uuid.Nil,
		SourceEventID: source,
		OccurredAt:    at,
		Amount:        d(amount),
	}
}

func TestService_ApplyTripEarning(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)
	driverID := uuid.New()

	st, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "e1", "400", at))
	require.NoError(t, err)
	assert.True(t, d("400").Equal(st.EarnedSoFar))
	assert.True(t, d("600").Equal(st.Remaining()))
	assert.Equal(t, 1, st.TripCount)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), st.Date)

	st, err = env.svc.ApplyTripEarning(ctx, earning(driverID, "e2", "700", at.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, d("1100").Equal(st.EarnedSoFar))
	assert.True(t, st.Remaining().IsZero())

	// next day starts from zero
	st, err = env.svc.ApplyTripEarning(ctx, earning(driverID, "e3", "100", at.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.True(t, d("100").Equal(st.EarnedSoFar))
	assert.EqualValues(t, 1, st.Version)
}

func TestService_ApplyTripEarningDuplicate(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)
	driverID := uuid.New()

	_, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "same", "250", at))
	require.NoError(t, err)
	st, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "same", "250", at))
	require.NoError(t, err)

	assert.True(t, d("250").Equal(st.EarnedSoFar))
	assert.Equal(t, 1, st.TripCount)
}

func TestService_ApplyTripEarningInvalid(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)

	for _, amount := range []string{"0", "-10"} {
		_, err := env.svc.ApplyTripEarning(ctx, earning(uuid.New(), "x", amount, at))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}

	_, err := env.svc.ApplyTripEarning(ctx, earning(uuid.New(), "", "10", at))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestService_ConcurrentEarningsNeverLoseIncrements(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)
	driverID := uuid.New()

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ApplyTripEarning(ctx, earning(driverID, uuid.NewString(), "10", at))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := env.daily.Get(ctx, driverID, models.Day(at, time.UTC))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(n*10).Equal(st.EarnedSoFar), st.EarnedSoFar.String())
	assert.Equal(t, n, st.TripCount)
	assert.EqualValues(t, n, st.Version)
}

func TestService_DayFollowsConfigTimezone(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)
	driverID := uuid.New()

	cfg := baseConfig()
	cfg.Scope = types.ScopeDriver
	cfg.ScopeID = &driverID
	cfg.Timezone = "Asia/Almaty"
	cfg.DailyTarget = d("500")
	env.configs.Put(cfg)

	st, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "late", "100", at))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), st.Date)
	assert.True(t, d("500").Equal(st.Target))
}

func TestService_GetDailyState(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)
	driverID := uuid.New()

	empty, err := env.svc.GetDailyState(ctx, driverID, uuid.Nil, at)
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(empty.Remaining))
	assert.True(t, empty.Incentive.IsZero())

	_, err = env.svc.ApplyTripEarning(ctx, earning(driverID, "big", "1800", at))
	require.NoError(t, err)

	got, err := env.svc.GetDailyState(ctx, driverID, uuid.Nil, at)
	require.NoError(t, err)
	assert.True(t, d("460").Equal(got.Incentive), got.Incentive.String())
	assert.True(t, got.Remaining.IsZero())
}

func TestService_RemainingLimits(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, at)
	busy, idle := uuid.New(), uuid.New()

	_, err := env.svc.ApplyTripEarning(ctx, earning(busy, "e", "300", at))
	require.NoError(t, err)

	limits, err := env.svc.RemainingLimits(ctx, map[uuid.UUID]uuid.UUID{busy: uuid.Nil, idle: uuid.Nil})
	require.NoError(t, err)
	assert.True(t, d("700").Equal(limits[busy]))
	assert.True(t, d("1000").Equal(limits[idle]))
}

func TestService_ComputeMonthlySettlement(t *testing.T) {
	env := newTestEnv(t, time.Now())

	bonus, cut, err := env.svc.ComputeMonthlySettlement(context.Background(), d("1200"), baseConfig())
	require.NoError(t, err)
	assert.True(t, d("150").Equal(bonus))
	assert.True(t, d("1").Equal(cut))

	_, _, err = env.svc.ComputeMonthlySettlement(context.Background(), d("-1"), baseConfig())
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestService_SettleMonth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	driverID := uuid.New()

	_, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "a", "1800", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = env.svc.ApplyTripEarning(ctx, earning(driverID, "b", "500", time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	// April does not count towards March
	_, err = env.svc.ApplyTripEarning(ctx, earning(driverID, "c", "999", time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	s, err := env.svc.SettleMonth(ctx, driverID, uuid.Nil, "2026-03")
	require.NoError(t, err)
	assert.True(t, d("2300").Equal(s.MonthlyEarnings), s.MonthlyEarnings.String())
	assert.True(t, d("460").Equal(s.IncentiveTotal), s.IncentiveTotal.String())
	assert.True(t, d("400").Equal(s.Bonus))
	assert.True(t, d("1").Equal(s.DeductionPercent))
	assert.True(t, d("23").Equal(s.DeductionAmount), s.DeductionAmount.String())
	assert.True(t, d("3137").Equal(s.NetPayout), s.NetPayout.String())
	assert.NotEmpty(t, s.ArchiveKey)

	again, err := env.svc.SettleMonth(ctx, driverID, uuid.Nil, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, s.SettledAt, again.SettledAt)
	assert.Len(t, env.archiver.archived, 1)
}

func TestService_SettleMonthErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC))

	_, err := env.svc.SettleMonth(ctx, uuid.New(), uuid.Nil, "2026-03")
	assert.ErrorIs(t, err, types.ErrSettlementNotReady)

	_, err = env.svc.SettleMonth(ctx, uuid.New(), uuid.Nil, "March")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestService_SettleMonthArchiveFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	env.archiver.err = errors.New("bucket unavailable")
	driverID := uuid.New()

	_, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "a", "100", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	s, err := env.svc.SettleMonth(ctx, driverID, uuid.Nil, "2026-03")
	require.NoError(t, err)
	assert.Empty(t, s.ArchiveKey)

	stored, err := env.settlements.Get(ctx, driverID, "2026-03")
	require.NoError(t, err)
	assert.True(t, s.NetPayout.Equal(stored.NetPayout))
}

func TestService_SettleMonthArchivesStoredSettlementLater(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	env.archiver.err = errors.New("bucket unavailable")
	driverID := uuid.New()

	_, err := env.svc.ApplyTripEarning(ctx, earning(driverID, "a", "100", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	first, err := env.svc.SettleMonth(ctx, driverID, uuid.Nil, "2026-03")
	require.NoError(t, err)
	require.Empty(t, first.ArchiveKey)

	env.archiver.err = nil
	again, err := env.svc.SettleMonth(ctx, driverID, uuid.Nil, "2026-03")
	require.NoError(t, err)
	assert.NotEmpty(t, again.ArchiveKey)
	assert.Equal(t, first.SettledAt, again.SettledAt)

	stored, err := env.settlements.Get(ctx, driverID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, again.ArchiveKey, stored.ArchiveKey)

	// archived once, later calls keep the key
	_, err = env.svc.SettleMonth(ctx, driverID, uuid.Nil, "2026-03")
	require.NoError(t, err)
	assert.Len(t, env.archiver.archived, 1)
}

func TestService_SettleAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))

	for i := range 3 {
		_, err := env.svc.ApplyTripEarning(ctx, earning(uuid.New(), uuid.NewString(), "100", time.Date(2026, 3, 5+i, 10, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
	}

	settled, failed, err := env.svc.SettleAll(ctx, env.svc.PreviousMonth())
	require.NoError(t, err)
	assert.Equal(t, 3, settled)
	assert.Zero(t, failed)
}
