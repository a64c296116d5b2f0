package earnings

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
	"github.com/shopspring/decimal"
)

const (
	ledgerScope = "earnings.trip"
	monthLayout = "2006-01"
)

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

type dayKey struct {
	driverID uuid.UUID
	day      time.Time
}

// Service owns DailyLimitState and MonthlySettlement.
type Service struct {
	global      models.EarningsConfig
	configs     ConfigRepo
	daily       DailyLimitRepo
	settlements SettlementRepo
	archiver    Archiver
	ledger      EventLedger
	trm         trm.TxManager
	locks       *keymutex.KeyMutex[dayKey]
	retry       RetryPolicy
	now         func() time.Time
	l           logger.Logger
}

type Deps struct {
	Global      models.EarningsConfig
	Configs     ConfigRepo
	Daily       DailyLimitRepo
	Settlements SettlementRepo
	// Archiver is optional.
	Archiver  Archiver
	Ledger    EventLedger
	TxManager trm.TxManager
	Retry     RetryPolicy
}

func NewService(d Deps, l logger.Logger) *Service {
	return &Service{
		global:      d.Global,
		configs:     d.Configs,
		daily:       d.Daily,
		settlements: d.Settlements,
		archiver:    d.Archiver,
		ledger:      d.Ledger,
		trm:         d.TxManager,
		locks:       keymutex.New[dayKey](),
		retry:       d.Retry,
		now:         time.Now,
		l:           l,
	}
}

// EffectiveConfig resolves the config applying to a driver.
func (s *Service) EffectiveConfig(ctx context.Context, driverID, franchiseID uuid.UUID) (models.EarningsConfig, error) {
	const op = "EarningsService.EffectiveConfig"

	var franchise, driver *models.EarningsConfig
	var err error
	if franchiseID != uuid.Nil {
		if franchise, err = s.configs.Find(ctx, types.ScopeFranchise, franchiseID); err != nil {
			return models.EarningsConfig{}, fmt.Errorf("%s: franchise config: %w", op, err)
		}
	}
	if driver, err = s.configs.Find(ctx, types.ScopeDriver, driverID); err != nil {
		return models.EarningsConfig{}, fmt.Errorf("%s: driver config: %w", op, err)
	}

	return ResolveConfig(s.global, franchise, driver), nil
}

// ApplyTripEarning adds one trip's amount to the driver's state of the
// franchise-local day of the trip. A repeated source event is a no-op.
func (s *Service) ApplyTripEarning(ctx context.Context, te models.TripEarning) (st models.DailyLimitState, err error) {
	const op = "EarningsService.ApplyTripEarning"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionTripEarning), te.DriverID.String())
	defer func() { metrics.RecordTripEarning(err) }()

	switch {
	case te.DriverID == uuid.Nil:
		return st, wrap.Error(ctx, fmt.Errorf("%s: %w: driver_id is required", op, types.ErrInvalidInput))
	case te.SourceEventID == "":
		return st, wrap.Error(ctx, fmt.Errorf("%s: %w: source_event_id is required", op, types.ErrInvalidInput))
	case !te.Amount.IsPositive():
		return st, wrap.Error(ctx, fmt.Errorf("%s: %w: amount must be positive, got %s", op, types.ErrInvalidInput, te.Amount))
	case te.OccurredAt.IsZero():
		return st, wrap.Error(ctx, fmt.Errorf("%s: %w: occurred_at is required", op, types.ErrInvalidInput))
	}

	cfg, err := s.EffectiveConfig(ctx, te.DriverID, te.FranchiseID)
	if err != nil {
		return st, wrap.Error(ctx, err)
	}
	day := models.Day(te.OccurredAt, cfg.Location())

	unlock := s.locks.Lock(dayKey{driverID: te.DriverID, day: day})
	defer unlock()

	err = retry.Do(ctx, s.retry.MaxAttempts, s.retry.Backoff, isConflict, func(ctx context.Context) error {
		return s.trm.Do(ctx, func(ctx context.Context) error {
			current, err := s.daily.Get(ctx, te.DriverID, day)
			switch {
			case errors.Is(err, types.ErrNotFound):
				current = models.DailyLimitState{
					DriverID:    te.DriverID,
					FranchiseID: te.FranchiseID,
					Date:        day,
					Target:      cfg.DailyTarget,
					EarnedSoFar: decimal.Zero,
				}
			case err != nil:
				return err
			}

			processed, err := s.ledger.IsProcessed(ctx, ledgerScope, te.SourceEventID)
			if err != nil {
				return err
			}
			if processed {
				s.l.Debug(ctx, "trip earning already applied", "source_event_id", te.SourceEventID)
				st = current
				return nil
			}

			next := current
			next.EarnedSoFar = current.EarnedSoFar.Add(te.Amount)
			next.TripCount++
			next.Version = current.Version + 1
			next.UpdatedAt = s.now().UTC()

			if err := s.daily.Save(ctx, next, current.Version); err != nil {
				if errors.Is(err, types.ErrConflict) {
					metrics.RecordConflict("daily_limit_state")
				}
				return err
			}
			if err := s.ledger.MarkProcessed(ctx, ledgerScope, te.SourceEventID); err != nil {
				return err
			}
			st = next
			return nil
		})
	})
	if err != nil {
		return models.DailyLimitState{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	s.l.Info(ctx, "trip earning applied",
		"date", day.Format(time.DateOnly),
		"amount", te.Amount.String(),
		"earned_so_far", st.EarnedSoFar.String(),
		"remaining", st.Remaining().String(),
	)
	return st, nil
}

// ComputeDailyIncentive returns the incentive of state under cfg. Disabled
// tiers are logged and the remaining tiers still apply.
func (s *Service) ComputeDailyIncentive(ctx context.Context, state models.DailyLimitState, cfg models.EarningsConfig) decimal.Decimal {
	incentive, disabled := DailyIncentive(state, cfg)
	s.logDisabled(ctx, cfg, disabled)
	return incentive
}

// ComputeMonthlySettlement returns the bonus and deduction percent for the earnings.
func (s *Service) ComputeMonthlySettlement(ctx context.Context, monthlyEarnings decimal.Decimal, cfg models.EarningsConfig) (decimal.Decimal, decimal.Decimal, error) {
	if monthlyEarnings.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: monthly earnings must not be negative", types.ErrInvalidInput)
	}
	bonus, cut, disabled := MonthlySettlement(monthlyEarnings, cfg)
	s.logDisabled(ctx, cfg, disabled)
	return bonus, cut, nil
}

// GetDailyState returns the day's state with its incentive. A day without
// trips has the full target remaining.
func (s *Service) GetDailyState(ctx context.Context, driverID, franchiseID uuid.UUID, day time.Time) (models.DailyEarnings, error) {
	const op = "EarningsService.GetDailyState"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "get_daily_state"), driverID.String())

	cfg, err := s.EffectiveConfig(ctx, driverID, franchiseID)
	if err != nil {
		return models.DailyEarnings{}, wrap.Error(ctx, err)
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	st, err := s.daily.Get(ctx, driverID, day)
	switch {
	case errors.Is(err, types.ErrNotFound):
		st = models.DailyLimitState{DriverID: driverID, FranchiseID: franchiseID, Date: day, Target: cfg.DailyTarget}
	case err != nil:
		return models.DailyEarnings{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	return models.DailyEarnings{
		State:     st,
		Remaining: st.Remaining(),
		Incentive: s.ComputeDailyIncentive(ctx, st, cfg),
		ConfigID:  cfg.ID,
	}, nil
}

// RemainingLimits returns today's remaining limit for each driver. Drivers
// without a record today get their full effective target.
func (s *Service) RemainingLimits(ctx context.Context, drivers map[uuid.UUID]uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	const op = "EarningsService.RemainingLimits"

	out := make(map[uuid.UUID]decimal.Decimal, len(drivers))
	byDay := make(map[time.Time][]uuid.UUID)
	cfgs := make(map[uuid.UUID]models.EarningsConfig, len(drivers))

	now := s.now()
	for driverID, franchiseID := range drivers {
		cfg, err := s.EffectiveConfig(ctx, driverID, franchiseID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		cfgs[driverID] = cfg
		day := models.Day(now, cfg.Location())
		byDay[day] = append(byDay[day], driverID)
	}

	for day, ids := range byDay {
		states, err := s.daily.GetMany(ctx, ids, day)
		if err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
		}
		for _, id := range ids {
			if st, ok := states[id]; ok {
				out[id] = st.Remaining()
				continue
			}
			out[id] = cfgs[id].DailyTarget
		}
	}
	return out, nil
}

// SettleMonth computes, persists and archives the settlement of one finished
// month. Settling again returns the stored settlement, archiving it first when
// an earlier run stored it without an archive.
func (s *Service) SettleMonth(ctx context.Context, driverID, franchiseID uuid.UUID, month string) (out models.MonthlySettlement, err error) {
	const op = "EarningsService.SettleMonth"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionMonthSettled), driverID.String())
	defer func() { metrics.RecordSettlement(err) }()

	from, err := time.Parse(monthLayout, month)
	if err != nil {
		return out, wrap.Error(ctx, fmt.Errorf("%s: %w: month must be YYYY-MM", op, types.ErrInvalidInput))
	}
	to := from.AddDate(0, 1, 0)

	existing, err := s.settlements.Get(ctx, driverID, month)
	if err == nil {
		return s.archiveStored(ctx, existing), nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return out, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	cfg, err := s.EffectiveConfig(ctx, driverID, franchiseID)
	if err != nil {
		return out, wrap.Error(ctx, err)
	}
	if to.After(models.Day(s.now(), cfg.Location())) {
		return out, wrap.Error(ctx, fmt.Errorf("%s: %w: %s", op, types.ErrSettlementNotReady, month))
	}

	days, err := s.daily.ListRange(ctx, driverID, from, to)
	if err != nil {
		return out, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	earnings, incentives := decimal.Zero, decimal.Zero
	for _, d := range days {
		earnings = earnings.Add(d.EarnedSoFar)
		incentives = incentives.Add(s.ComputeDailyIncentive(ctx, d, cfg))
	}

	bonus, cut, _ := s.ComputeMonthlySettlement(ctx, earnings, cfg)
	deduction := percentOf(earnings, cut).Round(2)

	out = models.MonthlySettlement{
		DriverID:         driverID,
		FranchiseID:      franchiseID,
		Month:            month,
		MonthlyEarnings:  earnings,
		IncentiveTotal:   incentives,
		Bonus:            bonus,
		DeductionPercent: cut,
		DeductionAmount:  deduction,
		NetPayout:        earnings.Add(incentives).Add(bonus).Sub(deduction),
		ConfigID:         cfg.ID,
		SettledAt:        s.now().UTC(),
	}

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, out)
		if err != nil {
			s.l.Warn(ctx, "settlement archive failed, persisting without archive", "month", month, "err", err.Error())
		} else {
			out.ArchiveKey = key
		}
	}

	created, err := s.settlements.Create(ctx, out)
	if err != nil {
		return models.MonthlySettlement{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if !created {
		if out, err = s.settlements.Get(ctx, driverID, month); err != nil {
			return models.MonthlySettlement{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
		}
		return out, nil
	}

	s.l.Info(ctx, "month settled", "month", month, "net_payout", out.NetPayout.String(), "archive_key", out.ArchiveKey)
	return out, nil
}

// archiveStored archives a stored settlement that has no archive yet. Failures
// are logged and leave the settlement for the next run.
func (s *Service) archiveStored(ctx context.Context, m models.MonthlySettlement) models.MonthlySettlement {
	if s.archiver == nil || m.ArchiveKey != "" {
		return m
	}

	key, err := s.archiver.Archive(ctx, m)
	if err != nil {
		s.l.Warn(ctx, "settlement archive failed", "month", m.Month, "err", err.Error())
		return m
	}
	if err := s.settlements.SetArchiveKey(ctx, m.DriverID, m.Month, key); err != nil {
		s.l.Warn(wrap.ErrorCtx(ctx, err), "failed to record settlement archive key", "month", m.Month, "key", key, "err", err.Error())
		return m
	}

	s.l.Info(ctx, "stored settlement archived", "month", m.Month, "archive_key", key)
	m.ArchiveKey = key
	return m
}

// SettleAll settles every driver with earnings in month. Failures of single
// drivers are logged and counted, the run continues.
func (s *Service) SettleAll(ctx context.Context, month string) (settled, failed int, err error) {
	const op = "EarningsService.SettleAll"
	ctx = wrap.WithAction(ctx, "settle_all")

	from, err := time.Parse(monthLayout, month)
	if err != nil {
		return 0, 0, wrap.Error(ctx, fmt.Errorf("%s: %w: month must be YYYY-MM", op, types.ErrInvalidInput))
	}

	drivers, err := s.daily.DriversWithEarnings(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return 0, 0, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	for _, d := range drivers {
		if ctx.Err() != nil {
			return settled, failed, ctx.Err()
		}
		if _, err := s.SettleMonth(ctx, d.DriverID, d.FranchiseID, month); err != nil {
			failed++
			s.l.Error(wrap.ErrorCtx(ctx, err), "failed to settle driver", err, "driver_id", d.DriverID.String())
			continue
		}
		settled++
	}

	s.l.Info(ctx, "settlement run finished", "month", month, "settled", settled, "failed", failed)
	return settled, failed, nil
}

// PreviousMonth returns the month before now in the global time zone.
func (s *Service) PreviousMonth() string {
	now := s.now().In(s.global.Location())
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}

func (s *Service) logDisabled(ctx context.Context, cfg models.EarningsConfig, disabled []error) {
	for _, err := range disabled {
		s.l.Error(wrap.WithAction(ctx, types.ActionTierDisabled), "earnings tier disabled", err,
			"config_id", cfg.ID.String(), "scope", cfg.Scope)
	}
}

func isConflict(err error) bool {
	return errors.Is(err, types.ErrConflict)
}
