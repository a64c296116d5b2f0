package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DailyLimitRepo struct {
	db *pgxpool.Pool
}

func NewDailyLimitRepo(db *pgxpool.Pool) *DailyLimitRepo {
	return &DailyLimitRepo{db: db}
}

const dailyColumns = `driver_id, franchise_id, date, target, earned_so_far, trip_count, version, updated_at`

func (r *DailyLimitRepo) Get(ctx context.Context, driverID uuid.UUID, day time.Time) (st models.DailyLimitState, err error) {
	const op = "DailyLimitRepo.Get"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + dailyColumns + ` FROM daily_limit_states WHERE driver_id = $1 AND date = $2`

	st, err = scanDaily(TxorDB(ctx, r.db).QueryRow(ctx, query, driverID, day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DailyLimitState{}, types.ErrNotFound
		}
		ctx = wrap.WithAction(ctx, types.ActionDatabaseTransactionFailed)
		return models.DailyLimitState{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return st, nil
}

func (r *DailyLimitRepo) GetMany(ctx context.Context, driverIDs []uuid.UUID, day time.Time) (out map[uuid.UUID]models.DailyLimitState, err error) {
	const op = "DailyLimitRepo.GetMany"
	defer observe(op, time.Now(), &err)

	out = make(map[uuid.UUID]models.DailyLimitState, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + dailyColumns + ` FROM daily_limit_states WHERE driver_id = ANY($1::uuid[]) AND date = $2`

	states, err := r.list(ctx, query, idStrings(driverIDs), day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, st := range states {
		out[st.DriverID] = st
	}
	return out, nil
}

func (r *DailyLimitRepo) Save(ctx context.Context, st models.DailyLimitState, expectedVersion int64) (err error) {
	const op = "DailyLimitRepo.Save"
	defer observe(op, time.Now(), &err)

	if expectedVersion == 0 {
		query := `
			INSERT INTO daily_limit_states(` + dailyColumns + `)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8)`

		if _, err := TxorDB(ctx, r.db).Exec(ctx, query,
			st.DriverID, st.FranchiseID, st.Date, st.Target, st.EarnedSoFar, st.TripCount, st.Version, st.UpdatedAt,
		); err != nil {
			if postgres.IsUniqueViolation(err) {
				return types.ErrConflict
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	query := `
		UPDATE daily_limit_states SET
			franchise_id = $3, target = $4, earned_so_far = $5, trip_count = $6, version = $7, updated_at = $8
		WHERE driver_id = $1 AND date = $2 AND version = $9`

	tag, err := TxorDB(ctx, r.db).Exec(ctx, query,
		st.DriverID, st.Date, st.FranchiseID, st.Target, st.EarnedSoFar, st.TripCount, st.Version, st.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrConflict
	}
	return nil
}

func (r *DailyLimitRepo) ListRange(ctx context.Context, driverID uuid.UUID, from, to time.Time) (states []models.DailyLimitState, err error) {
	const op = "DailyLimitRepo.ListRange"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT ` + dailyColumns + ` FROM daily_limit_states
		WHERE driver_id = $1 AND date >= $2 AND date < $3
		ORDER BY date`

	states, err = r.list(ctx, query, driverID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return states, nil
}

func (r *DailyLimitRepo) DriversWithEarnings(ctx context.Context, from, to time.Time) (out []models.DriverMonth, err error) {
	const op = "DailyLimitRepo.DriversWithEarnings"
	defer observe(op, time.Now(), &err)

	// The franchise of the latest day wins when a driver moved mid-month.
	query := `
		SELECT DISTINCT ON (driver_id) driver_id, franchise_id
		FROM daily_limit_states
		WHERE date >= $1 AND date < $2
		ORDER BY driver_id, date DESC`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var dm models.DriverMonth
		if err := rows.Scan(&dm.DriverID, &dm.FranchiseID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *DailyLimitRepo) list(ctx context.Context, query string, args ...any) ([]models.DailyLimitState, error) {
	rows, err := TxorDB(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []models.DailyLimitState
	for rows.Next() {
		st, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func scanDaily(row pgx.Row) (models.DailyLimitState, error) {
	var st models.DailyLimitState
	if err := row.Scan(
		&st.DriverID,
		&st.FranchiseID,
		&st.Date,
		&st.Target,
		&st.EarnedSoFar,
		&st.TripCount,
		&st.Version,
		&st.UpdatedAt,
	); err != nil {
		return models.DailyLimitState{}, err
	}
	st.Date = st.Date.UTC()
	return st, nil
}

// EarningsConfigRepo reads franchise and driver scoped configs. The global
// config comes from the service configuration.
type EarningsConfigRepo struct {
	db *pgxpool.Pool
}

func NewEarningsConfigRepo(db *pgxpool.Pool) *EarningsConfigRepo {
	return &EarningsConfigRepo{db: db}
}

func (r *EarningsConfigRepo) Find(ctx context.Context, scope types.ConfigScope, scopeID uuid.UUID) (cfg *models.EarningsConfig, err error) {
	const op = "EarningsConfigRepo.Find"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT id, scope, scope_id, timezone, daily_target,
			incentive_tier1, incentive_tier2, monthly_bonus_tiers, monthly_deduction_tiers, updated_at
		FROM earnings_configs
		WHERE scope = $1 AND scope_id = $2`

	var (
		c                   models.EarningsConfig
		tier1, tier2        []byte
		bonusRaw, deductRaw []byte
	)
	if err := TxorDB(ctx, r.db).QueryRow(ctx, query, scope, scopeID).Scan(
		&c.ID,
		&c.Scope,
		&c.ScopeID,
		&c.Timezone,
		&c.DailyTarget,
		&tier1,
		&tier2,
		&bonusRaw,
		&deductRaw,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := decodeJSONB(tier1, &c.Tier1); err != nil {
		return nil, fmt.Errorf("%s: %w: incentive_tier1 of %s: %v", op, types.ErrConfiguration, c.ID, err)
	}
	if err := decodeJSONB(tier2, &c.Tier2); err != nil {
		return nil, fmt.Errorf("%s: %w: incentive_tier2 of %s: %v", op, types.ErrConfiguration, c.ID, err)
	}
	if err := decodeJSONB(bonusRaw, &c.MonthlyBonusTiers); err != nil {
		return nil, fmt.Errorf("%s: %w: monthly_bonus_tiers of %s: %v", op, types.ErrConfiguration, c.ID, err)
	}
	if err := decodeJSONB(deductRaw, &c.MonthlyDeductionTiers); err != nil {
		return nil, fmt.Errorf("%s: %w: monthly_deduction_tiers of %s: %v", op, types.ErrConfiguration, c.ID, err)
	}
	return &c, nil
}

// decodeJSONB leaves v untouched for SQL NULL.
func decodeJSONB(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
