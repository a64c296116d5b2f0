package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
	"github.com/google/uuid"
)

// SettlementStore keeps month-end settlements. It works on database/sql so
// the settlement job can share a *sql.DB opened over the pgx pool.
type SettlementStore struct {
	db *sql.DB
}

func NewSettlementStore(db *sql.DB) *SettlementStore {
	return &SettlementStore{db: db}
}

func (s *SettlementStore) Get(ctx context.Context, driverID uuid.UUID, month string) (m models.MonthlySettlement, err error) {
	const op = "SettlementStore.Get"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT driver_id, franchise_id, month, monthly_earnings, incentive_total, bonus,
			deduction_percent, deduction_amount, net_payout, config_id, archive_key, settled_at
		FROM monthly_settlements
		WHERE driver_id = $1 AND month = $2`

	var archiveKey sql.NullString
	if err := s.db.QueryRowContext(ctx, query, driverID, month).Scan(
		&m.DriverID,
		&m.FranchiseID,
		&m.Month,
		&m.MonthlyEarnings,
		&m.IncentiveTotal,
		&m.Bonus,
		&m.DeductionPercent,
		&m.DeductionAmount,
		&m.NetPayout,
		&m.ConfigID,
		&archiveKey,
		&m.SettledAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.MonthlySettlement{}, types.ErrNotFound
		}
		return models.MonthlySettlement{}, fmt.Errorf("%s: %w", op, err)
	}
	m.ArchiveKey = archiveKey.String
	return m, nil
}

// Create stores m and reports false when the month is already settled.
func (s *SettlementStore) Create(ctx context.Context, m models.MonthlySettlement) (created bool, err error) {
	const op = "SettlementStore.Create"
	defer observe(op, time.Now(), &err)

	query := `
		INSERT INTO monthly_settlements(driver_id, franchise_id, month, monthly_earnings, incentive_total, bonus,
			deduction_percent, deduction_amount, net_payout, config_id, archive_key, settled_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (driver_id, month) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		m.DriverID,
		m.FranchiseID,
		m.Month,
		m.MonthlyEarnings,
		m.IncentiveTotal,
		m.Bonus,
		m.DeductionPercent,
		m.DeductionAmount,
		m.NetPayout,
		m.ConfigID,
		sql.NullString{String: m.ArchiveKey, Valid: m.ArchiveKey != ""},
		m.SettledAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// SetArchiveKey fills archive_key of a stored settlement. An existing key is
// kept.
func (s *SettlementStore) SetArchiveKey(ctx context.Context, driverID uuid.UUID, month, key string) (err error) {
	const op = "SettlementStore.SetArchiveKey"
	defer observe(op, time.Now(), &err)

	query := `
		UPDATE monthly_settlements
		SET archive_key = $3
		WHERE driver_id = $1 AND month = $2 AND archive_key IS NULL`

	res, err := s.db.ExecContext(ctx, query, driverID, month, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, driverID, month); err != nil {
			return err
		}
	}
	return nil
}
