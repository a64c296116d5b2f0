package postgres

import (
	"context"
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

type PerformanceRepo struct {
	db *pgxpool.Pool
}

func NewPerformanceRepo(db *pgxpool.Pool) *PerformanceRepo {
	return &PerformanceRepo{
		db: db,
	}
}

const performanceColumns = `
	driver_id, total_trips, completed_trips, rejected_trips, cancelled_trips,
	complaint_count, rating_sum, rating_count, completion_rate, rejection_rate,
	score, category, version, updated_at`

func (r *PerformanceRepo) Get(ctx context.Context, driverID uuid.UUID) (m models.PerformanceMetrics, err error) {
	const op = "PerformanceRepo.Get"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + performanceColumns + ` FROM performance_metrics WHERE driver_id = $1`

	m, err = scanMetrics(TxorDB(ctx, r.db).QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PerformanceMetrics{}, types.ErrNotFound
		}
		ctx = wrap.WithAction(ctx, types.ActionDatabaseTransactionFailed)
		return models.PerformanceMetrics{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return m, nil
}

func (r *PerformanceRepo) GetMany(ctx context.Context, driverIDs []uuid.UUID) (out map[uuid.UUID]models.PerformanceMetrics, err error) {
	const op = "PerformanceRepo.GetMany"
	defer observe(op, time.Now(), &err)

	out = make(map[uuid.UUID]models.PerformanceMetrics, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + performanceColumns + ` FROM performance_metrics WHERE driver_id = ANY($1::uuid[])`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, idStrings(driverIDs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out[m.DriverID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Save inserts the first version or updates guarded by expectedVersion.
func (r *PerformanceRepo) Save(ctx context.Context, m models.PerformanceMetrics, expectedVersion int64) (err error) {
	const op = "PerformanceRepo.Save"
	defer observe(op, time.Now(), &err)

	args := []any{
		m.DriverID, m.TotalTrips, m.CompletedTrips, m.RejectedTrips, m.CancelledTrips,
		m.ComplaintCount, m.RatingSum, m.RatingCount, m.CompletionRate, m.RejectionRate,
		m.Score, m.Category, m.Version, m.UpdatedAt,
	}

	if expectedVersion == 0 {
		query := `
			INSERT INTO performance_metrics(` + performanceColumns + `)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

		if _, err := TxorDB(ctx, r.db).Exec(ctx, query, args...); err != nil {
			if postgres.IsUniqueViolation(err) {
				return types.ErrConflict
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	query := `
		UPDATE performance_metrics SET
			total_trips = $2, completed_trips = $3, rejected_trips = $4, cancelled_trips = $5,
			complaint_count = $6, rating_sum = $7, rating_count = $8, completion_rate = $9,
			rejection_rate = $10, score = $11, category = $12, version = $13, updated_at = $14
		WHERE driver_id = $1 AND version = $15`

	tag, err := TxorDB(ctx, r.db).Exec(ctx, query, append(args, expectedVersion)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrConflict
	}
	return nil
}

func scanMetrics(row pgx.Row) (models.PerformanceMetrics, error) {
	var m models.PerformanceMetrics
	if err := row.Scan(
		&m.DriverID,
		&m.TotalTrips,
		&m.CompletedTrips,
		&m.RejectedTrips,
		&m.CancelledTrips,
		&m.ComplaintCount,
		&m.RatingSum,
		&m.RatingCount,
		&m.CompletionRate,
		&m.RejectionRate,
		&m.Score,
		&m.Category,
		&m.Version,
		&m.UpdatedAt,
	); err != nil {
		return models.PerformanceMetrics{}, err
	}
	m.Rating = m.Stats().Rating
	return m, nil
}
