package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DriverRegistry reads drivers joined with attendance and their current
// position, and flips the registry status on block.
type DriverRegistry struct {
	db *pgxpool.Pool
}

func NewDriverRegistry(db *pgxpool.Pool) *DriverRegistry {
	return &DriverRegistry{
		db: db,
	}
}

// ListCandidates returns the active, non-banned drivers of a franchise, or of
// every franchise when franchiseID is nil, with the attendance of day.
func (r *DriverRegistry) ListCandidates(ctx context.Context, franchiseID *uuid.UUID, day time.Time) (out []models.DriverRecord, err error) {
	const op = "DriverRegistry.ListCandidates"
	defer observe(op, time.Now(), &err)

	query := `
		WITH cur AS (
			SELECT entity_id, latitude, longitude
			FROM coordinates
			WHERE entity_type = 'driver' AND is_current = TRUE
		)
		SELECT
			d.id,
			d.franchise_id,
			d.status,
			d.banned,
			d.vehicle_class,
			d.active_trips,
			COALESCE(a.checked_in, FALSE),
			a.checked_in_at,
			COALESCE(a.status, ''),
			cur.latitude,
			cur.longitude
		FROM drivers d
		LEFT JOIN driver_attendance a ON a.driver_id = d.id AND a.date = $2
		LEFT JOIN cur ON cur.entity_id = d.id
		WHERE ($1::uuid IS NULL OR d.franchise_id = $1)
			AND d.status = 'ACTIVE' AND NOT d.banned
		ORDER BY d.id`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, franchiseID, day)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionDatabaseTransactionFailed)
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     models.DriverRecord
			latNull sql.NullFloat64
			lonNull sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.DriverID,
			&rec.FranchiseID,
			&rec.Status,
			&rec.Banned,
			&rec.VehicleClass,
			&rec.ActiveTrips,
			&rec.CheckedIn,
			&rec.CheckedInAt,
			&rec.AttendanceStatus,
			&latNull,
			&lonNull,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if latNull.Valid && lonNull.Valid {
			rec.Location = &models.Location{Latitude: latNull.Float64, Longitude: lonNull.Float64}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// BlockDriver sets the registry status to BLOCKED. Blocking an already
// blocked driver succeeds.
func (r *DriverRegistry) BlockDriver(ctx context.Context, driverID uuid.UUID, reason string) (err error) {
	const op = "DriverRegistry.BlockDriver"
	defer observe(op, time.Now(), &err)

	query := `
		UPDATE drivers
		SET status = $2, blocked_reason = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := TxorDB(ctx, r.db).Exec(ctx, query, driverID, types.DriverBlocked, reason)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionBlockSyncFailed)
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if tag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}
	return nil
}
