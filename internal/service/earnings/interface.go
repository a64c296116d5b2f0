package earnings

import (
	"context"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
)

type (
	// DailyLimitRepo stores one state per driver and day with optimistic versions.
	DailyLimitRepo interface {
		// Get returns types.ErrNotFound when the driver has no trips that day.
		Get(ctx context.Context, driverID uuid.UUID, day time.Time) (models.DailyLimitState, error)
		GetMany(ctx context.Context, driverIDs []uuid.UUID, day time.Time) (map[uuid.UUID]models.DailyLimitState, error)
		// Save inserts when expectedVersion is 0, otherwise compares versions.
		// A lost race is types.ErrConflict.
		Save(ctx context.Context, st models.DailyLimitState, expectedVersion int64) error
		// ListRange returns the states with from <= date < to ordered by date.
		ListRange(ctx context.Context, driverID uuid.UUID, from, to time.Time) ([]models.DailyLimitState, error)
		// DriversWithEarnings lists drivers having any state with from <= date < to.
		DriversWithEarnings(ctx context.Context, from, to time.Time) ([]models.DriverMonth, error)
	}

	// ConfigRepo returns a scoped config, nil without error when none is stored.
	ConfigRepo interface {
		Find(ctx context.Context, scope types.ConfigScope, scopeID uuid.UUID) (*models.EarningsConfig, error)
	}

	SettlementRepo interface {
		// Get returns types.ErrNotFound when the month is not settled.
		Get(ctx context.Context, driverID uuid.UUID, month string) (models.MonthlySettlement, error)
		// Create stores s unless the (driver, month) pair already exists.
		Create(ctx context.Context, s models.MonthlySettlement) (bool, error)
		// SetArchiveKey records the archive of a settlement stored without one.
		SetArchiveKey(ctx context.Context, driverID uuid.UUID, month, key string) error
	}

	// Archiver keeps an immutable copy of a settlement and returns its key.
	Archiver interface {
		Archive(ctx context.Context, s models.MonthlySettlement) (string, error)
	}

	EventLedger interface {
		IsProcessed(ctx context.Context, scope, sourceEventID string) (bool, error)
		MarkProcessed(ctx context.Context, scope, sourceEventID string) error
	}
)
