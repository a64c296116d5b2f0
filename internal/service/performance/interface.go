package performance

import (
	"context"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/google/uuid"
)

type (
	// MetricsRepo stores cumulative counters per driver with optimistic versions.
	MetricsRepo interface {
		// Get returns types.ErrNotFound for a driver without metrics.
		Get(ctx context.Context, driverID uuid.UUID) (models.PerformanceMetrics, error)
		GetMany(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.PerformanceMetrics, error)
		// Save inserts when expectedVersion is 0, otherwise updates only if the
		// stored version equals expectedVersion. A mismatch is types.ErrConflict.
		Save(ctx context.Context, m models.PerformanceMetrics, expectedVersion int64) error
	}

	// EventLedger remembers applied source events per consumer scope.
	EventLedger interface {
		IsProcessed(ctx context.Context, scope, sourceEventID string) (bool, error)
		MarkProcessed(ctx context.Context, scope, sourceEventID string) error
	}
)
