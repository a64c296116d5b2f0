package dispatch

import (
	"context"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	// DriverRegistry reads the driver registry joined with attendance and
	// the latest coordinates.
	DriverRegistry interface {
		// ListCandidates returns drivers of the franchise, all drivers when
		// franchiseID is nil, with their attendance of day.
		ListCandidates(ctx context.Context, franchiseID *uuid.UUID, day time.Time) ([]models.DriverRecord, error)
	}

	// DistanceLookup returns the distance in km between two points.
	DistanceLookup interface {
		Distance(ctx context.Context, from, to models.Location) (float64, error)
	}

	PenaltyStates interface {
		States(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]types.PenaltyState, error)
	}

	PerformanceCategories interface {
		Categories(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]types.Category, error)
	}

	// DailyLimits maps driver to franchise and returns today's remaining limit.
	DailyLimits interface {
		RemainingLimits(ctx context.Context, drivers map[uuid.UUID]uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	}
)
