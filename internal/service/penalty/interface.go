package penalty

import (
	"context"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/google/uuid"
)

type (
	RuleRepo interface {
		// ActiveRules returns every active rule. Undecodable trigger configs
		// come back as models.InvalidTrigger.
		ActiveRules(ctx context.Context) ([]models.PenaltyRule, error)
		// GetRule returns types.ErrRuleNotFound for an unknown id.
		GetRule(ctx context.Context, id uuid.UUID) (models.PenaltyRule, error)
	}

	EventRepo interface {
		// InsertEvent returns false when (rule_id, source_event_id) already exists.
		InsertEvent(ctx context.Context, e models.PenaltyEvent) (bool, error)
		InsertNotifications(ctx context.Context, n []models.NotificationIntent) error
		ListEvents(ctx context.Context, driverID uuid.UUID) ([]models.PenaltyEvent, error)
	}

	StateRepo interface {
		// GetState returns types.ErrNotFound for a driver that was never penalised.
		GetState(ctx context.Context, driverID uuid.UUID) (models.DriverPenaltyState, error)
		// SaveState inserts when expectedVersion is 0, otherwise compares versions.
		SaveState(ctx context.Context, st models.DriverPenaltyState, expectedVersion int64) error
		ListUnsyncedBlocks(ctx context.Context) ([]models.DriverPenaltyState, error)
		// GetStates returns stored states of the given drivers.
		GetStates(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverPenaltyState, error)
	}

	OccurrenceRepo interface {
		// RecordOccurrence is idempotent on (driver, kind, key).
		RecordOccurrence(ctx context.Context, o models.Occurrence) error
		// CountOccurrences counts occurrences with from <= occurred_at <= to.
		CountOccurrences(ctx context.Context, driverID uuid.UUID, kind models.OccurrenceKind, from, to time.Time) (int, error)
	}

	// DriverBlocker flips the driver to BLOCKED in the driver registry.
	DriverBlocker interface {
		BlockDriver(ctx context.Context, driverID uuid.UUID, reason string) error
	}

	// Publisher delivers evaluation results to downstream collaborators.
	Publisher interface {
		Publish(ctx context.Context, res models.EvaluationResult) error
	}
)
