package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLedger records source events already applied by a consumer scope.
type EventLedger struct {
	db *pgxpool.Pool
}

func NewEventLedger(db *pgxpool.Pool) *EventLedger {
	return &EventLedger{db: db}
}

func (r *EventLedger) IsProcessed(ctx context.Context, scope, sourceEventID string) (processed bool, err error) {
	const op = "EventLedger.IsProcessed"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT EXISTS(
			SELECT 1 FROM processed_events
			WHERE scope = $1 AND source_event_id = $2
		)`

	if err := TxorDB(ctx, r.db).QueryRow(ctx, query, scope, sourceEventID).Scan(&processed); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return processed, nil
}

func (r *EventLedger) MarkProcessed(ctx context.Context, scope, sourceEventID string) (err error) {
	const op = "EventLedger.MarkProcessed"
	defer observe(op, time.Now(), &err)

	query := `
		INSERT INTO processed_events(scope, source_event_id)
		VALUES($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := TxorDB(ctx, r.db).Exec(ctx, query, scope, sourceEventID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
