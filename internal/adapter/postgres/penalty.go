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

type PenaltyRuleRepo struct {
	db *pgxpool.Pool
}

func NewPenaltyRuleRepo(db *pgxpool.Pool) *PenaltyRuleRepo {
	return &PenaltyRuleRepo{db: db}
}

const ruleColumns = `
	id, name, trigger_type, trigger_config, severity, category,
	is_automatic, block_driver, notify_admin, notify_manager, notify_driver`

// ActiveRules returns active rules ordered by name. Trigger configs that
// cannot be decoded come back as models.InvalidTrigger.
func (r *PenaltyRuleRepo) ActiveRules(ctx context.Context) (rules []models.PenaltyRule, err error) {
	const op = "PenaltyRuleRepo.ActiveRules"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM penalty_rules WHERE is_active ORDER BY name`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rules, nil
}

func (r *PenaltyRuleRepo) GetRule(ctx context.Context, id uuid.UUID) (rule models.PenaltyRule, err error) {
	const op = "PenaltyRuleRepo.GetRule"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM penalty_rules WHERE id = $1`

	rule, err = scanRule(TxorDB(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PenaltyRule{}, types.ErrRuleNotFound
		}
		return models.PenaltyRule{}, fmt.Errorf("%s: %w", op, err)
	}
	return rule, nil
}

func scanRule(row pgx.Row) (models.PenaltyRule, error) {
	var (
		rule models.PenaltyRule
		raw  []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.TriggerType,
		&raw,
		&rule.Severity,
		&rule.Category,
		&rule.IsAutomatic,
		&rule.BlockDriver,
		&rule.Notify.Admin,
		&rule.Notify.Manager,
		&rule.Notify.Driver,
	); err != nil {
		return models.PenaltyRule{}, err
	}
	rule.Trigger = models.DecodeTriggerOrInvalid(rule.TriggerType, raw)
	return rule, nil
}

type PenaltyEventRepo struct {
	db *pgxpool.Pool
}

func NewPenaltyEventRepo(db *pgxpool.Pool) *PenaltyEventRepo {
	return &PenaltyEventRepo{db: db}
}

// InsertEvent returns false when the (rule_id, source_event_id) pair exists.
func (r *PenaltyEventRepo) InsertEvent(ctx context.Context, e models.PenaltyEvent) (inserted bool, err error) {
	const op = "PenaltyEventRepo.InsertEvent"
	defer observe(op, time.Now(), &err)

	contextData, err := json.Marshal(e.Context)
	if err != nil {
		return false, fmt.Errorf("%s: context: %w", op, err)
	}

	var appliedBy types.ApplicationKind
	if e.Application != nil {
		appliedBy = e.Application.Kind()
	}

	query := `
		INSERT INTO penalty_events(id, driver_id, rule_id, source_event_id, occurred_at, context, applied_by, actor_id, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (rule_id, source_event_id) DO NOTHING`

	tag, err := TxorDB(ctx, r.db).Exec(ctx, query,
		e.ID,
		e.DriverID,
		e.RuleID,
		e.SourceEventID,
		e.OccurredAt,
		contextData,
		appliedBy,
		models.ActorOf(e.Application),
		e.CreatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return false, fmt.Errorf("%s: %w", op, types.ErrRuleNotFound)
		}
		ctx = wrap.WithAction(ctx, types.ActionDatabaseTransactionFailed)
		return false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PenaltyEventRepo) InsertNotifications(ctx context.Context, intents []models.NotificationIntent) (err error) {
	const op = "PenaltyEventRepo.InsertNotifications"
	defer observe(op, time.Now(), &err)

	if len(intents) == 0 {
		return nil
	}

	query := `
		INSERT INTO notification_intents(driver_id, penalty_event_id, rule_id, recipient, severity, message, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, n := range intents {
		batch.Queue(query, n.DriverID, n.PenaltyEventID, n.RuleID, n.Recipient, n.Severity, n.Message, n.CreatedAt)
	}

	var br pgx.BatchResults
	if tx, ok := TxorDB(ctx, r.db).(pgx.Tx); ok {
		br = tx.SendBatch(ctx, batch)
	} else {
		br = r.db.SendBatch(ctx, batch)
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListEvents returns the penalty events of a driver, newest first.
func (r *PenaltyEventRepo) ListEvents(ctx context.Context, driverID uuid.UUID) (events []models.PenaltyEvent, err error) {
	const op = "PenaltyEventRepo.ListEvents"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT id, driver_id, rule_id, source_event_id, occurred_at, context, applied_by, actor_id, created_at
		FROM penalty_events
		WHERE driver_id = $1
		ORDER BY created_at DESC`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	events = make([]models.PenaltyEvent, 0)
	for rows.Next() {
		var (
			e           models.PenaltyEvent
			contextData []byte
			appliedBy   types.ApplicationKind
			actorID     *uuid.UUID
		)
		if err := rows.Scan(
			&e.ID,
			&e.DriverID,
			&e.RuleID,
			&e.SourceEventID,
			&e.OccurredAt,
			&contextData,
			&appliedBy,
			&actorID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := decodeJSONB(contextData, &e.Context); err != nil {
			return nil, fmt.Errorf("%s: context of %s: %w", op, e.ID, err)
		}
		if appliedBy == types.AppliedManual && actorID != nil {
			e.Application = models.Manual{ActorID: *actorID}
		} else {
			e.Application = models.Automatic{RuleID: e.RuleID}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

type PenaltyStateRepo struct {
	db *pgxpool.Pool
}

func NewPenaltyStateRepo(db *pgxpool.Pool) *PenaltyStateRepo {
	return &PenaltyStateRepo{db: db}
}

const stateColumns = `driver_id, state, block_synced, blocked_at, blocked_by_rule, version, updated_at`

func (r *PenaltyStateRepo) GetState(ctx context.Context, driverID uuid.UUID) (st models.DriverPenaltyState, err error) {
	const op = "PenaltyStateRepo.GetState"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + stateColumns + ` FROM driver_penalty_states WHERE driver_id = $1`

	st, err = scanState(TxorDB(ctx, r.db).QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DriverPenaltyState{}, types.ErrNotFound
		}
		return models.DriverPenaltyState{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

func (r *PenaltyStateRepo) SaveState(ctx context.Context, st models.DriverPenaltyState, expectedVersion int64) (err error) {
	const op = "PenaltyStateRepo.SaveState"
	defer observe(op, time.Now(), &err)

	if expectedVersion == 0 {
		query := `
			INSERT INTO driver_penalty_states(` + stateColumns + `)
			VALUES($1, $2, $3, $4, $5, $6, $7)`

		if _, err := TxorDB(ctx, r.db).Exec(ctx, query,
			st.DriverID, st.State, st.BlockSynced, st.BlockedAt, st.BlockedByRule, st.Version, st.UpdatedAt,
		); err != nil {
			if postgres.IsUniqueViolation(err) {
				return types.ErrConflict
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	query := `
		UPDATE driver_penalty_states SET
			state = $2, block_synced = $3, blocked_at = $4, blocked_by_rule = $5, version = $6, updated_at = $7
		WHERE driver_id = $1 AND version = $8`

	tag, err := TxorDB(ctx, r.db).Exec(ctx, query,
		st.DriverID, st.State, st.BlockSynced, st.BlockedAt, st.BlockedByRule, st.Version, st.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrConflict
	}
	return nil
}

func (r *PenaltyStateRepo) ListUnsyncedBlocks(ctx context.Context) (states []models.DriverPenaltyState, err error) {
	const op = "PenaltyStateRepo.ListUnsyncedBlocks"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT ` + stateColumns + ` FROM driver_penalty_states
		WHERE state = 'BLOCKED' AND NOT block_synced
		ORDER BY blocked_at`

	states, err = r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return states, nil
}

func (r *PenaltyStateRepo) GetStates(ctx context.Context, driverIDs []uuid.UUID) (out map[uuid.UUID]models.DriverPenaltyState, err error) {
	const op = "PenaltyStateRepo.GetStates"
	defer observe(op, time.Now(), &err)

	out = make(map[uuid.UUID]models.DriverPenaltyState, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + stateColumns + ` FROM driver_penalty_states WHERE driver_id = ANY($1::uuid[])`

	states, err := r.list(ctx, query, idStrings(driverIDs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, st := range states {
		out[st.DriverID] = st
	}
	return out, nil
}

func (r *PenaltyStateRepo) list(ctx context.Context, query string, args ...any) ([]models.DriverPenaltyState, error) {
	rows, err := TxorDB(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []models.DriverPenaltyState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func scanState(row pgx.Row) (models.DriverPenaltyState, error) {
	var st models.DriverPenaltyState
	err := row.Scan(
		&st.DriverID,
		&st.State,
		&st.BlockSynced,
		&st.BlockedAt,
		&st.BlockedByRule,
		&st.Version,
		&st.UpdatedAt,
	)
	return st, err
}

type OccurrenceRepo struct {
	db *pgxpool.Pool
}

func NewOccurrenceRepo(db *pgxpool.Pool) *OccurrenceRepo {
	return &OccurrenceRepo{db: db}
}

func (r *OccurrenceRepo) RecordOccurrence(ctx context.Context, o models.Occurrence) (err error) {
	const op = "OccurrenceRepo.RecordOccurrence"
	defer observe(op, time.Now(), &err)

	query := `
		INSERT INTO penalty_occurrences(driver_id, kind, key, occurred_at)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (driver_id, kind, key) DO NOTHING`

	if _, err := TxorDB(ctx, r.db).Exec(ctx, query, o.DriverID, o.Kind, o.Key, o.OccurredAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *OccurrenceRepo) CountOccurrences(ctx context.Context, driverID uuid.UUID, kind models.OccurrenceKind, from, to time.Time) (n int, err error) {
	const op = "OccurrenceRepo.CountOccurrences"
	defer observe(op, time.Now(), &err)

	query := `
		SELECT COUNT(*) FROM penalty_occurrences
		WHERE driver_id = $1 AND kind = $2 AND occurred_at >= $3 AND occurred_at <= $4`

	if err := TxorDB(ctx, r.db).QueryRow(ctx, query, driverID, kind, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
