package penalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/keymutex"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/metrics"
	"github.com/Temutjin2k/driver-engine/pkg/retry"
	"github.com/Temutjin2k/driver-engine/pkg/trm"
	"github.com/google/uuid"
)

type Policy struct {
	// optimistic state updates
	MaxAttempts int
	Backoff     time.Duration
	// registry block calls
	BlockAttempts int
	BlockBackoff  time.Duration
}

// Evaluator is the per-driver penalty state machine NORMAL -> WARNED -> BLOCKED.
// All work for one driver is serialised.
type Evaluator struct {
	events      EventRepo
	states      StateRepo
	occurrences OccurrenceRepo
	blocker     DriverBlocker
	trm         trm.TxManager
	locks       *keymutex.KeyMutex[uuid.UUID]
	policy      Policy
	now         func() time.Time
	l           logger.Logger
}

func NewEvaluator(events EventRepo, states StateRepo, occurrences OccurrenceRepo, blocker DriverBlocker, tx trm.TxManager, policy Policy, l logger.Logger) *Evaluator {
	return &Evaluator{
		events:      events,
		states:      states,
		occurrences: occurrences,
		blocker:     blocker,
		trm:         tx,
		locks:       keymutex.New[uuid.UUID](),
		policy:      policy,
		now:         time.Now,
		l:           l,
	}
}

// firing is a rule that fired together with its penalty record.
type firing struct {
	rule  models.PenaltyRule
	event models.PenaltyEvent
}

// Evaluate applies every automatic rule matching ev. A repeated source event
// produces nothing new. A failed registry block is returned as
// types.ErrBlockFailed together with the result, the state stays unsynced.
func (e *Evaluator) Evaluate(ctx context.Context, ev models.DriverEvent, rules []models.PenaltyRule) (models.EvaluationResult, error) {
	const op = "PenaltyEvaluator.Evaluate"

	if ev == nil {
		return models.EvaluationResult{}, fmt.Errorf("%s: %w: event is nil", op, types.ErrInvalidInput)
	}
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionPenaltyEvaluated), ev.EventDriverID().String())

	if err := validateEvent(ev); err != nil {
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	active, disabled := e.filterRules(ctx, rules)
	driverID := ev.EventDriverID()

	res, err := e.commit(ctx, driverID, func(ctx context.Context) ([]firing, error) {
		if o, ok := occurrenceOf(ev); ok {
			if err := e.occurrences.RecordOccurrence(ctx, o); err != nil {
				return nil, err
			}
		}

		count := func(ctx context.Context, kind models.OccurrenceKind, from, to time.Time) (int, error) {
			return e.occurrences.CountOccurrences(ctx, driverID, kind, from, to)
		}

		var fired []firing
		for _, rule := range active {
			if !matches(rule.Trigger, ev) {
				continue
			}
			hit, details, err := crossed(ctx, rule.Trigger, ev, count)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
			}
			if !hit {
				continue
			}

			details["trigger"] = string(rule.TriggerType)
			details["event_kind"] = models.EventKind(ev)
			details["rule_name"] = rule.Name
			fired = append(fired, firing{
				rule: rule,
				event: models.PenaltyEvent{
					ID:            uuid.New(),
					DriverID:      driverID,
					RuleID:        rule.ID,
					SourceEventID: ev.EventSourceID(),
					OccurredAt:    ev.EventTime(),
					Context:       details,
					Application:   models.Automatic{RuleID: rule.ID},
				},
			})
		}
		return fired, nil
	})
	res.DisabledRules = disabled
	if err != nil && !errors.Is(err, types.ErrBlockFailed) {
		return res, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return res, err
}

// ApplyManual records a staff penalty for a non-automatic rule.
func (e *Evaluator) ApplyManual(ctx context.Context, mp models.ManualPenalty, rule models.PenaltyRule) (models.EvaluationResult, error) {
	const op = "PenaltyEvaluator.ApplyManual"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionPenaltyApplied), mp.DriverID.String())

	switch {
	case mp.ActorID == uuid.Nil:
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: actor id is required", op, types.ErrUnauthorized))
	case mp.DriverID == uuid.Nil:
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: driver_id is required", op, types.ErrInvalidInput))
	case mp.SourceEventID == "":
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: source_event_id is required", op, types.ErrInvalidInput))
	case rule.IsAutomatic:
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: rule %s is automatic", op, types.ErrInvalidInput, rule.Name))
	}
	if err := rule.Validate(); err != nil {
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	occurredAt := mp.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = e.now().UTC()
	}

	res, err := e.commit(ctx, mp.DriverID, func(ctx context.Context) ([]firing, error) {
		return []firing{{
			rule: rule,
			event: models.PenaltyEvent{
				ID:            uuid.New(),
				DriverID:      mp.DriverID,
				RuleID:        rule.ID,
				SourceEventID: mp.SourceEventID,
				OccurredAt:    occurredAt,
				Context:       mp.Context,
				Application:   models.Manual{ActorID: mp.ActorID},
			},
		}}, nil
	})
	if err != nil && !errors.Is(err, types.ErrBlockFailed) {
		return res, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return res, err
}

// SyncBlock retries the registry block of a BLOCKED but unsynced driver.
func (e *Evaluator) SyncBlock(ctx context.Context, driverID uuid.UUID) error {
	ctx = wrap.WithDriverID(ctx, driverID.String())

	unlock := e.locks.Lock(driverID)
	defer unlock()

	st, err := e.states.GetState(ctx, driverID)
	if err != nil {
		return err
	}
	_, err = e.syncBlock(ctx, st)
	return err
}

// commit runs prepare and persists its firings in one transaction under the
// driver lock, then syncs a pending block with the registry.
func (e *Evaluator) commit(ctx context.Context, driverID uuid.UUID, prepare func(ctx context.Context) ([]firing, error)) (models.EvaluationResult, error) {
	unlock := e.locks.Lock(driverID)
	defer unlock()

	var (
		res      models.EvaluationResult
		state    models.DriverPenaltyState
		triggers []types.TriggerType
	)
	err := retry.Do(ctx, e.policy.MaxAttempts, e.policy.Backoff, isConflict, func(ctx context.Context) error {
		res = models.EvaluationResult{DriverID: driverID}
		triggers = triggers[:0]

		return e.trm.Do(ctx, func(ctx context.Context) error {
			current, err := e.states.GetState(ctx, driverID)
			switch {
			case errors.Is(err, types.ErrNotFound):
				current = models.DriverPenaltyState{DriverID: driverID, State: types.StateNormal}
			case err != nil:
				return err
			}

			fired, err := prepare(ctx)
			if err != nil {
				return err
			}

			next := current
			now := e.now().UTC()
			var intents []models.NotificationIntent
			for _, f := range fired {
				f.event.CreatedAt = now
				inserted, err := e.events.InsertEvent(ctx, f.event)
				if err != nil {
					return err
				}
				if !inserted {
					e.l.Debug(ctx, "penalty already recorded", "rule_id", f.rule.ID.String(), "source_event_id", f.event.SourceEventID)
					continue
				}
				res.Events = append(res.Events, f.event)
				triggers = append(triggers, f.rule.TriggerType)

				blocking := f.rule.BlockDriver && next.State != types.StateBlocked
				next = transition(next, f.rule, now)
				if blocking {
					res.Blocked = true
				}
				intents = append(intents, intentsFor(f.rule, f.event, blocking, now)...)
			}

			if len(intents) > 0 {
				if err := e.events.InsertNotifications(ctx, intents); err != nil {
					return err
				}
			}
			if next != current {
				next.Version = current.Version + 1
				next.UpdatedAt = now
				if err := e.states.SaveState(ctx, next, current.Version); err != nil {
					if errors.Is(err, types.ErrConflict) {
						metrics.RecordConflict("driver_penalty_state")
					}
					return err
				}
			}

			res.Notifications = intents
			state = next
			return nil
		})
	})
	if err != nil {
		return models.EvaluationResult{DriverID: driverID}, err
	}

	for i, ev := range res.Events {
		metrics.RecordPenalty(string(triggers[i]), string(ev.Application.Kind()))
	}
	res.State = state.State

	if len(res.Events) > 0 {
		e.l.Info(ctx, "penalties recorded", "count", len(res.Events), "state", state.State, "blocked", res.Blocked)
	}

	if _, err := e.syncBlock(ctx, state); err != nil {
		return res, err
	}
	return res, nil
}

// syncBlock pushes a pending block to the registry with bounded retry and
// marks the state synced. Callers hold the driver lock.
func (e *Evaluator) syncBlock(ctx context.Context, st models.DriverPenaltyState) (models.DriverPenaltyState, error) {
	if !st.NeedsBlockSync() {
		return st, nil
	}
	ctx = wrap.WithAction(ctx, types.ActionDriverBlocked)

	reason := "automatic penalty"
	if st.BlockedByRule != nil {
		reason = "penalty rule " + st.BlockedByRule.String()
	}

	err := retry.Do(ctx, e.policy.BlockAttempts, e.policy.BlockBackoff, nil, func(ctx context.Context) error {
		return e.blocker.BlockDriver(ctx, st.DriverID, reason)
	})
	metrics.RecordBlock(err)
	if err != nil {
		e.l.Error(wrap.WithAction(ctx, types.ActionBlockSyncFailed), "failed to block driver in registry", err)
		return st, fmt.Errorf("%w: driver %s: %v", types.ErrBlockFailed, st.DriverID, err)
	}

	next := st
	next.BlockSynced = true
	next.Version = st.Version + 1
	next.UpdatedAt = e.now().UTC()
	if err := e.states.SaveState(ctx, next, st.Version); err != nil {
		// the registry is blocked, a later reconcile will mark the state again
		return st, fmt.Errorf("%w: driver %s blocked but state not updated: %v", types.ErrBlockFailed, st.DriverID, err)
	}

	e.l.Info(ctx, "driver blocked in registry")
	return next, nil
}

// filterRules drops invalid rules and reports them. Manual rules are skipped silently.
func (e *Evaluator) filterRules(ctx context.Context, rules []models.PenaltyRule) ([]models.PenaltyRule, []models.DisabledRule) {
	var (
		active   []models.PenaltyRule
		disabled []models.DisabledRule
	)
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			disabled = append(disabled, models.DisabledRule{RuleID: r.ID, Name: r.Name, Reason: err.Error()})
			e.l.Error(wrap.WithAction(ctx, types.ActionRuleDisabled), "penalty rule disabled", err, "rule_id", r.ID.String())
			continue
		}
		if !r.IsAutomatic {
			continue
		}
		active = append(active, r)
	}
	return active, disabled
}

// transition applies one fired rule. BLOCKED is terminal.
func transition(st models.DriverPenaltyState, rule models.PenaltyRule, now time.Time) models.DriverPenaltyState {
	switch {
	case st.State == types.StateBlocked:
		return st
	case rule.BlockDriver:
		ruleID := rule.ID
		st.State = types.StateBlocked
		st.BlockSynced = false
		st.BlockedAt = &now
		st.BlockedByRule = &ruleID
	case st.State == types.StateNormal || st.State == "":
		st.State = types.StateWarned
	}
	return st
}

func intentsFor(rule models.PenaltyRule, ev models.PenaltyEvent, blocked bool, now time.Time) []models.NotificationIntent {
	msg := fmt.Sprintf("penalty %q (%s) applied to driver %s", rule.Name, rule.Severity, ev.DriverID)
	if blocked {
		msg += ", driver blocked"
	}

	recipients := rule.Notify.Recipients()
	out := make([]models.NotificationIntent, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, models.NotificationIntent{
			DriverID:       ev.DriverID,
			PenaltyEventID: ev.ID,
			RuleID:         rule.ID,
			Recipient:      r,
			Severity:       rule.Severity,
			Message:        msg,
			CreatedAt:      now,
		})
	}
	return out
}

func validateEvent(ev models.DriverEvent) error {
	switch {
	case ev.EventDriverID() == uuid.Nil:
		return fmt.Errorf("%w: driver_id is required", types.ErrInvalidInput)
	case ev.EventSourceID() == "":
		return fmt.Errorf("%w: source_event_id is required", types.ErrInvalidInput)
	case ev.EventTime().IsZero():
		return fmt.Errorf("%w: timestamp is required", types.ErrInvalidInput)
	}

	switch e := ev.(type) {
	case models.TripOutcomeEvent:
		if !e.Outcome.Valid() {
			return fmt.Errorf("%w: unknown trip outcome %q", types.ErrInvalidInput, e.Outcome)
		}
		if e.DelayMinutes < 0 {
			return fmt.Errorf("%w: delay_minutes must not be negative", types.ErrInvalidInput)
		}
	case models.AttendanceEvent:
		if !e.Status.Valid() {
			return fmt.Errorf("%w: unknown attendance status %q", types.ErrInvalidInput, e.Status)
		}
		if e.DelayMinutes < 0 {
			return fmt.Errorf("%w: delay_minutes must not be negative", types.ErrInvalidInput)
		}
	case models.ComplaintEvent:
	default:
		return fmt.Errorf("%w: unsupported event type %T", types.ErrInvalidInput, ev)
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, types.ErrConflict)
}
