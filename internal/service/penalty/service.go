package penalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/google/uuid"
)

// Service loads rules, runs the evaluator and publishes results.
type Service struct {
	evaluator      *Evaluator
	rules          RuleRepo
	events         EventRepo
	states         StateRepo
	publisher      Publisher
	publishTimeout time.Duration
	l              logger.Logger
}

func NewService(evaluator *Evaluator, rules RuleRepo, events EventRepo, states StateRepo, publisher Publisher, publishTimeout time.Duration, l logger.Logger) *Service {
	return &Service{
		evaluator:      evaluator,
		rules:          rules,
		events:         events,
		states:         states,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		l:              l,
	}
}

// EvaluatePenaltyEvent evaluates ev against the active rule set. The result is
// returned even when the registry block failed, together with types.ErrBlockFailed.
func (s *Service) EvaluatePenaltyEvent(ctx context.Context, ev models.DriverEvent) (models.EvaluationResult, error) {
	const op = "PenaltyService.EvaluatePenaltyEvent"
	ctx = wrap.WithAction(ctx, types.ActionPenaltyEvaluated)

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: load rules: %w", op, err))
	}

	res, err := s.evaluator.Evaluate(ctx, ev, rules)
	if err != nil && !errors.Is(err, types.ErrBlockFailed) {
		return res, err
	}
	s.publish(ctx, res)
	return res, err
}

// ApplyManual records a staff penalty. The actor must be set.
func (s *Service) ApplyManual(ctx context.Context, mp models.ManualPenalty) (models.EvaluationResult, error) {
	const op = "PenaltyService.ApplyManual"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, types.ActionPenaltyApplied), mp.DriverID.String())

	if mp.ActorID == uuid.Nil {
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w: actor id is required", op, types.ErrUnauthorized))
	}

	rule, err := s.rules.GetRule(ctx, mp.RuleID)
	if err != nil {
		return models.EvaluationResult{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	res, err := s.evaluator.ApplyManual(ctx, mp, rule)
	if err != nil && !errors.Is(err, types.ErrBlockFailed) {
		return res, err
	}
	s.publish(ctx, res)
	return res, err
}

// ListPenalties returns the driver's penalty history and current state.
func (s *Service) ListPenalties(ctx context.Context, driverID uuid.UUID) (models.DriverPenalties, error) {
	const op = "PenaltyService.ListPenalties"
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "list_penalties"), driverID.String())

	st, err := s.GetState(ctx, driverID)
	if err != nil {
		return models.DriverPenalties{}, err
	}

	events, err := s.events.ListEvents(ctx, driverID)
	if err != nil {
		return models.DriverPenalties{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if events == nil {
		events = []models.PenaltyEvent{}
	}

	return models.DriverPenalties{State: st, Events: events}, nil
}

// GetState returns the driver's penalty state, NORMAL when never penalised.
func (s *Service) GetState(ctx context.Context, driverID uuid.UUID) (models.DriverPenaltyState, error) {
	const op = "PenaltyService.GetState"

	st, err := s.states.GetState(ctx, driverID)
	if errors.Is(err, types.ErrNotFound) {
		return models.DriverPenaltyState{DriverID: driverID, State: types.StateNormal}, nil
	}
	if err != nil {
		return models.DriverPenaltyState{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return st, nil
}

// States returns the penalty state of each driver, NORMAL when absent.
func (s *Service) States(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]types.PenaltyState, error) {
	const op = "PenaltyService.States"

	stored, err := s.states.GetStates(ctx, driverIDs)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	out := make(map[uuid.UUID]types.PenaltyState, len(driverIDs))
	for _, id := range driverIDs {
		out[id] = types.StateNormal
		if st, ok := stored[id]; ok {
			out[id] = st.State
		}
	}
	return out, nil
}

// ReconcileBlocks retries every BLOCKED state the registry has not confirmed.
func (s *Service) ReconcileBlocks(ctx context.Context) (synced int, err error) {
	const op = "PenaltyService.ReconcileBlocks"
	ctx = wrap.WithAction(ctx, "reconcile_blocks")

	pending, err := s.states.ListUnsyncedBlocks(ctx)
	if err != nil {
		return 0, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	var errs []error
	for _, st := range pending {
		if err := s.evaluator.SyncBlock(ctx, st.DriverID); err != nil {
			errs = append(errs, err)
			continue
		}
		synced++
	}

	if len(pending) > 0 {
		s.l.Info(ctx, "block reconciliation finished", "pending", len(pending), "synced", synced)
	}
	if len(errs) > 0 {
		return synced, wrap.Error(ctx, fmt.Errorf("%s: %w", op, errors.Join(errs...)))
	}
	return synced, nil
}

// publish delivers results with their own timeout. Failures are logged,
// intents are already persisted.
func (s *Service) publish(ctx context.Context, res models.EvaluationResult) {
	if s.publisher == nil || len(res.Events) == 0 {
		return
	}

	pctx := ctx
	if s.publishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
		defer cancel()
	}

	if err := s.publisher.Publish(pctx, res); err != nil {
		s.l.Error(ctx, "failed to publish penalty result", err, "events", len(res.Events))
	}
}

// Publishers fans a result out to every publisher.
type Publishers []Publisher

func (p Publishers) Publish(ctx context.Context, res models.EvaluationResult) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
