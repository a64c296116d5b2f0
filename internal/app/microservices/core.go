package microservices

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/config"
	repo "github.com/Temutjin2k/driver-engine/internal/adapter/postgres"
	"github.com/Temutjin2k/driver-engine/internal/adapter/s3archive"
	"github.com/Temutjin2k/driver-engine/internal/service/dispatch"
	"github.com/Temutjin2k/driver-engine/internal/service/earnings"
	"github.com/Temutjin2k/driver-engine/internal/service/penalty"
	"github.com/Temutjin2k/driver-engine/internal/service/performance"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
	"github.com/Temutjin2k/driver-engine/pkg/trm"
)

// core holds the engine services shared by the long-running modes.
type core struct {
	performance *performance.Service
	earnings    *earnings.Service
	penalty     *penalty.Service
	dispatch    *dispatch.Service
}

func newEarnings(cfg config.Config, db *postgres.PostgreDB, archiver earnings.Archiver, log logger.Logger) *earnings.Service {
	e := cfg.Engine
	deps := earnings.Deps{
		Global:      e.Earnings.Global(),
		Configs:     repo.NewEarningsConfigRepo(db.Pool),
		Daily:       repo.NewDailyLimitRepo(db.Pool),
		Settlements: repo.NewSettlementStore(db.SQL()),
		Archiver:    archiver,
		Ledger:      repo.NewEventLedger(db.Pool),
		TxManager:   trm.New(db.Pool),
		Retry:       earnings.RetryPolicy{MaxAttempts: e.Retry.MaxAttempts, Backoff: e.Retry.Backoff},
	}
	return earnings.NewService(deps, log)
}

// newArchiver returns the settlement archive, or nil when no bucket is configured.
func newArchiver(ctx context.Context, cfg config.Config) (earnings.Archiver, error) {
	if !cfg.Archive.Enabled() {
		return nil, nil
	}
	a, err := s3archive.New(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.Region)
	if err != nil {
		return nil, fmt.Errorf("settlement archive: %w", err)
	}
	return a, nil
}

func newCore(cfg config.Config, db *postgres.PostgreDB, distance dispatch.DistanceLookup, publisher penalty.Publisher, archiver earnings.Archiver, log logger.Logger) (*core, error) {
	e := cfg.Engine
	tx := trm.New(db.Pool)

	scorer, err := performance.NewScorer(
		performance.Weights{
			Completion: e.Scoring.Weights.Completion,
			Acceptance: e.Scoring.Weights.Acceptance,
			Rating:     e.Scoring.Weights.Rating,
			Complaints: e.Scoring.Weights.Complaints,
		},
		performance.Thresholds{Green: e.Scoring.GreenThreshold, Yellow: e.Scoring.YellowThreshold},
		e.Scoring.DefaultScore,
	)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}

	ranker, err := dispatch.NewRanker(
		dispatch.Weights{
			Proximity:   e.Dispatch.Weights.Proximity,
			Performance: e.Dispatch.Weights.Performance,
			Limit:       e.Dispatch.Weights.Limit,
		},
		dispatch.Multipliers{
			Green:  e.Dispatch.Multipliers.Green,
			Yellow: e.Dispatch.Multipliers.Yellow,
			Red:    e.Dispatch.Multipliers.Red,
		},
		e.Dispatch.ExcludeExhausted,
	)
	if err != nil {
		return nil, fmt.Errorf("ranker: %w", err)
	}

	ledger := repo.NewEventLedger(db.Pool)
	performanceService := performance.NewService(
		scorer,
		repo.NewPerformanceRepo(db.Pool),
		ledger,
		tx,
		performance.RetryPolicy{MaxAttempts: e.Retry.MaxAttempts, Backoff: e.Retry.Backoff},
		log,
	)

	earningsService := newEarnings(cfg, db, archiver, log)

	events := repo.NewPenaltyEventRepo(db.Pool)
	states := repo.NewPenaltyStateRepo(db.Pool)
	registry := repo.NewDriverRegistry(db.Pool)
	evaluator := penalty.NewEvaluator(
		events,
		states,
		repo.NewOccurrenceRepo(db.Pool),
		registry,
		tx,
		penalty.Policy{
			MaxAttempts:   e.Retry.MaxAttempts,
			Backoff:       e.Retry.Backoff,
			BlockAttempts: e.Penalty.BlockAttempts,
			BlockBackoff:  e.Penalty.BlockBackoff,
		},
		log,
	)
	penaltyService := penalty.NewService(evaluator, repo.NewPenaltyRuleRepo(db.Pool), events, states, publisher, e.Penalty.PublishTimeout, log)

	dispatchService := dispatch.NewService(
		ranker,
		registry,
		distance,
		penaltyService,
		performanceService,
		earningsService,
		dispatch.Options{
			DistanceTimeout:   e.Dispatch.DistanceTimeout,
			LookupConcurrency: e.Dispatch.LookupConcurrency,
			MaxCandidates:     e.Dispatch.MaxCandidates,
			Location:          e.Earnings.Global().Location(),
		},
		log,
	)

	return &core{
		performance: performanceService,
		earnings:    earningsService,
		penalty:     penaltyService,
		dispatch:    dispatchService,
	}, nil
}

// runTicker calls fn every interval until ctx is done.
func runTicker(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
