package microservices

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Temutjin2k/driver-engine/config"
	"github.com/Temutjin2k/driver-engine/internal/adapter/kafka"
	"github.com/Temutjin2k/driver-engine/internal/adapter/rabbit"
	"github.com/Temutjin2k/driver-engine/internal/service/dispatch"
	"github.com/Temutjin2k/driver-engine/internal/service/ingest"
	"github.com/Temutjin2k/driver-engine/internal/service/penalty"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
	rabbitClient "github.com/Temutjin2k/driver-engine/pkg/rabbit"
)

// ConsumerService ingests collaborator events and keeps registry blocks in
// sync with the penalty state.
type ConsumerService struct {
	postgresDB *postgres.PostgreDB
	rabbit     *rabbitClient.RabbitMQ
	audit      *kafka.PenaltyAudit
	consumer   *rabbit.EventConsumer
	penalty    *penalty.Service
	cfg        config.Config
	log        logger.Logger
}

func NewConsumer(ctx context.Context, cfg config.Config, log logger.Logger) (*ConsumerService, error) {
	s := &ConsumerService{cfg: cfg, log: log}

	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}
	s.postgresDB = postgresDB

	mq, err := rabbitClient.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "Failed to setup rabbitmq", err)
		s.close(ctx)
		return nil, err
	}
	s.rabbit = mq

	if err := declarePublisherTopology(ctx, mq); err != nil {
		log.Error(ctx, "Failed to declare rabbitmq topology", err)
		s.close(ctx)
		return nil, err
	}

	publishers := penalty.Publishers{rabbitPublisher(mq)}
	if s.audit, err = newAudit(cfg); err != nil {
		log.Error(ctx, "Failed to setup kafka audit", err)
		s.close(ctx)
		return nil, err
	}
	if s.audit != nil {
		publishers = append(publishers, s.audit)
	}

	// ranking is not served here, the distance lookup is never called
	services, err := newCore(cfg, postgresDB, dispatch.Haversine{}, publishers, nil, log)
	if err != nil {
		log.Error(ctx, "Failed to setup engine services", err)
		s.close(ctx)
		return nil, err
	}
	s.penalty = services.penalty

	handler := ingest.NewService(services.performance, services.earnings, services.penalty, log)
	s.consumer = rabbit.NewEventConsumer(mq, handler, cfg.RabbitMQ.Prefetch, log)

	return s, nil
}

func (s *ConsumerService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.close(context.WithoutCancel(ctx))
		s.log.Info(ctx, "event consumer closed")
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.consumer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		runTicker(ctx, s.cfg.Engine.Penalty.ReconcileInterval, func() { s.reconcile(ctx) })
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "event consumer started")

	sig := <-shutdownCh
	s.log.Info(ctx, "shuting down application", "signal", sig.String())

	cancel()
	wg.Wait()
	return nil
}

// reconcile retries registry blocks that failed during evaluation.
func (s *ConsumerService) reconcile(ctx context.Context) {
	ctx = wrap.WithAction(ctx, "reconcile_blocks")
	if _, err := s.penalty.ReconcileBlocks(ctx); err != nil && ctx.Err() == nil {
		s.log.Error(wrap.ErrorCtx(ctx, err), "block reconciliation failed", err)
	}
}

func (s *ConsumerService) close(ctx context.Context) {
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			s.log.Warn(ctx, "Failed to close kafka writer", "error", err.Error())
		}
	}

	if s.rabbit != nil {
		if err := s.rabbit.Close(ctx); err != nil {
			s.log.Warn(ctx, "Failed to close rabbitmq", "error", err.Error())
		}
	}

	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Close()
	}
}
