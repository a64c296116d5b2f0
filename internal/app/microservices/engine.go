package microservices

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Temutjin2k/driver-engine/config"
	"github.com/Temutjin2k/driver-engine/internal/adapter/http/handler"
	"github.com/Temutjin2k/driver-engine/internal/adapter/http/server"
	"github.com/Temutjin2k/driver-engine/internal/adapter/kafka"
	"github.com/Temutjin2k/driver-engine/internal/adapter/locationIQ"
	"github.com/Temutjin2k/driver-engine/internal/adapter/rabbit"
	"github.com/Temutjin2k/driver-engine/internal/service/auth"
	"github.com/Temutjin2k/driver-engine/internal/service/penalty"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
	rabbitClient "github.com/Temutjin2k/driver-engine/pkg/rabbit"
	ws "github.com/Temutjin2k/driver-engine/pkg/wsHub"
)

// EngineService serves the HTTP API. Penalties applied here are published to
// RabbitMQ, the audit stream and the admin websocket feed.
type EngineService struct {
	postgresDB *postgres.PostgreDB
	rabbit     *rabbitClient.RabbitMQ
	audit      *kafka.PenaltyAudit
	hub        *ws.ConnectionHub
	httpServer *server.API
	cfg        config.Config
	log        logger.Logger
}

func NewEngine(ctx context.Context, cfg config.Config, log logger.Logger) (*EngineService, error) {
	s := &EngineService{cfg: cfg, log: log}

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

	s.hub = ws.NewConnHub("admin_penalties", log)
	feed := handler.NewPenaltyFeed(s.hub, log)

	publishers := penalty.Publishers{rabbitPublisher(mq), feed}
	if s.audit, err = newAudit(cfg); err != nil {
		log.Error(ctx, "Failed to setup kafka audit", err)
		s.close(ctx)
		return nil, err
	}
	if s.audit != nil {
		publishers = append(publishers, s.audit)
	}

	distance := locationIQ.New(cfg.LocationIQ.APIKey, cfg.LocationIQ.BaseURL, cfg.LocationIQ.Timeout, log)

	archiver, err := newArchiver(ctx, cfg)
	if err != nil {
		log.Error(ctx, "Failed to setup settlement archive", err)
		s.close(ctx)
		return nil, err
	}

	services, err := newCore(cfg, postgresDB, distance, publishers, archiver, log)
	if err != nil {
		log.Error(ctx, "Failed to setup engine services", err)
		s.close(ctx)
		return nil, err
	}

	httpServer, err := server.New(cfg, server.Services{
		Performance: services.performance,
		Dispatch:    services.dispatch,
		Earnings:    services.earnings,
		Penalty:     services.penalty,
		Auth:        auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		DB:          postgresDB.Pool,
	}, feed, log)
	if err != nil {
		log.Error(ctx, "Failed to setup http server", err)
		s.close(ctx)
		return nil, err
	}
	s.httpServer = httpServer

	return s, nil
}

func (s *EngineService) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	s.httpServer.Run(ctx, errCh)
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "engine service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "engine service started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shuting down application", "signal", sig.String())
		return nil
	}
}

func (s *EngineService) close(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "Failed to gracefully close http server", "error", err.Error())
		}
	}

	if s.hub != nil {
		s.hub.Close()
	}

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

func declarePublisherTopology(ctx context.Context, client *rabbitClient.RabbitMQ) error {
	return client.Declare(ctx, rabbit.PublisherTopology())
}

func rabbitPublisher(client *rabbitClient.RabbitMQ) penalty.Publisher {
	return rabbit.NewPenaltyPublisher(client)
}

// newAudit returns nil when the audit stream is not configured.
func newAudit(cfg config.Config) (*kafka.PenaltyAudit, error) {
	if !cfg.Kafka.Enabled() {
		return nil, nil
	}
	return kafka.NewPenaltyAudit(cfg.Kafka.Brokers, cfg.Kafka.PenaltyTopic, cfg.Kafka.WriteTimeout)
}
