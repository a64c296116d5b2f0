package microservices

import (
	"context"
	"fmt"

	"github.com/Temutjin2k/driver-engine/config"
	"github.com/Temutjin2k/driver-engine/internal/service/earnings"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
)

// SettlementJob settles one month for every driver with earnings and exits.
type SettlementJob struct {
	postgresDB *postgres.PostgreDB
	earnings   *earnings.Service
	cfg        config.Config
	log        logger.Logger
}

func NewSettlement(ctx context.Context, cfg config.Config, log logger.Logger) (*SettlementJob, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "Failed to setup database", err)
		return nil, err
	}

	archiver, err := newArchiver(ctx, cfg)
	if err != nil {
		log.Error(ctx, "Failed to setup settlement archive", err)
		postgresDB.Close()
		return nil, err
	}

	return &SettlementJob{
		postgresDB: postgresDB,
		earnings:   newEarnings(cfg, postgresDB, archiver, log),
		cfg:        cfg,
		log:        log,
	}, nil
}

func (j *SettlementJob) Start(ctx context.Context) error {
	defer j.postgresDB.Close()
	ctx = wrap.WithAction(ctx, "settlement_job")

	month := j.cfg.Month
	if month == "" {
		month = j.earnings.PreviousMonth()
	}
	j.log.Info(ctx, "settlement job started", "month", month)

	settled, failed, err := j.earnings.SettleAll(ctx, month)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("settlement of %s: %d of %d drivers failed", month, failed, settled+failed)
	}
	return nil
}
