package config

import (
	"context"

	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
)

const masked = "******"

func mask(s string) string {
	if s == "" {
		return ""
	}
	return masked
}

// PrintConfig logs the effective configuration with secrets masked.
func PrintConfig(ctx context.Context, cfg *Config, log logger.Logger) {
	ctx = wrap.WithAction(ctx, "print_config")

	e := cfg.Engine
	log.Info(ctx, "configuration loaded",
		"mode", cfg.Mode,
		"log_level", cfg.LogLevel,
		"database", map[string]any{
			"host":      cfg.Database.Host,
			"port":      cfg.Database.Port,
			"user":      cfg.Database.User,
			"password":  mask(cfg.Database.Password),
			"database":  cfg.Database.Database,
			"max_conns": cfg.Database.MaxConns,
		},
		"rabbitmq", map[string]any{
			"host":     cfg.RabbitMQ.Host,
			"port":     cfg.RabbitMQ.Port,
			"user":     cfg.RabbitMQ.User,
			"password": mask(cfg.RabbitMQ.Password),
			"prefetch": cfg.RabbitMQ.Prefetch,
		},
		"kafka_enabled", cfg.Kafka.Enabled(),
		"archive_enabled", cfg.Archive.Enabled(),
		"engine_port", cfg.Services.EnginePort,
		"jwt_secret", mask(cfg.Auth.JWTSecret),
		"locationiq_key", mask(cfg.LocationIQ.APIKey),
		"scoring", e.Scoring,
		"dispatch", map[string]any{
			"weights":           e.Dispatch.Weights,
			"multipliers":       e.Dispatch.Multipliers,
			"exclude_exhausted": e.Dispatch.ExcludeExhausted,
			"distance_timeout":  e.Dispatch.DistanceTimeout.String(),
		},
		"retry_max_attempts", e.Retry.MaxAttempts,
		"earnings_timezone", e.Earnings.Timezone,
	)
}
