package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: secret
engine:
  earnings:
    timezone: Asia/Almaty
    daily_target: 1000
    tier1: {min: 1000, max: 1500, type: PERCENTAGE, percent: 50}
    tier2: {min: 1500, percent: 70}
    monthly_bonus_tiers:
      - {min_earnings: 500, bonus: 50}
`)

	cfg, err := Load(path, string(types.EngineService), "")
	require.NoError(t, err)

	assert.Equal(t, types.EngineService, cfg.Mode)
	assert.Equal(t, ScoringWeights{Completion: 0.40, Acceptance: 0.30, Rating: 0.20, Complaints: 0.10}, cfg.Engine.Scoring.Weights)
	assert.Equal(t, 80, cfg.Engine.Scoring.GreenThreshold)
	assert.Equal(t, 50, cfg.Engine.Scoring.YellowThreshold)
	assert.Equal(t, DispatchWeights{Proximity: 0.5, Performance: 0.35, Limit: 0.15}, cfg.Engine.Dispatch.Weights)
	assert.Equal(t, 800*time.Millisecond, cfg.Engine.Dispatch.DistanceTimeout)
	assert.Equal(t, 5, cfg.Engine.Retry.MaxAttempts)

	global := cfg.Engine.Earnings.Global()
	assert.Equal(t, types.ScopeGlobal, global.Scope)
	assert.Equal(t, "1000", global.DailyTarget.String())
	require.NotNil(t, global.Tier1)
	assert.Equal(t, types.IncentivePercentage, global.Tier1.Type)
	assert.Equal(t, "70", global.Tier2.Percent.String())
	require.Len(t, global.MonthlyBonusTiers, 1)
	assert.Equal(t, "50", global.MonthlyBonusTiers[0].Bonus.String())
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "log_level: INFO\n")

	_, err := Load(path, "", "")
	assert.ErrorIs(t, err, ErrModeNotProvided)

	_, err = Load(path, "ride-service", "")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestValidateThresholds(t *testing.T) {
	path := writeConfig(t, `
engine:
  scoring:
    green_threshold: 40
    yellow_threshold: 60
`)

	_, err := Load(path, string(types.EventConsumer), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestEngineServiceRequiresSecret(t *testing.T) {
	path := writeConfig(t, "log_level: DEBUG\n")

	_, err := Load(path, string(types.EngineService), "")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = Load(path, string(types.SettlementJob), "2024-01")
	assert.NoError(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", Database: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.GetDSN())

	mq := RabbitMQConfig{Host: "h", Port: "5672", User: "g", Password: "g"}
	assert.Equal(t, "amqp://g:g@h:5672/", mq.GetDSN())
}
