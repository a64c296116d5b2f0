package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/shopspring/decimal"
)

type (
	// EngineConfig holds scoring, ranking and retry policy.
	EngineConfig struct {
		Scoring  ScoringConfig  `yaml:"scoring"`
		Dispatch DispatchConfig `yaml:"dispatch"`
		Retry    RetryConfig    `yaml:"retry"`
		Penalty  PenaltyConfig  `yaml:"penalty"`
		Earnings EarningsConfig `yaml:"earnings"`
	}

	ScoringWeights struct {
		Completion float64 `yaml:"completion"`
		Acceptance float64 `yaml:"acceptance"`
		Rating     float64 `yaml:"rating"`
		Complaints float64 `yaml:"complaints"`
	}

	ScoringConfig struct {
		Weights         ScoringWeights `yaml:"weights"`
		GreenThreshold  int            `yaml:"green_threshold"`
		YellowThreshold int            `yaml:"yellow_threshold"`
		DefaultScore    int            `yaml:"default_score"`
	}

	DispatchWeights struct {
		Proximity   float64 `yaml:"proximity"`
		Performance float64 `yaml:"performance"`
		Limit       float64 `yaml:"limit"`
	}

	CategoryMultipliers struct {
		Green  float64 `yaml:"green"`
		Yellow float64 `yaml:"yellow"`
		Red    float64 `yaml:"red"`
	}

	DispatchConfig struct {
		Weights           DispatchWeights     `yaml:"weights"`
		Multipliers       CategoryMultipliers `yaml:"multipliers"`
		ExcludeExhausted  bool                `yaml:"exclude_exhausted"`
		DistanceTimeout   time.Duration       `yaml:"distance_timeout"`
		LookupConcurrency int                 `yaml:"lookup_concurrency"`
		MaxCandidates     int                 `yaml:"max_candidates"`
	}

	RetryConfig struct {
		MaxAttempts int           `yaml:"max_attempts"`
		Backoff     time.Duration `yaml:"backoff"`
	}

	PenaltyConfig struct {
		BlockAttempts     int           `yaml:"block_attempts"`
		BlockBackoff      time.Duration `yaml:"block_backoff"`
		ReconcileInterval time.Duration `yaml:"reconcile_interval"`
		PublishTimeout    time.Duration `yaml:"publish_timeout"`
	}

	// EarningsConfig is the global earnings policy used when no stored
	// config exists for a driver or franchise.
	EarningsConfig struct {
		Timezone              string                 `yaml:"timezone"`
		DailyTarget           decimal.Decimal        `yaml:"daily_target"`
		Tier1                 *models.IncentiveTier1 `yaml:"tier1"`
		Tier2                 *models.IncentiveTier2 `yaml:"tier2"`
		MonthlyBonusTiers     []models.BonusTier     `yaml:"monthly_bonus_tiers"`
		MonthlyDeductionTiers []models.DeductionTier `yaml:"monthly_deduction_tiers"`
	}
)

// Global converts the YAML policy into the global scope config.
func (e EarningsConfig) Global() models.EarningsConfig {
	return models.EarningsConfig{
		Scope:                 types.ScopeGlobal,
		Timezone:              e.Timezone,
		DailyTarget:           e.DailyTarget,
		Tier1:                 e.Tier1,
		Tier2:                 e.Tier2,
		MonthlyBonusTiers:     e.MonthlyBonusTiers,
		MonthlyDeductionTiers: e.MonthlyDeductionTiers,
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = logger.LevelInfo
	}
	if c.Services.EnginePort == "" {
		c.Services.EnginePort = "3010"
	}
	if c.RabbitMQ.Prefetch <= 0 {
		c.RabbitMQ.Prefetch = 10
	}
	if c.Kafka.WriteTimeout <= 0 {
		c.Kafka.WriteTimeout = 5 * time.Second
	}
	if c.LocationIQ.Timeout <= 0 {
		c.LocationIQ.Timeout = 2 * time.Second
	}
	if c.LocationIQ.BaseURL == "" {
		c.LocationIQ.BaseURL = "https://us1.locationiq.com/v1"
	}

	e := &c.Engine
	if e.Scoring.Weights == (ScoringWeights{}) {
		e.Scoring.Weights = ScoringWeights{Completion: 0.40, Acceptance: 0.30, Rating: 0.20, Complaints: 0.10}
	}
	if e.Scoring.GreenThreshold == 0 && e.Scoring.YellowThreshold == 0 {
		e.Scoring.GreenThreshold, e.Scoring.YellowThreshold = 80, 50
	}
	if e.Scoring.DefaultScore == 0 {
		e.Scoring.DefaultScore = 70
	}
	if e.Dispatch.Weights == (DispatchWeights{}) {
		e.Dispatch.Weights = DispatchWeights{Proximity: 0.5, Performance: 0.35, Limit: 0.15}
	}
	if e.Dispatch.Multipliers == (CategoryMultipliers{}) {
		e.Dispatch.Multipliers = CategoryMultipliers{Green: 1.0, Yellow: 0.6, Red: 0.2}
	}
	if e.Dispatch.DistanceTimeout <= 0 {
		e.Dispatch.DistanceTimeout = 800 * time.Millisecond
	}
	if e.Dispatch.LookupConcurrency <= 0 {
		e.Dispatch.LookupConcurrency = 8
	}
	if e.Dispatch.MaxCandidates <= 0 {
		e.Dispatch.MaxCandidates = 200
	}
	if e.Retry.MaxAttempts <= 0 {
		e.Retry.MaxAttempts = 5
	}
	if e.Retry.Backoff <= 0 {
		e.Retry.Backoff = 10 * time.Millisecond
	}
	if e.Penalty.BlockAttempts <= 0 {
		e.Penalty.BlockAttempts = 3
	}
	if e.Penalty.BlockBackoff <= 0 {
		e.Penalty.BlockBackoff = 200 * time.Millisecond
	}
	if e.Penalty.ReconcileInterval <= 0 {
		e.Penalty.ReconcileInterval = time.Minute
	}
	if e.Penalty.PublishTimeout <= 0 {
		e.Penalty.PublishTimeout = 3 * time.Second
	}
	if e.Earnings.Timezone == "" {
		e.Earnings.Timezone = "UTC"
	}
}

// Validate reports every invalid policy value at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{types.ErrConfiguration}, args...)...))
	}

	if !logger.ValidateLogLevel(c.LogLevel) {
		add("log_level %q is not one of DEBUG, INFO, WARN, ERROR", c.LogLevel)
	}
	if c.Mode == types.EngineService && c.Auth.JWTSecret == "" {
		add("auth.jwt_secret is required in %s mode", c.Mode)
	}

	s := c.Engine.Scoring
	w := s.Weights
	for name, v := range map[string]float64{"completion": w.Completion, "acceptance": w.Acceptance, "rating": w.Rating, "complaints": w.Complaints} {
		if v < 0 || math.IsNaN(v) {
			add("scoring weight %s must not be negative", name)
		}
	}
	if w.Completion+w.Acceptance+w.Rating+w.Complaints <= 0 {
		add("scoring weights must sum to a positive value")
	}
	if !(0 <= s.YellowThreshold && s.YellowThreshold < s.GreenThreshold && s.GreenThreshold <= 100) {
		add("scoring thresholds must satisfy 0 <= yellow < green <= 100, got yellow=%d green=%d", s.YellowThreshold, s.GreenThreshold)
	}
	if s.DefaultScore < 0 || s.DefaultScore > 100 {
		add("scoring default_score must be within [0,100]")
	}

	d := c.Engine.Dispatch
	if d.Weights.Proximity < 0 || d.Weights.Performance < 0 || d.Weights.Limit < 0 {
		add("dispatch weights must not be negative")
	}
	m := d.Multipliers
	if !(m.Green >= m.Yellow && m.Yellow >= m.Red && m.Red >= 0) {
		add("dispatch multipliers must satisfy green >= yellow >= red >= 0")
	}

	if _, err := time.LoadLocation(c.Engine.Earnings.Timezone); err != nil {
		add("earnings timezone %q: %v", c.Engine.Earnings.Timezone, err)
	}
	if c.Engine.Earnings.DailyTarget.IsNegative() {
		add("earnings daily_target must not be negative")
	}

	return errors.Join(errs...)
}
