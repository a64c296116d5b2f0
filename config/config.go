package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/configparser"
)

// Flags
var (
	modeFlag   = flag.String("mode", "", "application mode: engine-service | event-consumer | settlement-job")
	monthFlag  = flag.String("month", "", "month to settle in settlement-job mode, YYYY-MM (default: previous month)")
	configFlag = flag.String("config", "config.yaml", "path to the YAML config file")
)

// Errors
var (
	ErrModeNotProvided = errors.New("mode flag not provided")
	ErrUnknownMode     = errors.New("unknown mode")
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode types.ServiceMode `yaml:"-"`
		// Month is the settlement month for settlement-job mode.
		Month string `yaml:"-"`

		LogLevel   string           `yaml:"log_level"`
		Database   DatabaseConfig   `yaml:"database"`
		RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
		Kafka      KafkaConfig      `yaml:"kafka"`
		Archive    ArchiveConfig    `yaml:"archive"`
		Services   ServicesConfig   `yaml:"services"`
		Auth       Auth             `yaml:"auth"`
		LocationIQ LocationIQConfig `yaml:"locationiq"`
		Engine     EngineConfig     `yaml:"engine"`
	}

	DatabaseConfig struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`

		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	}

	RabbitMQConfig struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Prefetch int    `yaml:"prefetch"`
	}

	// KafkaConfig enables the penalty audit stream when Brokers is not empty.
	KafkaConfig struct {
		Brokers      []string      `yaml:"brokers"`
		PenaltyTopic string        `yaml:"penalty_topic"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	}

	// ArchiveConfig enables the S3 settlement archive when Bucket is set.
	ArchiveConfig struct {
		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
		Region string `yaml:"region"`
	}

	ServicesConfig struct {
		EnginePort string `yaml:"engine_port"`
	}

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	}

	LocationIQConfig struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		sslMode,
	)
}

func (c DatabaseConfig) PoolLimits() (int32, int32, time.Duration, time.Duration) {
	return c.MaxConns, c.MinConns, c.MaxConnLifetime, c.MaxConnIdleTime
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.PenaltyTopic != ""
}

func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

func NewConfig() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}
	return Load(*configFlag, *modeFlag, *monthFlag)
}

// Load reads the config file, applies engine defaults and validates the result.
func Load(filepath string, mode string, month string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	if err := applyMode(cfg, mode); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	cfg.Month = month

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyMode(cfg *Config, mode string) error {
	if mode == "" {
		return ErrModeNotProvided
	}

	cfg.Mode = types.ServiceMode(mode)
	if !cfg.Mode.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	return nil
}
