package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the tunables for the scheduler, timer queue and send queue.
// Environment variables are parsed from the DISPATCH_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP stats surface (internal/statsapi).
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Worker pool policy.
	WorkersMin      int `envconfig:"WORKERS_MIN" default:"8"`
	WorkersMax      int `envconfig:"WORKERS_MAX" default:"8192"`
	WorkersSticky   int `envconfig:"WORKERS_STICKY" default:"0"`
	MaxIdleInterval int `envconfig:"MAX_IDLE_INTERVAL_SECONDS" default:"780"`

	// Send queue policy. QueueHardMax of 0 means "effectively unbounded"
	// and is resolved to MaxInt in ResolveDefaults.
	QueueHardMax  int  `envconfig:"QUEUE_HARD_MAX" default:"0"`
	QueueWarnStep int  `envconfig:"QUEUE_WARN_STEP" default:"3"`
	QueuePerm     bool `envconfig:"QUEUE_PERM" default:"false"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ResolveDefaults derives WorkersSticky from WorkersMax when unset and
// validates the worker-pool bounds.
func (c *Config) ResolveDefaults() error {
	if c.WorkersMin <= 0 {
		return fmt.Errorf("config: WORKERS_MIN must be positive, got %d", c.WorkersMin)
	}
	if c.WorkersMax < c.WorkersMin {
		return fmt.Errorf("config: WORKERS_MAX (%d) must be >= WORKERS_MIN (%d)", c.WorkersMax, c.WorkersMin)
	}
	if c.WorkersSticky <= 0 {
		// workers_sticky = workers_max - workers_max*3/4
		c.WorkersSticky = c.WorkersMax - (c.WorkersMax * 3 / 4)
	}
	if c.QueueHardMax <= 0 {
		c.QueueHardMax = int(^uint(0) >> 1) // math.MaxInt, kept local to avoid importing math for one constant
	}
	if c.QueueWarnStep <= 0 {
		return fmt.Errorf("config: QUEUE_WARN_STEP must be positive, got %d", c.QueueWarnStep)
	}
	return nil
}

// New parses environment variables prefixed with DISPATCH_ into a Config.
// Example: DISPATCH_WORKERS_MIN, DISPATCH_HTTP_PORT.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("DISPATCH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("http_port", cfg.HTTPPort).
		Int("workers_min", cfg.WorkersMin).
		Int("workers_max", cfg.WorkersMax).
		Int("workers_sticky", cfg.WorkersSticky).
		Int("max_idle_interval_seconds", cfg.MaxIdleInterval).
		Int("queue_hard_max", cfg.QueueHardMax).
		Int("queue_warn_step", cfg.QueueWarnStep).
		Bool("queue_perm", cfg.QueuePerm).
		Msg("configuration loaded")

	return &cfg, nil
}

// NewForTesting returns a Config with small, fast-settling pool bounds
// suitable for unit tests.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:     EnvTesting,
		HTTPPort:        0,
		WorkersMin:      2,
		WorkersMax:      4,
		MaxIdleInterval: 1,
		QueueHardMax:    4,
		QueueWarnStep:   3,
		QueuePerm:       false,
		LogLevel:        "debug",
	}
	_ = cfg.ResolveDefaults()
	return cfg
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address for the stats surface.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
