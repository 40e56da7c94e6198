package config

import (
	"fmt"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
)

// #region config

// Config carries the runtime parameters for the learning engine and the
// nightly trainer. Everything is environment-driven with the fixed
// production constants as defaults.
type Config struct {
	DBPath          string  `env:"KLARITA_DB" envDefault:"klarita.db"`
	LearningRate    float64 `env:"KLARITA_LEARNING_RATE" envDefault:"0.1"`
	DiscountFactor  float64 `env:"KLARITA_DISCOUNT_FACTOR" envDefault:"0.95"`
	Epsilon         float64 `env:"KLARITA_EPSILON" envDefault:"0.1"`
	HistorySize     int     `env:"KLARITA_HISTORY_SIZE" envDefault:"50"`
	MinInteractions int     `env:"KLARITA_MIN_INTERACTIONS" envDefault:"5"`
	TrainSchedule   string  `env:"KLARITA_TRAIN_SCHEDULE" envDefault:"0 3 * * *"`
}

// #endregion config

// #region load

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks parameter ranges and the cron expression.
func (c *Config) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate >= 1 {
		return fmt.Errorf("learning rate %v outside (0,1)", c.LearningRate)
	}
	if c.DiscountFactor < 0 || c.DiscountFactor >= 1 {
		return fmt.Errorf("discount factor %v outside [0,1)", c.DiscountFactor)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon %v outside [0,1]", c.Epsilon)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size %d must be positive", c.HistorySize)
	}
	if c.MinInteractions < 1 {
		return fmt.Errorf("min interactions %d must be at least 1", c.MinInteractions)
	}
	if !gronx.New().IsValid(c.TrainSchedule) {
		return fmt.Errorf("train schedule %q is not a valid cron expression", c.TrainSchedule)
	}
	return nil
}

// #endregion load
