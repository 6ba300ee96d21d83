package fsrs

import (
	"fmt"
	"math"
)

// Version tags parameter rows produced for this model.
const Version = "fsrs-4.5"

const (
	DefaultTargetRetention = 0.9
	DefaultMaximumInterval = 36500
)

// Config is the full input needed to build a Model.
type Config struct {
	Weights         Weights
	TargetRetention float64
	MaximumInterval int
	EnableFuzz      bool
}

func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights,
		TargetRetention: DefaultTargetRetention,
		MaximumInterval: DefaultMaximumInterval,
		EnableFuzz:      true,
	}
}

func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.TargetRetention) || c.TargetRetention <= 0 || c.TargetRetention >= 1 {
		return fmt.Errorf("%w: target retention %g must be in (0, 1)", ErrInvalidConfig, c.TargetRetention)
	}
	if c.MaximumInterval < 1 {
		return fmt.Errorf("%w: maximum interval %d must be >= 1", ErrInvalidConfig, c.MaximumInterval)
	}
	return nil
}
