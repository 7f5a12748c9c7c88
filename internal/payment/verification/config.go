package verification

import (
	"fmt"
	"time"
)

const (
	defaultBudget               = 60 * time.Second
	defaultTickInterval         = time.Second
	defaultErrorThreshold       = 3
	defaultFallbackMinRemaining = 10 * time.Second
)

type Config struct {
	// Budget is the countdown length. Only the countdown decides when to give up.
	Budget       time.Duration
	TickInterval time.Duration
	PollInterval time.Duration
	InitialDelay time.Duration
	// MaxAttempts defaults to Budget / PollInterval.
	MaxAttempts int

	ErrorThreshold       int
	FallbackMinRemaining time.Duration
	DemoFallback         bool
}

// ScreenConfig is the cadence of the dedicated verification screen.
func ScreenConfig() Config {
	return Config{
		Budget:               defaultBudget,
		TickInterval:         defaultTickInterval,
		PollInterval:         5 * time.Second,
		ErrorThreshold:       defaultErrorThreshold,
		FallbackMinRemaining: defaultFallbackMinRemaining,
	}
}

// QuickPayConfig polls less often and gives the gateway a head start before the first probe.
func QuickPayConfig() Config {
	return Config{
		Budget:               defaultBudget,
		TickInterval:         defaultTickInterval,
		PollInterval:         10 * time.Second,
		InitialDelay:         5 * time.Second,
		ErrorThreshold:       defaultErrorThreshold,
		FallbackMinRemaining: defaultFallbackMinRemaining,
	}
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.MaxAttempts <= 0 && c.PollInterval > 0 {
		c.MaxAttempts = int(c.Budget / c.PollInterval)
		if c.MaxAttempts < 1 {
			c.MaxAttempts = 1
		}
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = defaultErrorThreshold
	}
	if c.FallbackMinRemaining <= 0 {
		c.FallbackMinRemaining = defaultFallbackMinRemaining
	}
	return c
}

func (c Config) Validate() error {
	if c.Budget <= 0 {
		return fmt.Errorf("verification budget must be positive, got %v", c.Budget)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial delay must not be negative, got %v", c.InitialDelay)
	}
	if c.InitialDelay >= c.Budget {
		return fmt.Errorf("initial delay %v leaves no time within budget %v", c.InitialDelay, c.Budget)
	}
	return nil
}
