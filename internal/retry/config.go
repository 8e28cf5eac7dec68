package retry

import (
	"fmt"
	"math"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries        int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay         time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay          time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	Jitter            bool          `json:"jitter" yaml:"jitter"`
}

// Default is a balanced schedule: 3 retries starting at 500ms.
func Default() Config {
	return Config{
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Fast gives up quickly. Use it for interactive checks.
func Fast() Config {
	return Config{
		MaxRetries:        2,
		BaseDelay:         200 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 1.5,
		Jitter:            true,
	}
}

// Patient tolerates long outages.
func Patient() Config {
	return Config{
		MaxRetries:        5,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Network is tuned for flaky links and is what the WebDAV client uses by default.
func Network() Config {
	return Config{
		MaxRetries:        4,
		BaseDelay:         800 * time.Millisecond,
		MaxDelay:          45 * time.Second,
		BackoffMultiplier: 2.2,
		Jitter:            true,
	}
}

// Preset returns a named schedule. Unknown names yield an error.
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "fast":
		return Fast(), nil
	case "patient":
		return Patient(), nil
	case "network":
		return Network(), nil
	}
	return Config{}, fmt.Errorf("retry: unknown preset %q", name)
}

// MaxAttempts is the upper bound on invocations of the operation.
func (c Config) MaxAttempts() int {
	if c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

// backoff computes the wait after the given zero based attempt failed.
// rnd must return a value in [0, 1).
func (c Config) backoff(floor time.Duration, attempt int, rnd float64) time.Duration {
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}

	exp := float64(c.BaseDelay) * math.Pow(mult, float64(attempt))
	delay := float64(floor)
	if exp > delay {
		delay = exp
	}
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.Jitter {
		// uniform in [-25%, +25%)
		delay += delay * (rnd*0.5 - 0.25)
	}

	d := time.Duration(delay)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
