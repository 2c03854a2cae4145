package ocr

import (
	"fmt"
	"time"
)

const (
	DefaultPollInterval      = 2 * time.Second
	DefaultMaxPollInterval   = 30 * time.Second
	DefaultBackoffMultiplier = 1.5
	DefaultPollTimeout       = 10 * time.Minute
	DefaultPollRetries       = 3

	// Jitter scales each sleep by a factor drawn from [jitterLow, jitterHigh].
	jitterLow  = 0.85
	jitterHigh = 1.15
)

// PollOptions configures WaitUntilDone.
//
// Zero-valued durations, multiplier and MaxRetries are replaced by the
// package defaults. Jitter is used as given. A negative MaxRetries disables
// transport retries entirely.
type PollOptions struct {
	Interval          time.Duration `json:"interval" yaml:"interval"`
	MaxInterval       time.Duration `json:"max_interval" yaml:"max_interval"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	Jitter            bool          `json:"jitter" yaml:"jitter"`
	MaxRetries        int           `json:"max_retries" yaml:"max_retries"`
}

// DefaultPollOptions returns the recommended polling configuration.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		Interval:          DefaultPollInterval,
		MaxInterval:       DefaultMaxPollInterval,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Timeout:           DefaultPollTimeout,
		Jitter:            true,
		MaxRetries:        DefaultPollRetries,
	}
}

// WithDefaults returns o with zero fields replaced by the package defaults.
func (o PollOptions) WithDefaults() PollOptions {
	if o.Interval == 0 {
		o.Interval = DefaultPollInterval
	}
	if o.MaxInterval == 0 {
		o.MaxInterval = max(DefaultMaxPollInterval, o.Interval)
	}
	if o.BackoffMultiplier == 0 {
		o.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultPollTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultPollRetries
	}
	return o
}

// Validate checks the options as they will be used.
func (o PollOptions) Validate() error {
	switch {
	case o.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidOptions, o.Interval)
	case o.MaxInterval < o.Interval:
		return fmt.Errorf("%w: max_interval %s is below interval %s", ErrInvalidOptions, o.MaxInterval, o.Interval)
	case o.BackoffMultiplier < 1.0:
		return fmt.Errorf("%w: backoff_multiplier must be >= 1.0, got %g", ErrInvalidOptions, o.BackoffMultiplier)
	case o.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidOptions, o.Timeout)
	}
	return nil
}

// retryLimit is the number of consecutive transport failures tolerated.
func (o PollOptions) retryLimit() int {
	if o.MaxRetries < 0 {
		return 0
	}
	return o.MaxRetries
}

// nextInterval grows the current interval by the multiplier, capped at MaxInterval.
func (o PollOptions) nextInterval(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * o.BackoffMultiplier)
	if next > o.MaxInterval || next < current {
		return o.MaxInterval
	}
	return next
}

// applyJitter scales d by a factor in [0.85, 1.15]; r is uniform in [0, 1).
func applyJitter(d time.Duration, r float64) time.Duration {
	factor := jitterLow + (jitterHigh-jitterLow)*r
	return time.Duration(float64(d) * factor)
}
