package ocr

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestPollOptions_WithDefaults(t *testing.T) {
	t.Run("zero value becomes defaults", func(t *testing.T) {
		got := PollOptions{Jitter: true}.WithDefaults()
		if got != DefaultPollOptions() {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("large interval raises default max", func(t *testing.T) {
		got := PollOptions{Interval: time.Minute}.WithDefaults()
		if got.MaxInterval != time.Minute {
			t.Errorf("expected max interval 1m, got %s", got.MaxInterval)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		in := PollOptions{Interval: 3 * time.Second, MaxInterval: 9 * time.Second, BackoffMultiplier: 3, Timeout: time.Hour, MaxRetries: 7}
		if got := in.WithDefaults(); got != in {
			t.Errorf("expected %+v, got %+v", in, got)
		}
	})
}

func TestPollOptions_Validate(t *testing.T) {
	base := DefaultPollOptions()

	tests := []struct {
		name   string
		modify func(*PollOptions)
	}{
		{"negative interval", func(o *PollOptions) { o.Interval = -time.Second }},
		{"max below interval", func(o *PollOptions) { o.MaxInterval = time.Second; o.Interval = 2 * time.Second }},
		{"multiplier below one", func(o *PollOptions) { o.BackoffMultiplier = 0.9 }},
		{"negative timeout", func(o *PollOptions) { o.Timeout = -time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.modify(&o)
			if err := o.Validate(); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestPollOptions_NextInterval(t *testing.T) {
	o := PollOptions{MaxInterval: 30 * time.Second, BackoffMultiplier: 1.5}

	cur := 2 * time.Second
	for range 50 {
		next := o.nextInterval(cur)
		if next > o.MaxInterval {
			t.Fatalf("interval %s exceeded max %s", next, o.MaxInterval)
		}
		if next < cur {
			t.Fatalf("interval shrank from %s to %s", cur, next)
		}
		cur = next
	}
	if cur != o.MaxInterval {
		t.Errorf("expected interval to settle at max, got %s", cur)
	}

	t.Run("overflow saturates at max", func(t *testing.T) {
		huge := PollOptions{MaxInterval: time.Duration(math.MaxInt64), BackoffMultiplier: 10}
		if got := huge.nextInterval(time.Duration(math.MaxInt64 / 2)); got != huge.MaxInterval {
			t.Errorf("expected saturation at max, got %s", got)
		}
	})
}

func TestPollOptions_RetryLimit(t *testing.T) {
	if got := (PollOptions{MaxRetries: -5}).retryLimit(); got != 0 {
		t.Errorf("expected 0 for negative retries, got %d", got)
	}
	if got := (PollOptions{MaxRetries: 4}).retryLimit(); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestApplyJitter(t *testing.T) {
	d := 10 * time.Second
	for _, r := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.999} {
		got := applyJitter(d, r)
		if got < 8500*time.Millisecond-time.Microsecond || got > 11500*time.Millisecond+time.Microsecond {
			t.Errorf("r=%v: jittered delay %s outside [8.5s, 11.5s]", r, got)
		}
	}
}
