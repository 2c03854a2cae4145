package ocr

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces outgoing requests with a per-minute token bucket and
// pauses entirely after the service answers 429 with a Retry-After.
type RateLimiter struct {
	mu sync.Mutex

	perMinute   int
	tokens      float64
	lastRefill  time.Time
	pausedUntil time.Time

	now func() time.Time

	totalRequests int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	PerMinute       int           `json:"per_minute"`
	PausedFor       time.Duration `json:"paused_for,omitempty"`
	TotalRequests   int64         `json:"total_requests"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter allowing perMinute requests per minute,
// starting with a full bucket.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute:  perMinute,
		tokens:     float64(perMinute),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.refill(now)

		var wait time.Duration
		switch {
		case now.Before(r.pausedUntil):
			wait = r.pausedUntil.Sub(now)
		case r.tokens >= 1.0:
			r.tokens--
			r.totalRequests++
			r.mu.Unlock()
			return nil
		default:
			wait = r.untilNextToken()
		}
		r.mu.Unlock()

		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
		r.mu.Lock()
		r.totalWaited += wait
		r.mu.Unlock()
	}
}

// Pause stops all requests for d. Called when the service rate limits us.
func (r *RateLimiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.now().Add(d)
	if until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
	r.tokens = 0
}

// Status returns a snapshot of the limiter.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)

	var paused time.Duration
	if now.Before(r.pausedUntil) {
		paused = r.pausedUntil.Sub(now)
	}
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		PerMinute:       r.perMinute,
		PausedFor:       paused,
		TotalRequests:   r.totalRequests,
		TotalWaited:     r.totalWaited,
	}
}

// refill adds tokens for the time since the last refill. Caller holds mu.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill)
	if elapsed <= 0 {
		return
	}
	r.lastRefill = now
	r.tokens += elapsed.Minutes() * float64(r.perMinute)
	if r.tokens > float64(r.perMinute) {
		r.tokens = float64(r.perMinute)
	}
}

// untilNextToken is the time for the bucket to reach one token. Caller holds mu.
func (r *RateLimiter) untilNextToken() time.Duration {
	missing := 1.0 - r.tokens
	perToken := time.Minute / time.Duration(r.perMinute)
	return time.Duration(missing * float64(perToken))
}
