package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// StatusFetcher performs a single status query for a job.
type StatusFetcher func(ctx context.Context, jobID string) (*Job, error)

var errEmptySnapshot = errors.New("status fetch returned no job")

// poller holds the time and randomness sources for a wait loop. Loop state
// lives in wait's locals, so one poller may serve concurrent waits.
type poller struct {
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	rand   func() float64
	logger *slog.Logger
}

func newPoller(logger *slog.Logger) *poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &poller{
		now:    time.Now,
		sleep:  sleepContext,
		rand:   rand.Float64,
		logger: logger,
	}
}

// WaitUntilDone polls fetch until the job reaches a terminal state.
//
// A completed job is returned with a nil error. A failed or cancelled job is
// returned together with a *JobFailedError. Exceeding opts.Timeout yields a
// *TimeoutError, including when a status fetch is still in flight at the
// deadline. Exhausting transport retries yields a *TransportError.
// Cancelling ctx stops polling and returns ctx.Err(); the remote job is not affected.
func WaitUntilDone(ctx context.Context, jobID string, opts PollOptions, fetch StatusFetcher) (*Job, error) {
	return newPoller(nil).wait(ctx, jobID, opts, fetch)
}

func (p *poller) wait(ctx context.Context, jobID string, opts PollOptions, fetch StatusFetcher) (*Job, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}
	if fetch == nil {
		return nil, fmt.Errorf("%w: status fetcher is nil", ErrInvalidOptions)
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := p.now()
	interval := opts.Interval
	failures := 0
	var lastStatus JobStatus

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// A single fetch may not outlive the remaining poll budget.
		fctx, cancel := context.WithTimeout(ctx, opts.Timeout-p.now().Sub(start))
		job, err := fetch(fctx, jobID)
		expired := fctx.Err() != nil
		cancel()
		if err == nil && job == nil {
			err = errEmptySnapshot
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if expired {
				return nil, &TimeoutError{JobID: jobID, Timeout: opts.Timeout, Elapsed: p.now().Sub(start), LastStatus: lastStatus}
			}
			failures++
			if !isRetryableFetchError(err) || failures > opts.retryLimit() {
				return nil, &TransportError{JobID: jobID, Attempts: failures, Err: err}
			}
			p.logger.Warn("status fetch failed, retrying",
				"job_id", jobID, "attempt", failures, "limit", opts.retryLimit(), "error", err)
		} else {
			failures = 0
			lastStatus = job.Status
			switch job.Status {
			case StatusCompleted:
				return job, nil
			case StatusFailed, StatusCancelled:
				return job, &JobFailedError{JobID: jobID, Status: job.Status, Message: job.ErrorMessage}
			}
			p.logger.Debug("job still running",
				"job_id", jobID, "status", job.Status, "progress", job.Progress)
		}

		elapsed := p.now().Sub(start)
		if elapsed >= opts.Timeout {
			return nil, &TimeoutError{JobID: jobID, Timeout: opts.Timeout, Elapsed: elapsed, LastStatus: lastStatus}
		}

		delay := interval
		if opts.Jitter {
			delay = applyJitter(delay, p.rand())
		}
		if remaining := opts.Timeout - elapsed; delay > remaining {
			delay = remaining
		}
		if err := p.sleep(ctx, delay); err != nil {
			return nil, err
		}
		interval = opts.nextInterval(interval)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
