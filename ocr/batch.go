package ocr

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds in-flight documents in BatchProcess.
const DefaultBatchConcurrency = 3

// BatchOptions configures BatchProcess.
type BatchOptions struct {
	MaxConcurrent int
	Wait          bool
}

// BatchItem is the outcome for one source. Exactly one of Submission and Err
// describes the outcome, except that a failed wait keeps the submission too.
type BatchItem struct {
	Source     string      `json:"source" yaml:"source"`
	Submission *Submission `json:"submission,omitempty" yaml:"submission,omitempty"`
	Err        error       `json:"-" yaml:"-"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchProcess processes sources concurrently, at most MaxConcurrent at a
// time. One source failing never stops the others; results keep input order.
func (s *Service) BatchProcess(ctx context.Context, sources []string, opts ProcessOptions, bopts BatchOptions) []BatchItem {
	limit := bopts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	items := make([]BatchItem, len(sources))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, source := range sources {
		items[i].Source = source
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				items[i].Error = err.Error()
				return nil
			}
			sub, err := s.ProcessDocument(ctx, source, opts, bopts.Wait)
			items[i].Submission = sub
			if err != nil {
				items[i].Err = err
				items[i].Error = err.Error()
				s.logger.Warn("batch item failed", "source", source, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	s.logger.Info("batch finished",
		"documents", len(sources), "failed", failed, "concurrency", limit, "duration", time.Since(start))
	return items
}
