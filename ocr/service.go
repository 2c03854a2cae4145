package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Service layers document-level workflows over a Client: choosing the
// submission path for a source, waiting, and pulling text or data out.
type Service struct {
	client *Client
	poll   PollOptions
	logger *slog.Logger
}

// NewService creates a Service that waits with the given poll options.
func NewService(client *Client, poll PollOptions) *Service {
	return &Service{
		client: client,
		poll:   poll,
		logger: client.logger,
	}
}

// Submission is the outcome of processing one document. Result is set only
// when the caller asked to wait.
type Submission struct {
	Source string        `json:"source" yaml:"source"`
	Job    *Job          `json:"job" yaml:"job"`
	Upload *UploadResult `json:"upload,omitempty" yaml:"upload,omitempty"`
	Result *JobResult    `json:"result,omitempty" yaml:"result,omitempty"`
}

// IsURL reports whether source names a remote document rather than a local path.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ProcessDocument submits a URL or local file path and optionally waits for
// the result.
func (s *Service) ProcessDocument(ctx context.Context, source string, opts ProcessOptions, wait bool) (*Submission, error) {
	sub := &Submission{Source: source}

	if IsURL(source) {
		job, err := s.client.ProcessURL(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		sub.Job = job
	} else {
		upload, err := s.client.UploadPath(ctx, source, opts)
		if err != nil {
			return nil, err
		}
		sub.Upload = upload
		sub.Job = upload.Job()
	}

	if !wait {
		return sub, nil
	}
	result, err := s.client.WaitForResult(ctx, sub.Job.ID, s.poll)
	if err != nil {
		return sub, err
	}
	sub.Result = result
	sub.Job.Status = result.Status
	return sub, nil
}

// ExtractText processes a document in text format and returns its text.
func (s *Service) ExtractText(ctx context.Context, source string) (string, error) {
	sub, err := s.ProcessDocument(ctx, source, ProcessOptions{Format: FormatText}, true)
	if err != nil {
		return "", err
	}
	text := sub.Result.Text()
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted from %s", ErrIncompleteResult, source)
	}
	return text, nil
}

// ExtractStructuredData processes a document in structured format. When
// schema is non-empty the returned data is validated against it locally.
func (s *Service) ExtractStructuredData(ctx context.Context, source, schemaID string, schema json.RawMessage) (map[string]any, error) {
	opts := ProcessOptions{Format: FormatStructured, SchemaID: schemaID}
	sub, err := s.ProcessDocument(ctx, source, opts, true)
	if err != nil {
		return nil, err
	}
	if len(sub.Result.Data) == 0 {
		return nil, fmt.Errorf("%w: no structured data extracted from %s", ErrIncompleteResult, source)
	}
	if err := ValidateData(schema, sub.Result.Data); err != nil {
		return nil, err
	}
	return sub.Result.Data, nil
}

// PageResults fetches every result page of a finished job in page order.
func (s *Service) PageResults(ctx context.Context, jobID string) ([]PageResult, error) {
	result, err := s.client.GetAllResults(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return result.SortedPages(), nil
}

// ValidateResult reports why a result cannot be used, or nil if it is a
// completed result carrying data or pages.
func ValidateResult(r *JobResult) error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: result is nil", ErrIncompleteResult)
	case r.Status != StatusCompleted:
		return fmt.Errorf("%w: status is %s", ErrIncompleteResult, r.Status)
	case r.ErrorMessage != "":
		return fmt.Errorf("%w: %s", ErrIncompleteResult, r.ErrorMessage)
	case len(r.Data) == 0 && len(r.Pages) == 0:
		return fmt.Errorf("%w: no data or pages", ErrIncompleteResult)
	}
	return nil
}

// IsJobFailure reports whether err means the remote job itself failed, as
// opposed to the local wait timing out or the transport failing.
func IsJobFailure(err error) bool {
	var failed *JobFailedError
	return errors.As(err, &failed)
}
