package ocr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultResultPageLimit is the page size used by GetAllResults.
const DefaultResultPageLimit = 100

// ResultPage selects one page of a job's results. Zero values let the
// service choose.
type ResultPage struct {
	Page  int
	Limit int
}

func (p ResultPage) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// GetJobStatus fetches the current status snapshot of a job. Its signature
// matches StatusFetcher.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var job Job
	if err := c.doJSON(ctx, http.MethodGet, "/status/"+url.PathEscape(jobID), nil, nil, &job); err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}

// GetJobResult fetches one page of a job's results.
func (c *Client) GetJobResult(ctx context.Context, jobID string, page ResultPage) (*JobResult, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	var result JobResult
	if err := c.doJSON(ctx, http.MethodGet, "/result/"+url.PathEscape(jobID), page.query(), nil, &result); err != nil {
		return nil, fmt.Errorf("get job result: %w", err)
	}
	if result.JobID == "" {
		result.JobID = jobID
	}
	return &result, nil
}

// GetAllResults walks every result page and merges the pages into one result.
func (c *Client) GetAllResults(ctx context.Context, jobID string) (*JobResult, error) {
	merged, err := c.GetJobResult(ctx, jobID, ResultPage{Page: 1, Limit: DefaultResultPageLimit})
	if err != nil {
		return nil, err
	}

	current := merged.Pagination
	for current.HasMore() {
		next, err := c.GetJobResult(ctx, jobID, ResultPage{Page: current.Page + 1, Limit: current.Limit})
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", current.Page+1, err)
		}
		if len(next.Pages) == 0 {
			c.logger.Warn("result page was empty, stopping", "job_id", jobID, "page", current.Page+1)
			break
		}
		merged.Pages = append(merged.Pages, next.Pages...)
		if next.Pagination == nil || next.Pagination.Page <= current.Page {
			break
		}
		current = next.Pagination
	}

	if merged.Pagination != nil {
		merged.Pagination = &Pagination{
			Page:       1,
			Limit:      len(merged.Pages),
			Total:      merged.Pagination.Total,
			TotalPages: 1,
		}
	}
	return merged, nil
}

// WaitUntilDone polls the job's status until it reaches a terminal state.
// See the package-level WaitUntilDone for the error contract.
func (c *Client) WaitUntilDone(ctx context.Context, jobID string, opts PollOptions) (*Job, error) {
	return newPoller(c.logger).wait(ctx, jobID, opts, c.GetJobStatus)
}

// WaitForResult waits for the job to complete and returns all of its results.
func (c *Client) WaitForResult(ctx context.Context, jobID string, opts PollOptions) (*JobResult, error) {
	job, err := c.WaitUntilDone(ctx, jobID, opts)
	if err != nil {
		return nil, err
	}
	return c.GetAllResults(ctx, job.ID)
}
