package ocr

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of an OCR job as reported by the service.
// Unknown values returned by the API are preserved as-is.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// ParseJobStatus normalizes a status string from the wire.
func ParseJobStatus(s string) JobStatus {
	return JobStatus(strings.ToLower(strings.TrimSpace(s)))
}

// UnmarshalJSON normalizes case so "COMPLETED" and "completed" compare equal.
func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseJobStatus(raw)
	return nil
}

// IsTerminal reports whether polling should stop at this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Format selects what the service extracts from a document.
type Format string

const (
	FormatStructured Format = "structured"
	FormatText       Format = "text"
	FormatTables     Format = "tables"
	FormatForms      Format = "forms"
)

// Tier selects the processing tier.
type Tier string

const (
	TierCore       Tier = "core"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// UploadMethod selects how local files reach the service.
type UploadMethod string

const (
	UploadPresigned UploadMethod = "presigned"
	UploadDirect    UploadMethod = "direct"
)

// Payload is a job's result payload: plain text for text output, or a
// structured mapping for schema-based output.
type Payload struct {
	Text string
	Data map[string]any
}

// UnmarshalJSON accepts either a JSON string or a JSON object.
func (p *Payload) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &p.Text)
	}
	return json.Unmarshal(trimmed, &p.Data)
}

// MarshalJSON emits the structured form when present, otherwise the text.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Data != nil {
		return json.Marshal(p.Data)
	}
	return json.Marshal(p.Text)
}

// MarshalYAML mirrors MarshalJSON for CLI output.
func (p Payload) MarshalYAML() (any, error) {
	if p.Data != nil {
		return p.Data, nil
	}
	return p.Text, nil
}

// Job is a read-only snapshot of a remote OCR job.
type Job struct {
	ID           string     `json:"job_id" yaml:"job_id"`
	Status       JobStatus  `json:"status" yaml:"status"`
	Progress     float64    `json:"progress,omitempty" yaml:"progress,omitempty"` // 0-100
	ErrorMessage string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Result       *Payload   `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// ProcessOptions are the per-document processing parameters sent on submission.
type ProcessOptions struct {
	Format        Format `json:"format,omitempty"`
	Tier          Tier   `json:"tier,omitempty"`
	ProjectID     string `json:"project_id,omitempty"`
	SchemaID      string `json:"schema_id,omitempty"`
	InstructionID string `json:"instruction_id,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	WebhookURL    string `json:"webhook_url,omitempty"`
}

func (o ProcessOptions) withDefaults() ProcessOptions {
	if o.Format == "" {
		o.Format = FormatStructured
	}
	if o.Tier == "" {
		o.Tier = TierCore
	}
	return o
}

// UploadResult describes a file handed to the service.
type UploadResult struct {
	JobID       string            `json:"job_id" yaml:"job_id"`
	Method      UploadMethod      `json:"method" yaml:"method"`
	Status      string            `json:"status" yaml:"status"`
	UploadURL   string            `json:"upload_url,omitempty" yaml:"upload_url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	FileName    string            `json:"file_name" yaml:"file_name"`
	FileSize    int64             `json:"file_size" yaml:"file_size"`
	ContentType string            `json:"content_type" yaml:"content_type"`
	PageCount   int               `json:"page_count,omitempty" yaml:"page_count,omitempty"` // PDFs only
}

// Job returns a pending snapshot for the uploaded document.
func (u *UploadResult) Job() *Job {
	return &Job{ID: u.JobID, Status: StatusPending}
}

// PageResult is the extraction output for one page.
type PageResult struct {
	PageNumber     int              `json:"page_number" yaml:"page_number"`
	Text           string           `json:"text,omitempty" yaml:"text,omitempty"`
	Data           map[string]any   `json:"data,omitempty" yaml:"data,omitempty"`
	Tables         []map[string]any `json:"tables,omitempty" yaml:"tables,omitempty"`
	Confidence     *float64         `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	ProcessingTime float64          `json:"processing_time,omitempty" yaml:"processing_time,omitempty"` // seconds
}

// Pagination describes one page of a paginated result listing.
type Pagination struct {
	Page       int `json:"page" yaml:"page"`
	Limit      int `json:"limit" yaml:"limit"`
	Total      int `json:"total" yaml:"total"`
	TotalPages int `json:"total_pages" yaml:"total_pages"`
}

// HasMore reports whether pages after this one exist.
func (p *Pagination) HasMore() bool {
	return p != nil && p.Page < p.TotalPages
}

// JobResult is the output of a finished job.
type JobResult struct {
	JobID          string         `json:"job_id" yaml:"job_id"`
	Status         JobStatus      `json:"status" yaml:"status"`
	Data           map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Pages          []PageResult   `json:"pages,omitempty" yaml:"pages,omitempty"`
	CreditsUsed    int            `json:"credits_used,omitempty" yaml:"credits_used,omitempty"`
	ProcessingTime float64        `json:"processing_time,omitempty" yaml:"processing_time,omitempty"` // seconds
	ErrorMessage   string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	CreatedAt      *time.Time     `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Pagination     *Pagination    `json:"pagination,omitempty" yaml:"pagination,omitempty"`
}

// Text returns the document text: data.text when the service provides it,
// otherwise the page texts joined in page order.
func (r *JobResult) Text() string {
	if r == nil {
		return ""
	}
	if t, ok := r.Data["text"].(string); ok && t != "" {
		return t
	}
	var parts []string
	for _, p := range r.SortedPages() {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// SortedPages returns a copy of the pages ordered by page number.
func (r *JobResult) SortedPages() []PageResult {
	if r == nil || len(r.Pages) == 0 {
		return nil
	}
	pages := make([]PageResult, len(r.Pages))
	copy(pages, r.Pages)
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	return pages
}
