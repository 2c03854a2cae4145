package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/leapocr/ocr"
)

// Config holds leapocr configuration.
// Stored at: ./config.yaml or ~/.leapocr/config.yaml
type Config struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds    float64       `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per HTTP request
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"` // 0 = unlimited
	UploadMethod      string        `mapstructure:"upload_method" yaml:"upload_method"`             // "presigned" or "direct"
	Processing        ProcessingCfg `mapstructure:"processing" yaml:"processing"`
	Poll              PollCfg       `mapstructure:"poll" yaml:"poll"`
	Batch             BatchCfg      `mapstructure:"batch" yaml:"batch"`
}

// ProcessingCfg holds default submission parameters.
type ProcessingCfg struct {
	Format        string `mapstructure:"format" yaml:"format"`
	Tier          string `mapstructure:"tier" yaml:"tier"`
	ProjectID     string `mapstructure:"project_id" yaml:"project_id,omitempty"`
	SchemaID      string `mapstructure:"schema_id" yaml:"schema_id,omitempty"`
	InstructionID string `mapstructure:"instruction_id" yaml:"instruction_id,omitempty"`
	CategoryID    string `mapstructure:"category_id" yaml:"category_id,omitempty"`
	WebhookURL    string `mapstructure:"webhook_url" yaml:"webhook_url,omitempty"`
}

// PollCfg configures waiting for jobs.
type PollCfg struct {
	IntervalSeconds    float64 `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	MaxIntervalSeconds float64 `mapstructure:"max_interval_seconds" yaml:"max_interval_seconds"`
	BackoffMultiplier  float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	TimeoutSeconds     float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Jitter             bool    `mapstructure:"jitter" yaml:"jitter"`
	MaxRetries         int     `mapstructure:"max_retries" yaml:"max_retries"` // consecutive status fetch failures
}

// BatchCfg configures batch processing.
type BatchCfg struct {
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	poll := ocr.DefaultPollOptions()
	return &Config{
		APIKey:            "${LEAPOCR_API_KEY}",
		BaseURL:           ocr.DefaultBaseURL,
		TimeoutSeconds:    ocr.DefaultTimeout.Seconds(),
		MaxRetries:        ocr.DefaultMaxRetries,
		RequestsPerMinute: 0,
		UploadMethod:      string(ocr.UploadPresigned),
		Processing: ProcessingCfg{
			Format: string(ocr.FormatStructured),
			Tier:   string(ocr.TierCore),
		},
		Poll: PollCfg{
			IntervalSeconds:    poll.Interval.Seconds(),
			MaxIntervalSeconds: poll.MaxInterval.Seconds(),
			BackoffMultiplier:  poll.BackoffMultiplier,
			TimeoutSeconds:     poll.Timeout.Seconds(),
			Jitter:             poll.Jitter,
			MaxRetries:         poll.MaxRetries,
		},
		Batch: BatchCfg{
			MaxConcurrent: ocr.DefaultBatchConcurrency,
		},
	}
}

// Validate checks values the client and poller would otherwise reject later.
func (c *Config) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %g", c.TimeoutSeconds)
	}
	switch ocr.UploadMethod(c.UploadMethod) {
	case "", ocr.UploadPresigned, ocr.UploadDirect:
	default:
		return fmt.Errorf("upload_method must be %q or %q, got %q", ocr.UploadPresigned, ocr.UploadDirect, c.UploadMethod)
	}
	if c.Batch.MaxConcurrent < 0 {
		return fmt.Errorf("batch.max_concurrent must not be negative, got %d", c.Batch.MaxConcurrent)
	}
	if err := c.PollOptions().WithDefaults().Validate(); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return nil
}

// ClientConfig converts the config into ocr.Config, resolving ${ENV_VAR}
// references in the API key.
func (c *Config) ClientConfig(logger *slog.Logger) ocr.Config {
	return ocr.Config{
		APIKey:            ResolveEnvVars(c.APIKey),
		BaseURL:           c.BaseURL,
		Timeout:           seconds(c.TimeoutSeconds),
		MaxRetries:        c.MaxRetries,
		UserAgent:         c.UserAgent,
		RequestsPerMinute: c.RequestsPerMinute,
		UploadMethod:      ocr.UploadMethod(c.UploadMethod),
		Logger:            logger,
	}
}

// PollOptions converts the poll section into ocr.PollOptions.
func (c *Config) PollOptions() ocr.PollOptions {
	return ocr.PollOptions{
		Interval:          seconds(c.Poll.IntervalSeconds),
		MaxInterval:       seconds(c.Poll.MaxIntervalSeconds),
		BackoffMultiplier: c.Poll.BackoffMultiplier,
		Timeout:           seconds(c.Poll.TimeoutSeconds),
		Jitter:            c.Poll.Jitter,
		MaxRetries:        c.Poll.MaxRetries,
	}
}

// ProcessOptions converts the processing section into ocr.ProcessOptions.
func (c *Config) ProcessOptions() ocr.ProcessOptions {
	return ocr.ProcessOptions{
		Format:        ocr.Format(c.Processing.Format),
		Tier:          ocr.Tier(c.Processing.Tier),
		ProjectID:     c.Processing.ProjectID,
		SchemaID:      c.Processing.SchemaID,
		InstructionID: c.Processing.InstructionID,
		CategoryID:    c.Processing.CategoryID,
		WebhookURL:    c.Processing.WebhookURL,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
