package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/leapocr/version"
)

const (
	DefaultBaseURL        = "https://api.leapocr.com"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelayBase = time.Second
	DefaultMaxRetryDelay  = 60 * time.Second

	apiPrefix = "/api/v1/ocr"
)

// Config holds configuration for the LeapOCR client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration // per HTTP request

	// Request-level retries for network errors, 429 and 5xx responses.
	MaxRetries     int
	RetryDelayBase time.Duration
	MaxRetryDelay  time.Duration

	UserAgent         string
	RequestsPerMinute int          // 0 disables client-side pacing
	UploadMethod      UploadMethod // default: presigned

	Logger     *slog.Logger
	HTTPClient *http.Client // overrides Timeout when set
}

// Client calls the LeapOCR REST API. It is safe for concurrent use.
type Client struct {
	apiKey       string
	baseURL      string
	userAgent    string
	maxRetries   int
	retryDelay   time.Duration
	maxDelay     time.Duration
	uploadMethod UploadMethod
	limiter      *RateLimiter
	logger       *slog.Logger
	http         *http.Client
}

// NewClient creates a new LeapOCR client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base URL %q: %v", ErrInvalidOptions, cfg.BaseURL, err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayBase == 0 {
		cfg.RetryDelayBase = DefaultRetryDelayBase
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "leapocr-go/" + version.GitRelease
	}
	switch cfg.UploadMethod {
	case "":
		cfg.UploadMethod = UploadPresigned
	case UploadPresigned, UploadDirect:
	default:
		return nil, fmt.Errorf("%w: unknown upload method %q", ErrInvalidOptions, cfg.UploadMethod)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:    cfg.UserAgent,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelayBase,
		maxDelay:     cfg.MaxRetryDelay,
		uploadMethod: cfg.UploadMethod,
		logger:       cfg.Logger,
		http:         httpClient,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = NewRateLimiter(cfg.RequestsPerMinute)
	}
	return c, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimiter returns the client-side limiter, or nil when pacing is disabled.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// request describes one logical API call, possibly sent several times.
type request struct {
	method      string
	url         string
	body        []byte
	contentType string
	header      map[string]string
	anonymous   bool // presigned storage URLs must not see our API key
}

// doJSON sends a JSON request to an API path and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	req := request{
		method: method,
		url:    c.baseURL + apiPrefix + path,
	}
	if len(query) > 0 {
		req.url += "?" + query.Encode()
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		req.body = body
		req.contentType = "application/json"
	}
	return c.send(ctx, req, out)
}

// send performs req with rate limiting and retries.
func (c *Client) send(ctx context.Context, req request, out any) error {
	err := retry.Do(
		func() error {
			return c.sendOnce(ctx, req, out)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(c.maxDelay),
		retry.MaxJitter(max(c.retryDelay/2, 1)),
		retry.DelayType(retryDelay),
		retry.RetryIf(func(err error) bool {
			return shouldRetry(req.method, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying request",
				"method", req.method, "url", redactURL(req.url), "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return ctxErr
	}
	return err
}

// sendOnce performs a single HTTP exchange.
func (c *Client) sendOnce(ctx context.Context, r request, out any) error {
	// Storage uploads are not API calls and do not spend API tokens.
	paced := c.limiter != nil && !r.anonymous
	if paced {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if !r.anonymous {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	req.Header.Set("User-Agent", c.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := newAPIError(resp.StatusCode, respBody, resp.Header)
		if apiErr.Kind == KindRateLimit && paced {
			c.limiter.Pause(apiErr.RetryAfter)
		}
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// shouldRetry decides whether a failed attempt is sent again. Submissions
// (POST) are only resent when the service refused them with 429, since a 5xx
// or dropped connection may hide an accepted job.
func shouldRetry(method string, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == KindRateLimit {
			return true
		}
		return apiErr.Kind == KindServer && method != http.MethodPost
	}
	if method == http.MethodPost {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// retryDelay honours Retry-After and otherwise backs off exponentially with jitter.
func retryDelay(n uint, err error, cfg *retry.Config) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)(n, err, cfg)
}

// redactURL drops the query string, which for presigned URLs carries credentials.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
