package ocr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewClient(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewClient(Config{APIKey: "  "})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := NewClient(Config{APIKey: "k"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.BaseURL() != DefaultBaseURL {
			t.Errorf("expected default base url, got %s", c.BaseURL())
		}
		if c.maxRetries != DefaultMaxRetries {
			t.Errorf("expected default retries, got %d", c.maxRetries)
		}
		if c.uploadMethod != UploadPresigned {
			t.Errorf("expected presigned upload, got %s", c.uploadMethod)
		}
		if c.RateLimiter() != nil {
			t.Error("expected no limiter by default")
		}
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		c, err := NewClient(Config{APIKey: "k", BaseURL: "http://localhost:8080/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.BaseURL() != "http://localhost:8080" {
			t.Errorf("unexpected base url %s", c.BaseURL())
		}
	})

	t.Run("rejects bad base url", func(t *testing.T) {
		_, err := NewClient(Config{APIKey: "k", BaseURL: "not a url"})
		if !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("expected ErrInvalidOptions, got %v", err)
		}
	})

	t.Run("rejects unknown upload method", func(t *testing.T) {
		_, err := NewClient(Config{APIKey: "k", UploadMethod: "fax"})
		if !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("expected ErrInvalidOptions, got %v", err)
		}
	})

	t.Run("creates limiter when paced", func(t *testing.T) {
		c, err := NewClient(Config{APIKey: "k", RequestsPerMinute: 30})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.RateLimiter() == nil || c.RateLimiter().Status().PerMinute != 30 {
			t.Error("expected limiter with 30 requests per minute")
		}
	})
}

func TestClient_RequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("expected json accept, got %q", got)
		}
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("expected uuid request id, got %q", r.Header.Get("X-Request-ID"))
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "leapocr-go/") {
			t.Errorf("unexpected user agent %q", got)
		}
		if r.URL.Path != "/api/v1/ocr/status/job-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "job-1", "status": "PROCESSING", "progress": 40})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	job, err := c.GetJobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJobStatus failed: %v", err)
	}
	if job.Status != StatusProcessing {
		t.Errorf("expected normalized processing status, got %s", job.Status)
	}
	if job.Progress != 40 {
		t.Errorf("expected progress 40, got %v", job.Progress)
	}
}

func TestClient_Retries(t *testing.T) {
	t.Run("retries GET on server error", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "warming up"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"job_id": "job-1", "status": "completed"})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		job, err := c.GetJobStatus(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if job.Status != StatusCompleted {
			t.Errorf("expected completed, got %s", job.Status)
		}
		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		_, err := c.GetJobStatus(context.Background(), "job-1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindServer {
			t.Fatalf("expected server APIError, got %v", err)
		}
		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
		}
	})

	t.Run("does not retry authentication errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		_, err := c.GetJobStatus(context.Background(), "job-1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindAuthentication {
			t.Fatalf("expected authentication error, got %v", err)
		}
		if atomic.LoadInt32(&calls) != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("does not resend POST on server error", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		_, err := c.ProcessURL(context.Background(), "https://example.com/a.pdf", ProcessOptions{})
		if err == nil {
			t.Fatal("expected error")
		}
		if atomic.LoadInt32(&calls) != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("resends POST on rate limit", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"job_id": "job-9", "status": "pending"})
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		job, err := c.ProcessURL(context.Background(), "https://example.com/a.pdf", ProcessOptions{})
		if err != nil {
			t.Fatalf("expected success after rate limit, got %v", err)
		}
		if job.ID != "job-9" {
			t.Errorf("unexpected job id %s", job.ID)
		}
	})
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.RetryDelayBase = time.Second
		cfg.MaxRetryDelay = time.Second
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetJobStatus(ctx, "job-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestShouldRetry(t *testing.T) {
	server := newAPIError(http.StatusInternalServerError, nil, http.Header{})
	limited := newAPIError(http.StatusTooManyRequests, nil, http.Header{})
	notFound := newAPIError(http.StatusNotFound, nil, http.Header{})

	tests := []struct {
		name   string
		method string
		err    error
		want   bool
	}{
		{"get server", http.MethodGet, server, true},
		{"post server", http.MethodPost, server, false},
		{"post rate limit", http.MethodPost, limited, true},
		{"get not found", http.MethodGet, notFound, false},
		{"put plain error", http.MethodPut, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.method, tt.err); got != tt.want {
				t.Errorf("shouldRetry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://bucket.s3.amazonaws.com/key?X-Amz-Signature=secret")
	if strings.Contains(got, "secret") {
		t.Errorf("query string leaked: %s", got)
	}
}

func TestClient_StorageUploadsSkipRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.RequestsPerMinute = 1
	})
	c.RateLimiter().Pause(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	put := request{method: http.MethodPut, url: server.URL + "/bucket/doc.pdf", body: []byte("%PDF"), anonymous: true}
	if err := c.send(ctx, put, nil); err != nil {
		t.Fatalf("storage upload should not wait on the API limiter: %v", err)
	}
	if got := c.RateLimiter().Status().TotalRequests; got != 0 {
		t.Errorf("storage upload spent %d API tokens", got)
	}

	if _, err := c.GetJobStatus(ctx, "job-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("API calls should still wait on the paused limiter, got %v", err)
	}
}
