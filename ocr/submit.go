package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const contentTypePDF = "application/pdf"

type urlUploadRequest struct {
	URL string `json:"url"`
	ProcessOptions
}

type presignedUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
	ProcessOptions
}

type presignedUploadResponse struct {
	JobID     string            `json:"job_id"`
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers"`
}

type submitResponse struct {
	JobID     string     `json:"job_id"`
	Status    JobStatus  `json:"status"`
	CreatedAt *time.Time `json:"created_at"`
}

func (r submitResponse) job() *Job {
	status := r.Status
	if status == "" {
		status = StatusPending
	}
	return &Job{ID: r.JobID, Status: status, CreatedAt: r.CreatedAt}
}

// ProcessURL submits a publicly reachable document for OCR.
func (c *Client) ProcessURL(ctx context.Context, docURL string, opts ProcessOptions) (*Job, error) {
	u, err := url.Parse(docURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: document URL must be an absolute http(s) URL, got %q", ErrInvalidOptions, docURL)
	}

	var resp submitResponse
	req := urlUploadRequest{URL: docURL, ProcessOptions: opts.withDefaults()}
	if err := c.doJSON(ctx, http.MethodPost, "/uploads/url", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("process url: %w", err)
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("process url: response carried no job_id")
	}

	c.logger.Info("submitted document url", "job_id", resp.JobID, "format", req.Format)
	return resp.job(), nil
}

// Upload sends a document with the client's configured upload method.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, opts ProcessOptions) (*UploadResult, error) {
	if c.uploadMethod == UploadDirect {
		return c.UploadFileDirect(ctx, name, r, opts)
	}
	return c.UploadFile(ctx, name, r, opts)
}

// UploadPath opens a local file and uploads it with the configured method.
func (c *Client) UploadPath(ctx context.Context, path string, opts ProcessOptions) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return c.Upload(ctx, filepath.Base(path), f, opts)
}

// UploadFile uploads a document through a presigned URL: the service issues
// a job and a storage URL, then the bytes are PUT to that URL.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, opts ProcessOptions) (*UploadResult, error) {
	doc, err := c.readDocument(name, r)
	if err != nil {
		return nil, err
	}

	var presigned presignedUploadResponse
	initiate := presignedUploadRequest{
		FileName:       doc.name,
		ContentType:    doc.contentType,
		FileSize:       int64(len(doc.data)),
		ProcessOptions: opts.withDefaults(),
	}
	if err := c.doJSON(ctx, http.MethodPost, "/uploads/presigned", nil, initiate, &presigned); err != nil {
		return nil, fmt.Errorf("initiate upload: %w", err)
	}
	if presigned.JobID == "" || presigned.UploadURL == "" {
		return nil, fmt.Errorf("initiate upload: response missing job_id or upload_url")
	}

	header := make(map[string]string, len(presigned.Headers)+1)
	header["Content-Type"] = doc.contentType
	for k, v := range presigned.Headers {
		header[k] = v
	}
	put := request{
		method:    http.MethodPut,
		url:       presigned.UploadURL,
		body:      doc.data,
		header:    header,
		anonymous: true,
	}
	if err := c.send(ctx, put, nil); err != nil {
		return nil, fmt.Errorf("upload %s: %w", doc.name, err)
	}

	c.logger.Info("uploaded document",
		"job_id", presigned.JobID, "file", doc.name, "bytes", len(doc.data), "pages", doc.pages)

	return &UploadResult{
		JobID:       presigned.JobID,
		Method:      UploadPresigned,
		Status:      "uploaded",
		UploadURL:   presigned.UploadURL,
		Headers:     presigned.Headers,
		FileName:    doc.name,
		FileSize:    int64(len(doc.data)),
		ContentType: doc.contentType,
		PageCount:   doc.pages,
	}, nil
}

// UploadFileDirect posts the document to the API as multipart form data.
func (c *Client) UploadFileDirect(ctx context.Context, name string, r io.Reader, opts ProcessOptions) (*UploadResult, error) {
	doc, err := c.readDocument(name, r)
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartBody(doc, opts.withDefaults())
	if err != nil {
		return nil, fmt.Errorf("direct upload: %w", err)
	}

	var resp submitResponse
	req := request{
		method:      http.MethodPost,
		url:         c.baseURL + apiPrefix + "/uploads/direct",
		body:        body,
		contentType: contentType,
	}
	if err := c.send(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("direct upload: %w", err)
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("direct upload: response carried no job_id")
	}

	c.logger.Info("uploaded document",
		"job_id", resp.JobID, "file", doc.name, "bytes", len(doc.data), "pages", doc.pages, "method", UploadDirect)

	return &UploadResult{
		JobID:       resp.JobID,
		Method:      UploadDirect,
		Status:      "uploaded",
		FileName:    doc.name,
		FileSize:    int64(len(doc.data)),
		ContentType: doc.contentType,
		PageCount:   doc.pages,
	}, nil
}

type document struct {
	name        string
	data        []byte
	contentType string
	pages       int
}

// readDocument buffers an upload so it can be resent on retry.
func (c *Client) readDocument(name string, r io.Reader) (*document, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidOptions)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidOptions, name)
	}

	doc := &document{
		name:        name,
		data:        data,
		contentType: detectContentType(name, data),
	}
	if doc.contentType == contentTypePDF {
		pages, err := CountPDFPages(data)
		if err != nil {
			// The service does its own validation; a count is informational.
			c.logger.Warn("could not count PDF pages", "file", name, "error", err)
		}
		doc.pages = pages
	}
	return doc, nil
}

// CountPDFPages returns the number of pages in a PDF document.
func CountPDFPages(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return n, nil
}

// detectContentType prefers the file extension and falls back to sniffing.
func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
		return ct
	}
	ct := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

func multipartBody(doc *document, opts ProcessOptions) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"format", string(opts.Format)},
		{"tier", string(opts.Tier)},
		{"project_id", opts.ProjectID},
		{"schema_id", opts.SchemaID},
		{"instruction_id", opts.InstructionID},
		{"category_id", opts.CategoryID},
		{"webhook_url", opts.WebhookURL},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreatePart(fileHeader(doc))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func fileHeader(doc *document) textproto.MIMEHeader {
	disposition := mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": doc.name,
	})
	return textproto.MIMEHeader{
		"Content-Disposition": {disposition},
		"Content-Type":        {doc.contentType},
	}
}
