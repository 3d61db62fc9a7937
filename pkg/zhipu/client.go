// Package zhipu is a minimal client for the ZhipuAI OpenAI-compatible batch
// API: file upload, batch creation, status retrieval, and output download.
package zhipu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/classify-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

	// BatchEndpoint is the chat-completions endpoint every batch targets.
	BatchEndpoint = "/v4/chat/completions"
)

// Client defines the batch API operations used by the orchestrator.
type Client interface {
	// UploadFile uploads a JSONL payload with purpose=batch and returns the
	// remote file ID.
	UploadFile(ctx context.Context, filename string, r io.Reader) (string, error)
	// CreateBatch creates a batch job over a previously uploaded input file.
	CreateBatch(ctx context.Context, inputFileID string) (*Batch, error)
	// GetBatch retrieves the current state of a batch job.
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	// FileContent downloads the raw content of a file (batch output).
	FileContent(ctx context.Context, fileID string) ([]byte, error)
	// DeleteFile removes a remote file.
	DeleteFile(ctx context.Context, fileID string) error
}

// Batch is the provider's view of a batch job.
type Batch struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	InputFileID  string        `json:"input_file_id"`
	OutputFileID string        `json:"output_file_id,omitempty"`
	ErrorFileID  string        `json:"error_file_id,omitempty"`
	Counts       RequestCounts `json:"request_counts"`
}

// RequestCounts reports per-item progress within a batch.
type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type file struct {
	ID string `json:"id"`
}

type createBatchRequest struct {
	InputFileID      string `json:"input_file_id"`
	Endpoint         string `json:"endpoint"`
	CompletionWindow string `json:"completion_window,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default client-side throttle (2 req/s).
// A non-positive rps disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a batch API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: rate.NewLimiter(2, 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) UploadFile(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "batch"); err != nil {
		return "", eris.Wrap(err, "zhipu: write purpose field")
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", eris.Wrap(err, "zhipu: create form file")
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", eris.Wrap(err, "zhipu: copy payload")
	}
	if err := mw.Close(); err != nil {
		return "", eris.Wrap(err, "zhipu: close multipart writer")
	}

	respBody, err := c.do(ctx, http.MethodPost, "/files", &body, mw.FormDataContentType())
	if err != nil {
		return "", err
	}

	var f file
	if err := json.Unmarshal(respBody, &f); err != nil {
		return "", eris.Wrap(err, "zhipu: unmarshal file")
	}
	if f.ID == "" {
		return "", eris.New("zhipu: upload returned empty file id")
	}
	return f.ID, nil
}

func (c *httpClient) CreateBatch(ctx context.Context, inputFileID string) (*Batch, error) {
	payload, err := json.Marshal(createBatchRequest{
		InputFileID: inputFileID,
		Endpoint:    BatchEndpoint,
	})
	if err != nil {
		return nil, eris.Wrap(err, "zhipu: marshal create batch")
	}

	respBody, err := c.do(ctx, http.MethodPost, "/batches", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var b Batch
	if err := json.Unmarshal(respBody, &b); err != nil {
		return nil, eris.Wrap(err, "zhipu: unmarshal batch")
	}
	return &b, nil
}

func (c *httpClient) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/batches/"+batchID, nil, "")
	if err != nil {
		return nil, err
	}

	var b Batch
	if err := json.Unmarshal(respBody, &b); err != nil {
		return nil, eris.Wrap(err, "zhipu: unmarshal batch")
	}
	return &b, nil
}

func (c *httpClient) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/files/"+fileID+"/content", nil, "")
}

func (c *httpClient) DeleteFile(ctx context.Context, fileID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/files/"+fileID, nil, "")
	return err
}

// do performs one throttled HTTP call and returns the response body.
// Transient HTTP statuses come back wrapped as resilience.TransientError so
// callers can retry them.
func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "zhipu: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, eris.Wrap(err, "zhipu: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("zhipu: %s %s", method, path))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "zhipu: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := eris.Errorf("zhipu: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(respBody, 500))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	return respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
