// Package modelclient holds the transport shared by the model backends: an
// HTTP client for model servers and a subprocess runner for model CLIs.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	ContentTypeWAV    = "audio/wav"
)

// ErrEmptyResponse is returned when a model server answers 200 with no body.
var ErrEmptyResponse = errors.New("model server returned an empty body")

// ErrBadModelOutput marks model output that could not be decoded. The decode
// cause is kept as text only, so callers cannot mistake it for a bad upload.
var ErrBadModelOutput = errors.New("model returned unusable audio")

// BadOutput wraps a decode failure of model output with ErrBadModelOutput.
func BadOutput(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrBadModelOutput, err)
}

// StatusError is a non-200 answer from a model server.
type StatusError struct {
	Status    string
	Code      int
	Detail    string
	ErrorCode string
}

func (e *StatusError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("model server error (%s): %s (code: %s)", e.Status, e.Detail, e.ErrorCode)
	}
	return fmt.Sprintf("model server error (%s): %s", e.Status, e.Detail)
}

// HTTPClient talks to one model server.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient creates a client for baseURL ("http://host:port"). The
// timeout applies to each request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Ping issues GET path and expects 200.
func (c *HTTPClient) Ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}
	return nil
}

// PostJSON sends payload as JSON to path and returns the response body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, payload any, accept string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	if accept != "" {
		req.Header.Set(headerAccept, accept)
	}

	return c.do(req)
}

// FormFile is a file part of a multipart request, read from Path.
type FormFile struct {
	Field string
	Path  string
}

// PostMultipart sends files and fields as multipart/form-data to path.
func (c *HTTPClient) PostMultipart(ctx context.Context, path string, files []FormFile, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range files {
		if err := addFile(writer, f); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerContentType, writer.FormDataContentType())

	return c.do(req)
}

func addFile(w *multipart.Writer, f FormFile) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Field, err)
	}
	defer file.Close()

	part, err := w.CreateFormFile(f.Field, filepath.Base(f.Path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file data: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}
	return data, nil
}

// parseErrorResponse decodes {"detail", "error_code"} or {"error"} bodies and
// falls back to the raw body text.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{Status: resp.Status, Code: resp.StatusCode}

	var payload struct {
		Detail    string `json:"detail"`
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Detail != "" || payload.Error != "") {
		se.Detail = payload.Detail
		if se.Detail == "" {
			se.Detail = payload.Error
		}
		se.ErrorCode = payload.ErrorCode
		return se
	}

	se.Detail = strings.TrimSpace(string(body))
	return se
}
