package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/scanline/internal/session"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

// HTTPClient implements ScannerClient using the daemon's HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ ScannerClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Start(ctx context.Context) (*session.Status, error) {
	var st session.Status
	if err := c.doJSON(ctx, http.MethodPost, "/v1/session/start", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) Stop(ctx context.Context) (*session.Status, error) {
	var st session.Status
	if err := c.doJSON(ctx, http.MethodPost, "/v1/session/stop", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) SetTorch(ctx context.Context, enabled bool) (*TorchState, error) {
	var ts TorchState
	body := map[string]bool{"enabled": enabled}
	if err := c.doJSON(ctx, http.MethodPut, "/v1/torch", body, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (c *HTTPClient) ToggleTorch(ctx context.Context) (*TorchState, error) {
	var ts TorchState
	if err := c.doJSON(ctx, http.MethodPost, "/v1/torch/toggle", nil, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (c *HTTPClient) FocusAt(ctx context.Context, x, y float64) error {
	body := map[string]float64{"x": x, "y": y}
	return c.doJSON(ctx, http.MethodPost, "/v1/focus", body, nil)
}

func (c *HTTPClient) Status(ctx context.Context) (*session.Status, error) {
	var st session.Status
	if err := c.doJSON(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*stats.Snapshot, error) {
	var snap stats.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// StreamEvents reads the SSE diagnostics stream and calls fn for each event
// until ctx is cancelled, the server closes the stream, or fn returns an error.
func (c *HTTPClient) StreamEvents(ctx context.Context, topics []string, fn func(Event) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, resp.Body)
	}

	var evt Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if evt.Topic != "" || len(evt.Data) > 0 {
				if err := fn(evt); err != nil {
					return err
				}
			}
			evt = Event{}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "id:"):
			evt.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			evt.Data = append(evt.Data, strings.TrimPrefix(line, "data:")...)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiError(code int, body io.Reader) error {
	data, _ := io.ReadAll(body)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: code, Message: errResp.Error}
	}
	return &APIError{StatusCode: code, Message: strings.TrimSpace(string(data))}
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, resp.Body)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
