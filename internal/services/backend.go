package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
)

// backendClient is the shared plumbing for the venue backend's REST API.
type backendClient struct {
	baseURL    string
	httpClient *http.Client
}

func newBackendClient(baseURL string, client *http.Client) backendClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return backendClient{baseURL: baseURL, httpClient: client}
}

// backendError carries the backend's error payload when it provides one.
type backendError struct {
	StatusCode int
	Message    string
}

func (e *backendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend status %d", e.StatusCode)
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into result when non-nil. Non-2xx responses become *backendError
// with the body's message field when present.
func (b backendClient) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		be := &backendError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			be.Message = payload.Message
		}
		return be
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
