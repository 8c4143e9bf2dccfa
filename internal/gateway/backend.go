package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrBackendUnauthorized is returned when the backend rejects the bearer
// token with a 401. The dispatcher uses it to trigger a reactive refresh.
var ErrBackendUnauthorized = errors.New("backend rejected bearer token")

// DefaultInvokeTimeout bounds a single backend invocation.
const DefaultInvokeTimeout = 30 * time.Second

// Invoker proxies capability invocations to the content backend.
type Invoker struct {
	baseURL    string
	path       string
	timeout    time.Duration
	httpClient *http.Client
}

// NewInvoker creates an invoker for the given backend. A non-positive
// timeout falls back to DefaultInvokeTimeout.
func NewInvoker(baseURL, invokePath string, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	return &Invoker{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		path:       invokePath,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type invokeRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Invoke calls the named capability on the backend and returns the raw JSON
// response body. A 401 maps to ErrBackendUnauthorized; other non-2xx
// statuses surface the status code and as much of the error body as the
// backend provided.
func (i *Invoker) Invoke(ctx context.Context, name string, args map[string]interface{}, token string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if args == nil {
		args = map[string]interface{}{}
	}
	payload, err := json.Marshal(invokeRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	url := i.baseURL + i.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("request timed out after %v", i.timeout)
		case errors.Is(err, context.Canceled):
			return nil, fmt.Errorf("request aborted")
		default:
			return nil, fmt.Errorf("backend request failed: %w", err)
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrBackendUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		if msg := errorMessageFromBody(body); msg != "" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("Invalid JSON in backend response")
	}
	return json.RawMessage(body), nil
}

// errorMessageFromBody pulls a human-readable message out of a JSON error
// body, if the backend sent one.
func errorMessageFromBody(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return parsed.Message
}
