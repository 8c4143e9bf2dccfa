package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postern/pkg/logging"
)

// DefaultDiscoveryTimeout bounds a single discovery request.
const DefaultDiscoveryTimeout = 5 * time.Second

// DiscoveryError reports a failed discovery cycle. The previous cache, if
// any, stays in effect until a later attempt succeeds.
type DiscoveryError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool discovery failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("tool discovery failed: %s", e.Message)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

func discoveryErrorf(format string, args ...interface{}) *DiscoveryError {
	return &DiscoveryError{Message: fmt.Sprintf(format, args...)}
}

// Client fetches capability definitions from the backend's discovery
// endpoint.
type Client struct {
	baseURL    string
	path       string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a discovery client for the given backend. A
// non-positive timeout falls back to DefaultDiscoveryTimeout.
func NewClient(baseURL, path string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		path:       path,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// discoveryResponse is the wire shape of the discovery endpoint.
type discoveryResponse struct {
	Tools []json.RawMessage `json:"tools"`
}

// Discover fetches, validates, and normalizes the backend's capability list.
// Validation is all-or-nothing: one malformed entry fails the whole call.
// When token is non-empty it is attached as a bearer header, since discovery
// itself can be gated by the backend.
func (c *Client) Discover(ctx context.Context, token string) ([]Definition, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + c.path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DiscoveryError{Message: "invalid discovery request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, discoveryErrorf("request to %s timed out after %v", url, c.timeout)
		case errors.Is(err, context.Canceled):
			return nil, discoveryErrorf("request to %s aborted", url)
		default:
			return nil, &DiscoveryError{Message: fmt.Sprintf("request to %s failed", url), Err: err}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, discoveryErrorf("HTTP %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DiscoveryError{Message: "failed to read response body", Err: err}
	}

	var parsed discoveryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &DiscoveryError{Message: "Invalid JSON in discovery response", Err: err}
	}
	if len(parsed.Tools) == 0 {
		return nil, discoveryErrorf("No tools returned by %s", url)
	}

	definitions := make([]Definition, 0, len(parsed.Tools))
	for i, raw := range parsed.Tools {
		def, err := parseDefinition(raw)
		if err != nil {
			return nil, &DiscoveryError{Message: fmt.Sprintf("tool at index %d", i), Err: err}
		}
		definitions = append(definitions, *def)
	}

	logging.Debug("Discovery", "Discovered %d tools from %s", len(definitions), url)
	return definitions, nil
}

// parseDefinition validates and normalizes one raw discovery entry.
func parseDefinition(raw json.RawMessage) (*Definition, error) {
	// Decode into a loose map first: the properties-as-empty-array quirk
	// would fail a direct decode into Definition.
	var entry map[string]interface{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("entry is not an object: %w", err)
	}

	name, ok := entry["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid name: must be non-empty string")
	}
	description, ok := entry["description"].(string)
	if !ok || description == "" {
		return nil, fmt.Errorf("invalid description: must be non-empty string")
	}
	rawSchema, present := entry["inputSchema"]
	if !present || rawSchema == nil {
		return nil, fmt.Errorf("invalid inputSchema: must be present")
	}
	schema, ok := rawSchema.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid inputSchema: must be an object")
	}

	normalizeSchema(schema)

	def := &Definition{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
	if title, ok := entry["title"].(string); ok {
		def.Title = title
	}
	if out, ok := entry["outputSchema"].(map[string]interface{}); ok {
		def.OutputSchema = out
	}
	if annotations, ok := entry["annotations"].(map[string]interface{}); ok {
		def.Annotations = parseAnnotations(annotations)
	}
	return def, nil
}

// normalizeSchema rewrites an inputSchema.properties encoded as an empty
// array into an empty object. The backend's serializer emits [] for schemas
// with no declared parameters.
func normalizeSchema(schema map[string]interface{}) {
	if props, ok := schema["properties"].([]interface{}); ok && len(props) == 0 {
		schema["properties"] = map[string]interface{}{}
	}
}

func parseAnnotations(raw map[string]interface{}) *Annotations {
	auth, ok := raw["auth"].(map[string]interface{})
	if !ok {
		return &Annotations{}
	}

	meta := &AuthMetadata{}
	if level, ok := auth["level"].(string); ok {
		meta.Level = AuthLevel(level)
	}
	if scopes, ok := auth["scopes"].([]interface{}); ok {
		for _, s := range scopes {
			if scope, ok := s.(string); ok {
				meta.Scopes = append(meta.Scopes, scope)
			}
		}
	}
	return &Annotations{Auth: meta}
}
