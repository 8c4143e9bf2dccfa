package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discoveryServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "/api/tools", 2*time.Second)
}

func TestDiscoverParsesTools(t *testing.T) {
	var gotAuth string
	_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tools" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tools":[
			{"name":"search","description":"Search content","inputSchema":{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}},
			{"name":"publish","title":"Publish","description":"Publish content","inputSchema":{"type":"object","properties":{}},"annotations":{"auth":{"level":"required","scopes":["content:write"]}}}
		]}`))
	})

	defs, err := client.Discover(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(defs))
	}
	if defs[0].Name != "search" || defs[1].Name != "publish" {
		t.Errorf("unexpected names: %s, %s", defs[0].Name, defs[1].Name)
	}
	if defs[1].Title != "Publish" {
		t.Errorf("expected title Publish, got %q", defs[1].Title)
	}
	meta := defs[1].AuthMeta()
	if meta == nil || meta.Level != AuthLevelRequired || len(meta.Scopes) != 1 || meta.Scopes[0] != "content:write" {
		t.Errorf("unexpected auth metadata: %+v", meta)
	}
}

func TestDiscoverOmitsAuthHeaderWithoutToken(t *testing.T) {
	_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		w.Write([]byte(`{"tools":[{"name":"a","description":"b","inputSchema":{"type":"object"}}]}`))
	})
	if _, err := client.Discover(context.Background(), ""); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
}

func TestDiscoverNormalizesEmptyArrayProperties(t *testing.T) {
	_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tools":[{"name":"ping","description":"Ping","inputSchema":{"type":"object","properties":[]}}]}`))
	})

	defs, err := client.Discover(context.Background(), "")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	props, ok := defs[0].InputSchema["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties not normalized to object: %T", defs[0].InputSchema["properties"])
	}
	if len(props) != 0 {
		t.Errorf("expected empty properties object, got %v", props)
	}
}

func TestDiscoverHTTPError(t *testing.T) {
	_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.Discover(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("expected HTTP 502 error, got %v", err)
	}
}

func TestDiscoverInvalidJSON(t *testing.T) {
	_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tools": [`))
	})
	_, err := client.Discover(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "Invalid JSON") {
		t.Errorf("expected invalid JSON error, got %v", err)
	}
}

func TestDiscoverEmptyToolList(t *testing.T) {
	for _, body := range []string{`{"tools":[]}`, `{}`} {
		_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		_, err := client.Discover(context.Background(), "")
		if err == nil || !strings.Contains(err.Error(), "No tools returned") {
			t.Errorf("body %s: expected no-tools error, got %v", body, err)
		}
	}
}

func TestDiscoverTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "/api/tools", 50*time.Millisecond)
	_, err := client.Discover(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestDiscoverAborted(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient(srv.URL, "/api/tools", 5*time.Second)
	_, err := client.Discover(ctx, "")
	if err == nil || !strings.Contains(err.Error(), "aborted") {
		t.Errorf("expected aborted error, got %v", err)
	}
}

func TestDiscoverValidationAllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing name",
			body:    `{"tools":[{"description":"d","inputSchema":{"type":"object"}}]}`,
			wantErr: "invalid name: must be non-empty string",
		},
		{
			name:    "empty name",
			body:    `{"tools":[{"name":"","description":"d","inputSchema":{"type":"object"}}]}`,
			wantErr: "invalid name: must be non-empty string",
		},
		{
			name:    "missing description",
			body:    `{"tools":[{"name":"a","inputSchema":{"type":"object"}}]}`,
			wantErr: "invalid description",
		},
		{
			name:    "missing inputSchema",
			body:    `{"tools":[{"name":"a","description":"d"}]}`,
			wantErr: "invalid inputSchema: must be present",
		},
		{
			name:    "inputSchema not object",
			body:    `{"tools":[{"name":"a","description":"d","inputSchema":"nope"}]}`,
			wantErr: "invalid inputSchema: must be an object",
		},
		{
			name:    "one bad entry fails the batch",
			body:    `{"tools":[{"name":"good","description":"d","inputSchema":{"type":"object"}},{"name":"","description":"d","inputSchema":{"type":"object"}}]}`,
			wantErr: "invalid name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, client := discoveryServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			_, err := client.Discover(context.Background(), "")
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
