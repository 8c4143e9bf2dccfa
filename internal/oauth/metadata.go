package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"postern/pkg/logging"
)

// metadataCacheTTL is the time-to-live for the cached discovery document.
// After this duration, metadata is re-fetched from the issuer. A 30-minute
// TTL balances caching efficiency with timely endpoint rotation updates.
const metadataCacheTTL = 30 * time.Minute

// MetadataCache fetches and caches the authorization server's discovery
// document. The cache holds a single document for the configured issuer and
// is replaced wholesale on expiry; readers never observe a partially updated
// document. Fetch failures propagate to the caller with no stale-on-error
// fallback.
type MetadataCache struct {
	issuer     string
	httpClient *http.Client

	mu        sync.RWMutex
	metadata  *Metadata
	fetchedAt time.Time

	// singleflight group to deduplicate concurrent fetches
	group singleflight.Group
}

// NewMetadataCache creates a metadata cache for the given issuer. The
// document is fetched lazily on first use.
func NewMetadataCache(issuer string, httpClient *http.Client) *MetadataCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &MetadataCache{
		issuer:     issuer,
		httpClient: httpClient,
	}
}

// Issuer returns the configured issuer URL.
func (c *MetadataCache) Issuer() string {
	return c.issuer
}

// Fetch returns the discovery document, fetching it from the issuer's
// well-known endpoint if the cached copy is absent or expired. Concurrent
// callers share a single in-flight fetch.
func (c *MetadataCache) Fetch(ctx context.Context) (*Metadata, error) {
	c.mu.RLock()
	if c.metadata != nil && time.Since(c.fetchedAt) < metadataCacheTTL {
		metadata := c.metadata
		c.mu.RUnlock()
		return metadata, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do("metadata", func() (interface{}, error) {
		// Double-check the cache after winning the singleflight slot.
		c.mu.RLock()
		if c.metadata != nil && time.Since(c.fetchedAt) < metadataCacheTTL {
			metadata := c.metadata
			c.mu.RUnlock()
			return metadata, nil
		}
		c.mu.RUnlock()

		return c.doFetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Metadata), nil
}

// doFetch performs the discovery HTTP fetch and replaces the cache.
func (c *MetadataCache) doFetch(ctx context.Context) (*Metadata, error) {
	wellKnownURL := strings.TrimSuffix(c.issuer, "/") + "/.well-known/oauth-authorization-server"

	resp, err := c.get(ctx, wellKnownURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		// Fall back to OpenID Connect discovery.
		wellKnownURL = strings.TrimSuffix(c.issuer, "/") + "/.well-known/openid-configuration"
		resp, err = c.get(ctx, wellKnownURL)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch OAuth metadata: status=%d", resp.StatusCode)
		}
	}
	defer resp.Body.Close()

	var metadata Metadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse OAuth metadata: %w", err)
	}

	c.mu.Lock()
	c.metadata = &metadata
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	logging.Debug("OAuth", "Fetched OAuth metadata for issuer=%s (token=%s, jwks=%s)",
		c.issuer, metadata.TokenEndpoint, metadata.JwksURI)

	return &metadata, nil
}

func (c *MetadataCache) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}
