package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"postern/pkg/logging"
)

// TokenClient talks to the authorization server's token and device
// authorization endpoints. Endpoint URLs come from the cached discovery
// document on each call, so an endpoint rotation is picked up as soon as the
// metadata cache refreshes.
type TokenClient struct {
	clientID   string
	metadata   *MetadataCache
	httpClient *http.Client
}

// NewTokenClient creates a token client for the given OAuth client ID.
func NewTokenClient(clientID string, metadata *MetadataCache, httpClient *http.Client) *TokenClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenClient{
		clientID:   clientID,
		metadata:   metadata,
		httpClient: httpClient,
	}
}

// DeviceAuthorization describes a pending device flow: where the user goes
// and what code they enter.
type DeviceAuthorization struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time

	// response is retained for polling.
	response *oauth2.DeviceAuthResponse
}

// config builds the oauth2 configuration from the current discovery document.
func (c *TokenClient) config(ctx context.Context, scopes []string) (*oauth2.Config, error) {
	metadata, err := c.metadata.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OAuth metadata: %w", err)
	}
	if metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("authorization server metadata does not advertise a token_endpoint")
	}
	return &oauth2.Config{
		ClientID: c.clientID,
		Scopes:   scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       metadata.AuthorizationEndpoint,
			TokenURL:      metadata.TokenEndpoint,
			DeviceAuthURL: metadata.DeviceAuthorizationEndpoint,
		},
	}, nil
}

// httpContext injects our HTTP client into the context so the oauth2
// package uses it for token endpoint calls.
func (c *TokenClient) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// StartDeviceFlow initiates a device authorization grant (RFC 8628) and
// returns the verification details to present to the user.
func (c *TokenClient) StartDeviceFlow(ctx context.Context, scopes []string) (*DeviceAuthorization, error) {
	cfg, err := c.config(ctx, scopes)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint.DeviceAuthURL == "" {
		return nil, fmt.Errorf("authorization server does not support the device authorization grant")
	}

	resp, err := cfg.DeviceAuth(c.httpContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("device authorization request failed: %w", err)
	}

	logging.Debug("OAuth", "Started device flow (verification_uri=%s, expires=%s)",
		resp.VerificationURI, resp.Expiry.Format(time.RFC3339))

	return &DeviceAuthorization{
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		ExpiresAt:               resp.Expiry,
		response:                resp,
	}, nil
}

// PollDeviceFlow polls the token endpoint until the user completes the
// device flow, the authorization expires, or the context is cancelled.
func (c *TokenClient) PollDeviceFlow(ctx context.Context, auth *DeviceAuthorization, scopes []string) (*UserTokenRecord, error) {
	cfg, err := c.config(ctx, scopes)
	if err != nil {
		return nil, err
	}

	token, err := cfg.DeviceAccessToken(c.httpContext(ctx), auth.response)
	if err != nil {
		return nil, fmt.Errorf("device flow authorization failed: %w", err)
	}

	return recordFromToken(token, scopes), nil
}

// Refresh exchanges a refresh token for a new access token. The caller is
// responsible for classifying the returned error (see ClassifyRefreshError)
// and updating stored state accordingly.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*UserTokenRecord, error) {
	cfg, err := c.config(ctx, nil)
	if err != nil {
		return nil, err
	}

	// TokenSource with only a refresh token always performs a
	// grant_type=refresh_token call against the token endpoint.
	src := cfg.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, err
	}

	record := recordFromToken(token, nil)
	// Preserve the old refresh token unless the response rotated it.
	if record.RefreshToken == "" {
		record.RefreshToken = refreshToken
	}
	return record, nil
}

// recordFromToken converts an oauth2 token response into a UserTokenRecord.
// Scopes come from the response's scope field when present, falling back to
// the scopes that were requested.
func recordFromToken(token *oauth2.Token, requested []string) *UserTokenRecord {
	record := &UserTokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scopes:       append([]string(nil), requested...),
	}
	if scope, ok := token.Extra("scope").(string); ok && strings.TrimSpace(scope) != "" {
		record.Scopes = ParseScopes(scope)
	}
	return record
}
