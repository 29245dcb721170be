// Package oauth talks to the Google OAuth endpoints: refresh grants and
// token revocation.
package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tracker_server/core/port/out"
	"tracker_server/pkg/httputil"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// GoogleConfig holds the OAuth client settings. Empty URLs use Google's endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RevokeURL    string
	HTTPClient   *http.Client
}

// GoogleClient implements out.TokenRefresher and out.TokenRevoker.
type GoogleClient struct {
	config     *oauth2.Config
	revokeURL  string
	httpClient *http.Client
	now        func() time.Time
}

var (
	_ out.TokenRefresher = (*GoogleClient)(nil)
	_ out.TokenRevoker   = (*GoogleClient)(nil)
)

// NewGoogleClient creates the client.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = defaultRevokeURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httputil.NewClient(httputil.GoogleClientConfig(0))
	}

	return &GoogleClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		revokeURL:  revokeURL,
		httpClient: client,
		now:        time.Now,
	}
}

// Refresh runs a refresh_token grant. Rejections come back as *oauth2.RetrieveError.
func (c *GoogleClient) Refresh(ctx context.Context, refreshToken string) (*out.RefreshedToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	metrics.AuthTokenRefreshes.WithLabelValues(metrics.StatusLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("refresh grant: %w", err)
	}

	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(tok.Expiry.Sub(c.now()).Round(time.Second) / time.Second)
	}
	scope, _ := tok.Extra("scope").(string)

	refreshed := &out.RefreshedToken{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Scope:       scope,
		ExpiresIn:   expiresIn,
	}
	if tok.RefreshToken != refreshToken {
		refreshed.RefreshToken = tok.RefreshToken
	}
	return refreshed, nil
}

// Revoke invalidates a refresh or access token.
func (c *GoogleClient) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revoke failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	logger.Debug("[GoogleClient.Revoke] token revoked")
	return nil
}
