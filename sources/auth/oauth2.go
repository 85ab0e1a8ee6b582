// Package auth implements the authentication/signing patterns named in
// spec.md §4.4, shared by every adapter that needs them instead of each
// reimplementing its own copy.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// OAuth2ClientCredentials caches a bearer token obtained via the OAuth2
// client_credentials grant, refreshing 60s before expiry and serializing
// concurrent refreshes behind a mutex (spec.md §4.4, §5 pt.1; grounded on
// original_source/lufthansa_group/client.py _fetch_token/_ensure_token).
type OAuth2ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid bearer token, refreshing if the cached one has
// expired or is within 60s of expiry.
func (o *OAuth2ClientCredentials) Token(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.accessToken != "" && time.Now().Before(o.expiresAt) {
		return o.accessToken, nil
	}
	return o.refreshLocked(ctx)
}

// ForceRefresh discards the cached token and fetches a new one — called
// on an observed 401 before a single re-attempt (spec.md §4.4 "refreshed
// ... on observed 401").
func (o *OAuth2ClientCredentials) ForceRefresh(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refreshLocked(ctx)
}

func (o *OAuth2ClientCredentials) refreshLocked(ctx context.Context) (string, error) {
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{}
	form.Set("client_id", o.ClientID)
	form.Set("client_secret", o.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth2: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth2: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("oauth2: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth2: token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("oauth2: parse token response: %w", err)
	}

	o.accessToken = parsed.AccessToken
	// refresh 60s before expires_in, ground: lufthansa_group/client.py
	// "time.monotonic() + expires_in - 60"
	o.expiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn)*time.Second - 60*time.Second)
	return o.accessToken, nil
}
