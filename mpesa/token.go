package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTokenLifetime = 3599 * time.Second
	tokenRefreshSkew     = 60 * time.Second
)

// AccessToken is a Daraja bearer token and the instant it stops being usable.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be sent at now.
func (t AccessToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// FetchAccessToken performs the client-credentials exchange. ExpiresAt is
// pulled forward a little so a token is never sent right at its expiry.
func FetchAccessToken(ctx context.Context, httpClient *http.Client, baseURL, consumerKey, consumerSecret string, now time.Time) (AccessToken, error) {
	if consumerKey == "" || consumerSecret == "" {
		return AccessToken{}, &AuthError{Err: errors.New("consumer key and secret are not configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return AccessToken{}, &AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.SetBasicAuth(consumerKey, consumerSecret)

	resp, err := httpClient.Do(req)
	if err != nil {
		return AccessToken{}, &AuthError{Err: fmt.Errorf("failed to send token request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, &AuthError{Err: fmt.Errorf("failed to read token response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AccessToken{}, &AuthError{Err: fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, &AuthError{Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return AccessToken{}, &AuthError{Err: errors.New("token response has no access_token")}
	}

	lifetime, ok := tr.lifetime()
	if !ok {
		lifetime = defaultTokenLifetime
	}
	if lifetime > 2*tokenRefreshSkew {
		lifetime -= tokenRefreshSkew
	} else {
		lifetime /= 2
	}

	return AccessToken{Value: tr.AccessToken, ExpiresAt: now.Add(lifetime)}, nil
}

// TokenSource caches one access token per set of consumer credentials and
// refreshes it when it expires or is invalidated.
type TokenSource struct {
	httpClient     *http.Client
	baseURL        string
	consumerKey    string
	consumerSecret string
	now            func() time.Time

	mu     sync.Mutex
	cached AccessToken
}

// NewTokenSource returns an empty cache; the first Token call fetches.
func NewTokenSource(httpClient *http.Client, baseURL, consumerKey, consumerSecret string) *TokenSource {
	return &TokenSource{
		httpClient:     httpClient,
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		now:            time.Now,
	}
}

// Token returns the cached token, fetching a new one when needed. Concurrent
// callers wait on a single refresh.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached.Valid(s.now()) {
		return s.cached.Value, nil
	}

	tok, err := FetchAccessToken(ctx, s.httpClient, s.baseURL, s.consumerKey, s.consumerSecret, s.now())
	if err != nil {
		s.cached = AccessToken{}
		return "", err
	}
	s.cached = tok
	return tok.Value, nil
}

// Invalidate drops the cached token. Called when the provider answers 401.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.cached = AccessToken{}
	s.mu.Unlock()
}
