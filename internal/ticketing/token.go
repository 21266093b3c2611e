package ticketing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticket-bridge/internal/httpclient"
)

const (
	defaultTokenTTL    = 50 * time.Minute
	tokenRefreshMargin = 60 * time.Second
)

type tokenSource struct {
	caller       *httpclient.Caller
	url          string
	clientID     string
	clientSecret string
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a cached access token, fetching a new one when it is
// missing or about to expire.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt.Add(-tokenRefreshMargin)) {
		return s.token, nil
	}

	resp, err := s.caller.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    s.url,
		Body: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {s.clientID},
			"client_secret": {s.clientSecret},
		},
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}
	var body tokenResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	token := body.AccessToken
	if token == "" {
		token = body.Token
	}
	if token == "" {
		return "", fmt.Errorf("token request: no token in response")
	}

	s.token = token
	s.expiresAt = s.expiry(token, body.ExpiresIn)
	return s.token, nil
}

// Invalidate forces the next Token call to fetch a new token.
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// expiry prefers expires_in, then the exp claim of a JWT token.
func (s *tokenSource) expiry(token string, expiresIn int) time.Time {
	now := s.now()
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(defaultTokenTTL)
}
