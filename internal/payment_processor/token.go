package payment_processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"stk-relay/internal/payments/entities"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	oauthPath      = "/oauth/v1/generate?grant_type=client_credentials"
	tokenCacheKey  = "daraja:access_token"
	tokenSafetyGap = time.Minute
)

type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// OAuthTokenProvider exchanges the consumer key and secret for a bearer token.
type OAuthTokenProvider struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	client         *http.Client
}

func NewOAuthTokenProvider(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *OAuthTokenProvider {
	return &OAuthTokenProvider{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		client:         &http.Client{Timeout: timeout},
	}
}

func (p *OAuthTokenProvider) GetToken(ctx context.Context) (string, error) {
	token, _, err := p.fetch(ctx)
	return token, err
}

func (p *OAuthTokenProvider) fetch(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+oauthPath, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	req.SetBasicAuth(p.consumerKey, p.consumerSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: token request: %v", entities.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("%w: read token response: %v", entities.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: token endpoint returned %d: %s", entities.ErrUpstreamUnavailable, resp.StatusCode, describeError(raw))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: token response has no access_token", entities.ErrUpstreamUnavailable)
	}

	var ttl time.Duration
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	return tr.AccessToken, ttl, nil
}

// CachedTokenProvider keeps the bearer token in Redis until shortly before it
// expires so every relay instance shares one token.
type CachedTokenProvider struct {
	cache    *redis.Client
	provider *OAuthTokenProvider
}

func NewCachedTokenProvider(cache *redis.Client, provider *OAuthTokenProvider) *CachedTokenProvider {
	return &CachedTokenProvider{cache: cache, provider: provider}
}

func (c *CachedTokenProvider) GetToken(ctx context.Context) (string, error) {
	token, err := c.cache.Get(ctx, tokenCacheKey).Result()
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("token cache unavailable, fetching directly", "error", err)
	}

	token, ttl, err := c.provider.fetch(ctx)
	if err != nil {
		return "", err
	}

	if ttl > tokenSafetyGap {
		if err := c.cache.Set(ctx, tokenCacheKey, token, ttl-tokenSafetyGap).Err(); err != nil {
			slog.Warn("failed to cache access token", "error", err)
		}
	}
	return token, nil
}
