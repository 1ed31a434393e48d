package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"parish-portal/internal/config"
)

// Client is the gateway to the upstream church-management platform: generic
// record CRUD against named tables and stored-procedure invocation, all
// authenticated with the cached service-level token. It is the only sanctioned
// way the portal talks to the platform.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenCache
	metrics *Metrics
}

// New builds a Client from process configuration. metrics may be nil.
func New(cfg config.UpstreamConfig, metrics *Metrics) *Client {
	hc := &http.Client{Timeout: cfg.Timeout()}
	if hc.Timeout <= 0 {
		hc.Timeout = 30 * time.Second
	}
	cred := Credential{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scope:        cfg.Scope,
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    hc,
		tokens:  NewTokenCache(cred, hc, cfg.TokenMargin()),
		metrics: metrics,
	}
}

// NewWithTokenCache builds a Client around an existing token cache, for
// callers that manage credentials themselves (and for tests).
func NewWithTokenCache(baseURL string, hc *http.Client, tokens *TokenCache) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: hc, tokens: tokens}
}

// Tokens exposes the service-level token cache (some collaborators need raw
// bearer tokens, e.g. the SSE broadcaster's fetch path).
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

// do performs one authenticated round trip. A non-2xx response becomes a
// *RequestError; a 2xx body is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any, operation, resource string) error {
	start := time.Now()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", operation, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(operation, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", operation, resource, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	c.metrics.ObserveRequest(operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{
			StatusCode: resp.StatusCode,
			Operation:  operation,
			Resource:   resource,
			Body:       string(raw),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", operation, resource, err)
		}
	}
	return nil
}
