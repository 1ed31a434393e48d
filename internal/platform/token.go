package platform

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

	"golang.org/x/sync/singleflight"
)

// Credential identifies one OAuth client against the upstream platform.
// Loaded once from configuration and never mutated. Distinct credentials get
// distinct TokenCache instances; their tokens are never mixed.
type Credential struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
}

// TokenCache hands out a valid bearer token for server-to-server calls
// without re-authenticating on every call. Reads of a valid cached token are
// lock-cheap and unlimited; at most one grant request is in flight at a time,
// concurrent callers that miss the cache all wait on that one request.
type TokenCache struct {
	cred   Credential
	client *http.Client
	margin time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time

	group singleflight.Group
}

const defaultTokenMargin = 90 * time.Second

// NewTokenCache creates a cache for the given credential. margin is
// subtracted from the token lifetime reported by the upstream, so a token is
// never handed out within the margin of expiring; non-positive margins fall
// back to the default.
func NewTokenCache(cred Credential, client *http.Client, margin time.Duration) *TokenCache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if margin <= 0 {
		margin = defaultTokenMargin
	}
	return &TokenCache{
		cred:   cred,
		client: client,
		margin: margin,
		now:    time.Now,
	}
}

// Token returns a bearer token whose expiry is safely in the future,
// performing a client-credentials grant only when the cached token is absent
// or inside the safety margin.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.RLock()
	if t.token != "" && t.now().Before(t.expiry) {
		tok := t.token
		t.mu.RUnlock()
		return tok, nil
	}
	t.mu.RUnlock()

	v, err, _ := t.group.Do("grant", func() (any, error) {
		// A caller that queued behind a finished refresh sees the new token
		// here instead of issuing a second grant.
		t.mu.RLock()
		if t.token != "" && t.now().Before(t.expiry) {
			tok := t.token
			t.mu.RUnlock()
			return tok, nil
		}
		t.mu.RUnlock()

		tok, expiresIn, err := grant(ctx, t.client, t.cred, url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {t.cred.ClientID},
			"client_secret": {t.cred.ClientSecret},
			"scope":         {t.cred.Scope},
		})
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		t.token = tok
		t.expiry = t.now().Add(expiresIn - t.margin)
		t.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PasswordGrant exchanges an end user's credentials for a delegated token.
// Used once at sign-in to verify the user against the platform; the result is
// deliberately not cached.
func PasswordGrant(ctx context.Context, client *http.Client, cred Credential, username, password string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	tok, _, err := grant(ctx, client, cred, url.Values{
		"grant_type":    {"password"},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
		"scope":         {cred.Scope},
		"username":      {username},
		"password":      {password},
	})
	return tok, err
}

func grant(ctx context.Context, client *http.Client, cred Credential, form url.Values) (string, time.Duration, error) {
	if cred.TokenURL == "" || cred.ClientID == "" {
		return "", 0, &AuthError{Body: "upstream credential not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("grant request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, &AuthError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("unparseable token response: %v", err)}
	}
	if payload.AccessToken == "" {
		return "", 0, &AuthError{StatusCode: resp.StatusCode, Body: "token response missing access_token"}
	}

	return payload.AccessToken, time.Duration(payload.ExpiresIn) * time.Second, nil
}
