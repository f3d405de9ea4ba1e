// Package token unlock credentials for the remote console
package token

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	tokenType = "Bearer"
	// refresh this long before the token expires
	expiryDelta = 10 * time.Second
)

// Tokens per-RPC credentials carrying the unlock token
type Tokens struct {
	src oauth2.TokenSource

	// Cached metadata to avoid asking the source for every call to
	// GetRequestMetadata.
	mu            sync.Mutex
	tokenMetadata map[string]string
	tokenExpiry   time.Time
}

// New credentials for a fixed unlock code
func New(unlockCode string) *Tokens {
	return NewFromSource(oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: unlockCode,
		TokenType:   tokenType,
	}))
}

func NewFromSource(src oauth2.TokenSource) *Tokens {
	return &Tokens{src: src}
}

func (t *Tokens) cachedMetadata() map[string]string {
	if t.tokenMetadata == nil {
		return nil
	}
	if !t.tokenExpiry.IsZero() && time.Now().Add(expiryDelta).After(t.tokenExpiry) {
		return nil
	}
	return t.tokenMetadata
}

func (t *Tokens) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	// Holding the lock for the whole call ensures that concurrent RPCs
	// don't end up in multiple token requests.
	t.mu.Lock()
	defer t.mu.Unlock()

	if md := t.cachedMetadata(); md != nil {
		return md, nil
	}
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	t.tokenMetadata = map[string]string{"authorization": tok.Type() + " " + tok.AccessToken}
	t.tokenExpiry = tok.Expiry
	return t.tokenMetadata, nil
}

// RequireTransportSecurity the console runs on a local insecure channel
func (t *Tokens) RequireTransportSecurity() bool {
	return false
}

// Valid reports whether one of the authorization values carries code
func Valid(authorization []string, code string) bool {
	if code == "" {
		return false
	}
	want := []byte(tokenType + " " + code)
	for _, v := range authorization {
		if subtle.ConstantTimeCompare([]byte(v), want) == 1 {
			return true
		}
	}
	return false
}
