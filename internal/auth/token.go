package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2v2 "google.golang.org/api/oauth2/v2"
)

// OAuthConfig builds the oauth2 config from client credentials, taken
// either as inline JSON or from a file. Scopes cover the identity claims
// the backend registration needs.
func OAuthConfig(clientJSON, clientFile string) (*oauth2.Config, error) {
	var raw []byte
	var err error
	switch {
	case clientJSON != "":
		raw = []byte(clientJSON)
	case clientFile != "":
		raw, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, fmt.Errorf("no oauth client credentials configured")
	}

	cfg, err := google.ConfigFromJSON(raw,
		oauth2v2.UserinfoEmailScope,
		oauth2v2.UserinfoProfileScope,
		"openid")
	if err != nil {
		return nil, fmt.Errorf("parse oauth client credentials: %w", err)
	}
	return cfg, nil
}

// LoadToken reads a previously saved token from disk.
func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &token, nil
}

// SaveToken writes a token to disk, readable only by the owner.
func SaveToken(path string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// persistingTokenSource saves refreshed tokens back to the token file so a
// restart does not force a new authorization flow.
type persistingTokenSource struct {
	inner oauth2.TokenSource
	path  string

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.inner.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		if err := SaveToken(p.path, token); err == nil {
			p.last = token.AccessToken
		}
	}
	return token, nil
}

// TokenSource returns an auto-refreshing source seeded from the token file.
// Refreshed tokens are persisted back to the same file.
func TokenSource(ctx context.Context, cfg *oauth2.Config, tokenFile string) (oauth2.TokenSource, error) {
	token, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	return &persistingTokenSource{
		inner: cfg.TokenSource(ctx, token),
		path:  tokenFile,
		last:  token.AccessToken,
	}, nil
}
