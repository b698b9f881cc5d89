// Package oauth2 provides OAuth2 and static token authentication for the
// datamine client library. It is a separate package to keep the oauth2
// dependency opt-in.
package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/levikanwischer/datamine"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// --- Static Token ---

// NewStaticTokenOption returns a RequestOption that sets a static Bearer token
// on every request. Use this for pre-obtained JWTs or long-lived access tokens.
func NewStaticTokenOption(token string) datamine.RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// --- Client Credentials Flow ---

// Config holds OAuth2 client credentials configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string   // Token endpoint URL
	Scopes       []string // Optional scopes
}

// validate checks that required fields are set.
func (c *Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("oauth2: ClientID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("oauth2: ClientSecret is required")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: TokenURL is required")
	}
	return nil
}

// NewRequestOption creates a RequestOption that automatically obtains and
// refreshes OAuth2 tokens using the client credentials flow. The returned
// option is safe for concurrent use; the underlying oauth2 token source
// handles caching and refresh.
func NewRequestOption(cfg Config) (datamine.RequestOption, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ccCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	return TokenSource(ccCfg.TokenSource(context.Background())), nil
}

// TokenSource wraps an oauth2.TokenSource as a datamine.RequestOption.
// Use this when you have a custom token source (e.g., from a token file,
// metadata service, or custom refresh logic).
func TokenSource(ts oauth2.TokenSource) datamine.RequestOption {
	return func(req *http.Request) {
		token, err := ts.Token()
		if err != nil {
			// Cannot return an error from a RequestOption. The server will
			// answer 403 if the header is missing, surfacing as an auth error.
			return
		}
		token.SetAuthHeader(req)
	}
}

// --- Server URL Integration ---

// Server-URL parameter names for OAuth2 configuration.
const (
	paramAccessToken  = "access_token"
	paramClientID     = "oauth2_client_id"
	paramClientSecret = "oauth2_client_secret"
	paramTokenURL     = "oauth2_token_url"
	paramScopes       = "oauth2_scopes"
)

var oauth2Params = []string{
	paramAccessToken, paramClientID, paramClientSecret, paramTokenURL, paramScopes,
}

// parseServerURL extracts OAuth2 parameters from a server URL and returns the
// appropriate RequestOption and cleaned URL. It supports two modes:
//
//  1. Static token: access_token=<token>
//  2. Client credentials: oauth2_client_id, oauth2_client_secret, oauth2_token_url
func parseServerURL(serverUrl string) (datamine.RequestOption, string, error) {
	u, err := url.Parse(serverUrl)
	if err != nil {
		return nil, "", fmt.Errorf("oauth2: invalid server URL: %w", err)
	}

	q := u.Query()
	accessToken := q.Get(paramAccessToken)
	clientID := q.Get(paramClientID)
	clientSecret := q.Get(paramClientSecret)
	tokenURL := q.Get(paramTokenURL)
	scopes := q.Get(paramScopes)

	for _, key := range oauth2Params {
		q.Del(key)
	}
	u.RawQuery = q.Encode()
	cleanURL := u.String()

	if accessToken != "" {
		return NewStaticTokenOption(accessToken), cleanURL, nil
	}

	if clientID != "" {
		cfg := Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		if scopes != "" {
			parts := strings.Split(scopes, ",")
			cfg.Scopes = make([]string, 0, len(parts))
			for _, s := range parts {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					cfg.Scopes = append(cfg.Scopes, trimmed)
				}
			}
		}
		opt, err := NewRequestOption(cfg)
		if err != nil {
			return nil, "", err
		}
		return opt, cleanURL, nil
	}

	// No OAuth2 params found
	return nil, cleanURL, nil
}

// NewClient creates a datamine.Client with OAuth2 authentication configured.
// It supports two modes via server URL parameters:
//
//  1. Static token: access_token=<token>
//  2. Client credentials: oauth2_client_id, oauth2_client_secret, oauth2_token_url
//
// OAuth2 parameters are stripped from the URL before it reaches datamine.NewClient.
func NewClient(serverUrl string) (*datamine.Client, error) {
	authOpt, cleanURL, err := parseServerURL(serverUrl)
	if err != nil {
		return nil, err
	}

	client, err := datamine.NewClient(cleanURL)
	if err != nil {
		return nil, err
	}
	if authOpt != nil {
		client.RequestOptions(authOpt)
	}
	return client, nil
}
