// Package kerberos provides Kerberos/SPNEGO authentication for the datamine
// client library. It is a separate package to keep the gokrb5 dependency tree
// opt-in for consumers that don't need Kerberos.
package kerberos

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/levikanwischer/datamine"
	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// Config holds Kerberos authentication parameters.
type Config struct {
	KeytabPath string // Path to .keytab file
	Principal  string // e.g. "user@EXAMPLE.COM"
	Realm      string // e.g. "EXAMPLE.COM"
	ConfigPath string // Path to krb5.conf
	ServiceSPN string // Service principal name, defaults to "HTTP/<hostname>"
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.KeytabPath == "" {
		return fmt.Errorf("kerberos: KeytabPath is required")
	}
	if c.Principal == "" {
		return fmt.Errorf("kerberos: Principal is required")
	}
	if c.Realm == "" {
		return fmt.Errorf("kerberos: Realm is required")
	}
	if c.ConfigPath == "" {
		return fmt.Errorf("kerberos: ConfigPath is required")
	}
	return nil
}

// krbCloser wraps a gokrb5 client to implement io.Closer.
type krbCloser struct {
	cl *client.Client
}

func (k *krbCloser) Close() error {
	k.cl.Destroy()
	return nil
}

// NewRequestOption creates a datamine.RequestOption that sets the SPNEGO
// Negotiate header on every request. It returns an io.Closer that must
// be called to destroy the underlying Kerberos client when done.
func NewRequestOption(cfg Config) (datamine.RequestOption, io.Closer, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	kt, err := keytab.Load(cfg.KeytabPath)
	if err != nil {
		return nil, nil, fmt.Errorf("kerberos: failed to load keytab %q: %w", cfg.KeytabPath, err)
	}

	krb5Conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("kerberos: failed to load config %q: %w", cfg.ConfigPath, err)
	}

	// Parse principal into username and realm parts.
	// If the principal contains "@", split on it; otherwise use the configured realm.
	username := cfg.Principal
	realm := cfg.Realm
	if idx := strings.LastIndex(cfg.Principal, "@"); idx >= 0 {
		username = cfg.Principal[:idx]
		realm = cfg.Principal[idx+1:]
	}

	cl := client.NewWithKeytab(username, realm, kt, krb5Conf)
	if err := cl.Login(); err != nil {
		return nil, nil, fmt.Errorf("kerberos: login failed: %w", err)
	}

	closer := &krbCloser{cl: cl}

	opt := func(req *http.Request) {
		spn := cfg.ServiceSPN
		if spn == "" {
			spn = "HTTP/" + req.URL.Hostname()
		}
		// SetSPNEGOHeader adds the Authorization: Negotiate header.
		// Errors are silently ignored here; the server will answer 403
		// if the token is missing, which surfaces as an auth error.
		_ = spnego.SetSPNEGOHeader(cl, req, spn)
	}

	return opt, closer, nil
}

// Server-URL parameter names for Kerberos configuration.
const (
	paramKeytab     = "kerberos_keytab"
	paramPrincipal  = "kerberos_principal"
	paramRealm      = "kerberos_realm"
	paramConfig     = "kerberos_config"
	paramServiceSPN = "kerberos_service_spn"
)

// kerberosParams is the set of URL query parameters consumed by this package.
var kerberosParams = []string{
	paramKeytab, paramPrincipal, paramRealm, paramConfig, paramServiceSPN,
}

// parseServerURL extracts Kerberos parameters from a server URL and returns
// the Config and a cleaned URL with Kerberos params removed.
func parseServerURL(serverUrl string) (*Config, string, error) {
	u, err := url.Parse(serverUrl)
	if err != nil {
		return nil, "", fmt.Errorf("kerberos: invalid server URL: %w", err)
	}

	q := u.Query()
	cfg := &Config{
		KeytabPath: q.Get(paramKeytab),
		Principal:  q.Get(paramPrincipal),
		Realm:      q.Get(paramRealm),
		ConfigPath: q.Get(paramConfig),
		ServiceSPN: q.Get(paramServiceSPN),
	}

	for _, key := range kerberosParams {
		q.Del(key)
	}
	u.RawQuery = q.Encode()

	return cfg, u.String(), nil
}

// NewClient creates a datamine.Client with Kerberos/SPNEGO authentication.
// It parses Kerberos parameters from the server URL, strips them, and passes
// the cleaned URL to datamine.NewClient with the SPNEGO request option
// applied to every request.
//
// The returned io.Closer must be called to destroy the Kerberos client
// (typically via defer). The datamine.Client remains usable until Close is
// called.
func NewClient(serverUrl string) (*datamine.Client, io.Closer, error) {
	cfg, cleanURL, err := parseServerURL(serverUrl)
	if err != nil {
		return nil, nil, err
	}

	opt, closer, err := NewRequestOption(*cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := datamine.NewClient(cleanURL)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	client.RequestOptions(opt)

	return client, closer, nil
}
