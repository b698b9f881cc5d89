package datamine

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const (
	// DefaultServer is the legacy DataMine API endpoint.
	DefaultServer = "https://analytics.upsight.com/dashboard/datamine2"

	// DefaultPollInterval is the delay between result-status polls.
	DefaultPollInterval = 15 * time.Second

	// DefaultConnectDelay is the delay between liveness probes on Connect.
	DefaultConnectDelay = 5 * time.Second

	// DefaultConnectAttempts is the probe budget for Connect.
	DefaultConnectAttempts = 5

	// DefaultMaxAttempts is the shared submit/poll attempt budget for Execute.
	DefaultMaxAttempts = 3
)

// Status reasons the DataMine protocol distinguishes.
const (
	ReasonOK         = "OK"
	ReasonCreated    = "CREATED"
	ReasonProcessing = "PROCESSING"
	ReasonForbidden  = "FORBIDDEN"
)

// Server-URL query parameters consumed by NewClient.
const (
	paramPollInterval    = "poll_interval"
	paramConnectDelay    = "connect_delay"
	paramConnectAttempts = "connect_attempts"
	paramMaxAttempts     = "max_attempts"
)

// RequestOption allows for functional overrides on individual requests
type RequestOption func(*http.Request)

// Client holds the DataMine endpoint, credentials, and retry tunables.
// It is the factory for Sessions: configure it with the fluent setters,
// then call Connect to obtain a live Session.
type Client struct {
	httpClient     *http.Client
	serverUrl      *url.URL
	userInfo       *url.Userinfo
	requestOptions []RequestOption

	pollInterval    time.Duration
	connectDelay    time.Duration
	connectAttempts int
	maxAttempts     int

	// mu protects configuration during concurrent access
	mu sync.RWMutex
}

// --- Initialization & Lifecycle ---

// NewClient initializes a client for the given DataMine endpoint. An empty
// serverUrl selects the legacy default. Retry tunables may be embedded in the
// URL query string (poll_interval, connect_delay, connect_attempts,
// max_attempts); they are parsed and stripped from the stored endpoint.
//
// Durations accept both Go syntax and day/week units ("90s", "2m", "1d").
func NewClient(serverUrl string) (*Client, error) {
	if serverUrl == "" {
		serverUrl = DefaultServer
	}

	parsedUrl, err := url.Parse(serverUrl)
	if err != nil {
		return nil, fmt.Errorf("datamine: invalid server URL: %w", err)
	}

	c := &Client{
		httpClient:      &http.Client{},
		pollInterval:    DefaultPollInterval,
		connectDelay:    DefaultConnectDelay,
		connectAttempts: DefaultConnectAttempts,
		maxAttempts:     DefaultMaxAttempts,
	}

	q := parsedUrl.Query()
	if v := q.Get(paramPollInterval); v != "" {
		if c.pollInterval, err = str2duration.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("datamine: invalid %s: %w", paramPollInterval, err)
		}
	}
	if v := q.Get(paramConnectDelay); v != "" {
		if c.connectDelay, err = str2duration.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("datamine: invalid %s: %w", paramConnectDelay, err)
		}
	}
	if v := q.Get(paramConnectAttempts); v != "" {
		if c.connectAttempts, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("datamine: invalid %s: %w", paramConnectAttempts, err)
		}
	}
	if v := q.Get(paramMaxAttempts); v != "" {
		if c.maxAttempts, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("datamine: invalid %s: %w", paramMaxAttempts, err)
		}
	}
	for _, key := range []string{paramPollInterval, paramConnectDelay, paramConnectAttempts, paramMaxAttempts} {
		q.Del(key)
	}
	parsedUrl.RawQuery = q.Encode()
	c.serverUrl = parsedUrl

	return c, nil
}

// --- Fluent Setters ---

func (c *Client) User(user string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userInfo = url.User(user)
	return c
}

func (c *Client) UserPassword(user, password string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userInfo = url.UserPassword(user, password)
	return c
}

func (c *Client) PollInterval(d time.Duration) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollInterval = d
	return c
}

func (c *Client) ConnectDelay(d time.Duration) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectDelay = d
	return c
}

func (c *Client) ConnectAttempts(n int) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectAttempts = n
	return c
}

func (c *Client) MaxAttempts(n int) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAttempts = n
	return c
}

// RequestOptions replaces the client-level request options applied to every
// outgoing request. Auth providers hook in here.
func (c *Client) RequestOptions(opts ...RequestOption) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestOptions = opts
	return c
}

// HTTPClient replaces the underlying HTTP client.
func (c *Client) HTTPClient(httpClient *http.Client) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = httpClient
	return c
}

// TLSConfig sets the TLS configuration on the underlying transport.
func (c *Client) TLSConfig(cfg *tls.Config) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	transport, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		transport = &http.Transport{}
		c.httpClient.Transport = transport
	}
	transport.TLSClientConfig = cfg
	return c
}

// ServerURL returns the configured endpoint with tunable params stripped.
func (c *Client) ServerURL() string {
	return c.serverUrl.String()
}

// --- Request Lifecycle ---

// endpoint joins a path suffix onto the base endpoint.
func (c *Client) endpoint(suffix string) string {
	base := strings.TrimRight(c.serverUrl.String(), "/")
	if suffix == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(suffix, "/")
}

// NewRequest builds an http.Request with credentials and client-level options
// applied, accepting per-call overrides. Form bodies (url.Values) are sent
// x-www-form-urlencoded, strings as text/plain, other non-nil bodies as JSON.
func (c *Client) NewRequest(method, urlStr string, body any, options ...RequestOption) (*http.Request, error) {
	bodyReader, contentType, err := prepareRequestBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, urlStr, bodyReader)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	if c.userInfo != nil {
		if pass, ok := c.userInfo.Password(); ok {
			req.SetBasicAuth(c.userInfo.Username(), pass)
		}
	}
	clientOptions := c.requestOptions
	c.mu.RUnlock()

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for _, opt := range clientOptions {
		opt(req)
	}
	// Per-call options override client-level ones
	for _, opt := range options {
		opt(req)
	}

	return req, nil
}

func prepareRequestBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	}
	jsonBuf := &bytes.Buffer{}
	if err := json.NewEncoder(jsonBuf).Encode(body); err != nil {
		return nil, "", err
	}
	return jsonBuf, "application/json", nil
}

// do executes the request. Unlike typical REST helpers it never turns an HTTP
// error status into an error: the executor drives its retry decisions off the
// status reason, so every response comes back to the caller.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}

// statusReason extracts the uppercased reason phrase from a response status
// line. net/http preserves custom phrases ("202 PROCESSING") sent by the
// legacy server; 202 responses with the canonical phrase map to PROCESSING
// as well, since Go servers can only emit canonical text.
func statusReason(resp *http.Response) string {
	_, phrase, _ := strings.Cut(resp.Status, " ")
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	reason := strings.ToUpper(phrase)
	if resp.StatusCode == http.StatusAccepted && reason == "ACCEPTED" {
		return ReasonProcessing
	}
	return reason
}

// isRetryableNetError returns true for transient network errors that warrant
// another probe (connection refused, DNS failures, connection reset, network
// timeouts). Context cancellation and deadline exceeded errors are NOT retried.
func isRetryableNetError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// --- Connect ---

// Connect verifies the endpoint is reachable and healthy, returning a live
// Session. Up to connectAttempts probes are issued, separated by connectDelay.
// A FORBIDDEN probe fails immediately with *AuthError; an exhausted budget
// fails with *ConnectivityError. The caller owns the Session and must Close it.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	c.mu.RLock()
	attempts, delay := c.connectAttempts, c.connectDelay
	c.mu.RUnlock()

	var lastReason string
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		reason, err := c.probe(ctx)
		if err != nil {
			if !isRetryableNetError(err) {
				return nil, err
			}
			log.Debug().Err(err).Int("attempt", attempt+1).Msg("probe failed, retrying")
			lastErr = err
			continue
		}

		switch reason {
		case ReasonOK:
			return &Session{client: c, state: StateIdle}, nil
		case ReasonForbidden:
			return nil, &AuthError{Reason: reason}
		}

		log.Debug().Str("reason", reason).Int("attempt", attempt+1).Msg("endpoint not healthy yet")
		lastReason = reason
		lastErr = nil
	}

	return nil, &ConnectivityError{Attempts: attempts, Reason: lastReason, Err: lastErr}
}

// probe issues a liveness GET against the base endpoint and reports its
// status reason.
func (c *Client) probe(ctx context.Context) (string, error) {
	req, err := c.NewRequest(http.MethodGet, c.endpoint(""), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		log.Debug().Err(closeErr).Msg("failed to close probe response body")
	}
	return statusReason(resp), nil
}
