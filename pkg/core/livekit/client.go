// Package livekit is the room provider backed by a LiveKit server. Rooms are
// managed through the Twirp RoomService API; access credentials are
// HS256-signed JWTs carrying video grants.
package livekit

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// roomEmptyTimeout is how long an empty room lives before the server
	// reclaims it, in seconds. Orphaned rooms from failed transfers age out
	// through this.
	roomEmptyTimeout = 300

	defaultTokenTTL = 6 * time.Hour
)

// Client talks to one LiveKit deployment.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	tokenTTL   time.Duration
	now        func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.tokenTTL = ttl
		}
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client for the LiveKit deployment at url. The url may use
// the ws/wss scheme as handed to browser clients; the REST API is reached
// over the matching http scheme.
func New(url, apiKey, apiSecret string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("livekit: server url is required")
	}
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("livekit: api key and secret are required")
	}
	c := &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    httpBaseURL(url),
		httpClient: &http.Client{},
		tokenTTL:   defaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// httpBaseURL converts a signalling url to the REST endpoint base.
func httpBaseURL(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		url = "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		url = "http://" + strings.TrimPrefix(url, "ws://")
	}
	return strings.TrimRight(url, "/")
}
