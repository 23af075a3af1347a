// Package warmline provides the Go client for the Warmline gateway.
//
// The client is a thin typed layer over the gateway's REST API: call
// lifecycle, warm transfer phases, roster inspection and outbound
// telephony. Failures decode into *core.Error so callers can branch on the
// gateway's own classification.
package warmline

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is the entry point for the SDK.
type Client struct {
	Calls     *CallsService
	Agents    *AgentsService
	Telephony *TelephonyService

	baseURL      string
	apiKey       string
	httpClient   *http.Client
	logger       *slog.Logger
	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a client against a gateway base URL, for example
// "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("warmline: base URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newDefaultHTTPClient(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Calls = &CallsService{client: c}
	c.Agents = &AgentsService{client: c}
	c.Telephony = &TelephonyService{client: c}
	return c, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}
