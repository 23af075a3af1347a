package warmline

import (
	"log/slog"
	"net/http"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the gateway API key sent as a bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout. Prefer per-request context
// deadlines; this is a whole-client backstop.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRetries sets the maximum number of retries for transport failures and
// retryable gateway errors. Zero disables retrying.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the initial backoff between retries. The backoff
// doubles per attempt; a Retry-After hint from the gateway takes precedence.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBackoff = d
	}
}
