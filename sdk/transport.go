package warmline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/warmline/warmline/pkg/core"
)

// newDefaultHTTPClient configures transport-level timeouts while leaving the
// overall request lifetime to context deadlines.
func newDefaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &http.Client{Transport: transport}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	attempt := 0
	backoff := c.retryBackoff

	for {
		var payload io.Reader
		if body != nil {
			buf, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}
			payload = bytes.NewReader(buf)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.url(path), payload)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if shouldRetry(ctx, attempt, c.maxRetries) {
				time.Sleep(backoff)
				backoff = nextBackoff(backoff)
				attempt++
				continue
			}
			return &TransportError{Op: method, URL: c.url(path), Err: err}
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return &TransportError{Op: method, URL: c.url(path), Err: err}
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			apiErr := parseAPIError(resp.StatusCode, resp.Header, respBody)
			if shouldRetryAPIError(ctx, attempt, c.maxRetries, apiErr) {
				time.Sleep(retryDelay(apiErr, backoff))
				backoff = nextBackoff(backoff)
				attempt++
				continue
			}
			return apiErr
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
}

type errorEnvelope struct {
	Error *core.Error `json:"error"`
}

func parseAPIError(status int, header http.Header, body []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Type != "" {
		if envelope.Error.RequestID == "" {
			envelope.Error.RequestID = header.Get("X-Request-ID")
		}
		return envelope.Error
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = fmt.Sprintf("gateway error (%d)", status)
	}
	return &core.Error{
		Type:      core.ErrInternal,
		Message:   message,
		RequestID: header.Get("X-Request-ID"),
	}
}

func shouldRetryAPIError(ctx context.Context, attempt, maxRetries int, err error) bool {
	if !shouldRetry(ctx, attempt, maxRetries) {
		return false
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

func shouldRetry(ctx context.Context, attempt, maxRetries int) bool {
	if ctx.Err() != nil {
		return false
	}
	return attempt < maxRetries
}

// retryDelay prefers the gateway's Retry-After hint over the local backoff.
func retryDelay(err error, backoff time.Duration) time.Duration {
	var ce *core.Error
	if errors.As(err, &ce) && ce.RetryAfter != nil && *ce.RetryAfter > 0 {
		return time.Duration(*ce.RetryAfter) * time.Second
	}
	return backoff
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next == 0 {
		return time.Second
	}
	return next
}
