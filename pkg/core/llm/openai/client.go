package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// doRequest sends a non-streaming request and returns the raw response body.
func (p *Provider) doRequest(ctx context.Context, req *chatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, p.parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

// setHeaders sets the required API headers.
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")

	headerValue := p.auth.Value
	if headerValue == "" {
		headerValue = p.auth.Prefix + p.apiKey
	}
	authHeader := p.auth.Header
	if authHeader == "" {
		authHeader = "Authorization"
	}
	req.Header.Set(authHeader, headerValue)

	for key, value := range p.extraHeaders {
		req.Header.Set(key, value)
	}
}

func (p *Provider) chatURL() string {
	return strings.TrimRight(p.baseURL, "/") + p.chatPath
}
