// Package twilio bridges PSTN callers into call rooms. Outbound calls are
// placed through the Twilio REST API; the answered leg is parked in a
// conference bridge named after the target room.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIBaseURL is the Twilio REST endpoint.
const DefaultAPIBaseURL = "https://api.twilio.com"

// Client places and steers calls for one Twilio account.
type Client struct {
	accountSID  string
	authToken   string
	fromNumber  string
	apiBaseURL  string
	callbackURL string
	httpClient  *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithAPIBaseURL sets a custom API base URL (for testing).
func WithAPIBaseURL(url string) Option {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(url, "/")
	}
}

// New creates a Twilio client. callbackURL is the externally reachable base
// of this service; Twilio fetches call instructions from it when the callee
// answers.
func New(accountSID, authToken, fromNumber, callbackURL string, opts ...Option) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio: account sid and auth token are required")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("twilio: from number is required")
	}
	c := &Client{
		accountSID:  accountSID,
		authToken:   authToken,
		fromNumber:  fromNumber,
		apiBaseURL:  DefaultAPIBaseURL,
		callbackURL: strings.TrimRight(callbackURL, "/"),
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PlaceOutboundCall dials number and points the answered leg at the connect
// webhook for the session. Returns the provider call id.
func (c *Client) PlaceOutboundCall(ctx context.Context, number, sessionID, agentIdentity string) (string, error) {
	if number == "" || sessionID == "" {
		return "", fmt.Errorf("twilio: number and session id are required")
	}

	form := url.Values{}
	form.Set("To", number)
	form.Set("From", c.fromNumber)
	form.Set("Url", fmt.Sprintf("%s/api/twilio/connect/%s", c.callbackURL, sessionID))
	form.Set("Method", http.MethodPost)

	var created struct {
		SID string `json:"sid"`
	}
	if err := c.post(ctx, c.callsURL(""), form, &created); err != nil {
		return "", fmt.Errorf("place call to %s: %w", number, err)
	}
	return created.SID, nil
}

// BridgeToRoom redirects an in-flight call into the conference bridge for
// roomName, optionally speaking an intro first.
func (c *Client) BridgeToRoom(ctx context.Context, externalCallID, roomName, spokenIntro string) error {
	if externalCallID == "" || roomName == "" {
		return fmt.Errorf("twilio: call id and room are required")
	}

	form := url.Values{}
	form.Set("Twiml", ConnectTwiML(roomName, spokenIntro))
	if err := c.post(ctx, c.callsURL(externalCallID), form, &struct{}{}); err != nil {
		return fmt.Errorf("bridge call %s to %s: %w", externalCallID, roomName, err)
	}
	return nil
}

// Terminate completes an active call.
func (c *Client) Terminate(ctx context.Context, externalCallID string) error {
	if externalCallID == "" {
		return fmt.Errorf("twilio: call id is required")
	}

	form := url.Values{}
	form.Set("Status", "completed")
	if err := c.post(ctx, c.callsURL(externalCallID), form, &struct{}{}); err != nil {
		return fmt.Errorf("terminate call %s: %w", externalCallID, err)
	}
	return nil
}

func (c *Client) callsURL(callSID string) string {
	if callSID == "" {
		return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.apiBaseURL, c.accountSID)
	}
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.apiBaseURL, c.accountSID, callSID)
}

func (c *Client) post(ctx context.Context, url string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Error represents an API error from Twilio.
type Error struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: %s (code: %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("twilio: %s", e.Message)
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	out := &Error{Status: resp.StatusCode}
	if err := json.Unmarshal(body, out); err != nil || out.Message == "" {
		out.Message = string(body)
		if out.Message == "" {
			out.Message = resp.Status
		}
		out.Status = resp.StatusCode
	}
	return out
}
