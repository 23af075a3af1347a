package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// createRoomRequest is the Twirp CreateRoom request body.
type createRoomRequest struct {
	Name            string `json:"name"`
	EmptyTimeout    int    `json:"empty_timeout,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
}

// room is the subset of the Twirp Room message we read.
type room struct {
	SID  string `json:"sid"`
	Name string `json:"name"`
}

// removeParticipantRequest is the Twirp RemoveParticipant request body.
type removeParticipantRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// CreateRoom creates a room and returns its addressable name. Participants
// join by name, so the name rather than the server-side SID is the id the
// rest of the system passes around.
func (c *Client) CreateRoom(ctx context.Context, name string, maxParticipants int) (string, error) {
	req := createRoomRequest{
		Name:            name,
		EmptyTimeout:    roomEmptyTimeout,
		MaxParticipants: maxParticipants,
		Metadata:        "Created at " + c.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	var created room
	if err := c.twirp(ctx, "CreateRoom", req, &created); err != nil {
		return "", fmt.Errorf("create room %q: %w", name, err)
	}
	if created.Name == "" {
		created.Name = name
	}
	return created.Name, nil
}

// RemoveParticipant kicks one participant out of a room.
func (c *Client) RemoveParticipant(ctx context.Context, roomName, identity string) error {
	req := removeParticipantRequest{Room: roomName, Identity: identity}
	if err := c.twirp(ctx, "RemoveParticipant", req, &struct{}{}); err != nil {
		return fmt.Errorf("remove participant %q from %q: %w", identity, roomName, err)
	}
	return nil
}

// twirp posts one RoomService RPC. The admin token is minted per call; its
// grant depends on the method.
func (c *Client) twirp(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/twirp/livekit.RoomService/" + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	token, err := c.adminToken()
	if err != nil {
		return fmt.Errorf("sign admin token: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Error represents an API error from the LiveKit server.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"msg"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("livekit: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("livekit: %s", e.Message)
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	out := &Error{Status: resp.StatusCode}
	if err := json.Unmarshal(body, out); err != nil || out.Message == "" {
		out.Message = string(body)
		if out.Message == "" {
			out.Message = resp.Status
		}
	}
	return out
}
