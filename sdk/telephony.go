package warmline

import (
	"context"

	"github.com/warmline/warmline/pkg/core"
)

// TelephonyService dials phone callers into sessions over the PSTN bridge.
type TelephonyService struct {
	client *Client
}

type PlaceCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	SessionID   string `json:"session_id"`
}

type PlaceCallResponse struct {
	CallSID     string `json:"call_sid"`
	PhoneNumber string `json:"phone_number"`
	SessionID   string `json:"session_id"`
}

// PlaceCall dials an outbound call that joins the session's room once
// answered. The gateway rejects this when no telephony bridge is configured.
func (s *TelephonyService) PlaceCall(ctx context.Context, req *PlaceCallRequest) (*PlaceCallResponse, error) {
	if req == nil {
		return nil, core.NewValidationError("req must not be nil")
	}
	var out PlaceCallResponse
	if err := s.client.post(ctx, "/api/twilio/call", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
