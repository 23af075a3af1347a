package livekit

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warmline/warmline/pkg/core"
)

// videoGrant mirrors the LiveKit video grant claim.
type videoGrant struct {
	RoomCreate           bool     `json:"roomCreate,omitempty"`
	RoomAdmin            bool     `json:"roomAdmin,omitempty"`
	RoomJoin             bool     `json:"roomJoin,omitempty"`
	Room                 string   `json:"room,omitempty"`
	CanPublish           *bool    `json:"canPublish,omitempty"`
	CanSubscribe         *bool    `json:"canSubscribe,omitempty"`
	CanPublishData       *bool    `json:"canPublishData,omitempty"`
	CanPublishSources    []string `json:"canPublishSources,omitempty"`
	CanUpdateOwnMetadata *bool    `json:"canUpdateOwnMetadata,omitempty"`
	Recorder             bool     `json:"recorder,omitempty"`
}

// accessClaims is the signed token payload.
type accessClaims struct {
	jwt.RegisteredClaims
	Video videoGrant `json:"video"`
}

// IssueToken returns a signed join credential for one participant. The
// agent profile adds data publishing, recording and source control on top of
// the caller's publish+subscribe; callers get nothing beyond media.
func (c *Client) IssueToken(_ context.Context, identity, roomName string, profile core.RoomProfile) (string, error) {
	if identity == "" || roomName == "" {
		return "", fmt.Errorf("livekit: identity and room are required")
	}

	yes := true
	grant := videoGrant{
		RoomJoin:     true,
		Room:         roomName,
		CanPublish:   &yes,
		CanSubscribe: &yes,
	}
	if profile == core.ProfileAgent {
		grant.CanPublishData = &yes
		grant.CanUpdateOwnMetadata = &yes
		grant.CanPublishSources = []string{"camera", "microphone", "screen_share"}
		grant.Recorder = true
	}

	return c.signToken(identity, grant)
}

// adminToken mints the server-API credential used for RoomService calls.
func (c *Client) adminToken() (string, error) {
	return c.signToken(c.apiKey, videoGrant{RoomCreate: true, RoomAdmin: true})
}

func (c *Client) signToken(identity string, grant videoGrant) (string, error) {
	now := c.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
		},
		Video: grant,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
