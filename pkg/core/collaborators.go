package core

import "context"

// RoomProfile selects the capability set minted into a room credential.
type RoomProfile string

const (
	// ProfileAgent grants publish, subscribe, data and recording capability.
	ProfileAgent RoomProfile = "agent"
	// ProfileCaller grants publish and subscribe only.
	ProfileCaller RoomProfile = "caller"
)

// RoomProvider creates communication rooms and issues per-participant
// credentials. Implementations must honor context deadlines; the
// orchestrator calls every method with a timeout.
type RoomProvider interface {
	// CreateRoom creates a room and returns its addressable identifier.
	CreateRoom(ctx context.Context, name string, maxParticipants int) (string, error)
	// IssueToken returns an opaque credential authorizing identity to join
	// roomName with the capabilities of the given profile.
	IssueToken(ctx context.Context, identity, roomName string, profile RoomProfile) (string, error)
	// RemoveParticipant ejects a participant. Best-effort; callers log
	// failures and continue.
	RemoveParticipant(ctx context.Context, roomName, identity string) error
}

// Summarizer turns a transcript into a handoff summary, or a summary plus a
// transfer reason into a spoken briefing for the receiving agent.
type Summarizer interface {
	Summarize(ctx context.Context, transcript Transcript) (string, error)
	Explain(ctx context.Context, summary, reason, targetContext string) (string, error)
}

// TelephonyBridge bridges a PSTN leg into a room. Optional; deployments
// without telephony run with a nil bridge.
type TelephonyBridge interface {
	PlaceOutboundCall(ctx context.Context, number, sessionID, agentIdentity string) (string, error)
	BridgeToRoom(ctx context.Context, externalCallID, roomName, spokenIntro string) error
	Terminate(ctx context.Context, externalCallID string) error
}
