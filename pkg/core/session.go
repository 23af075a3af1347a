package core

import (
	"fmt"
	"time"
)

// CallState is the lifecycle state of a call session.
type CallState string

const (
	CallWaiting      CallState = "waiting"
	CallConnected    CallState = "connected"
	CallTransferring CallState = "transferring"
	CallTransferred  CallState = "transferred"
	CallEnded        CallState = "ended"
)

// CanTransition reports whether s -> to is a legal session transition.
// Ended is terminal and reachable from every other state.
func (s CallState) CanTransition(to CallState) bool {
	if s == CallEnded {
		return false
	}
	if to == CallEnded {
		return true
	}
	switch s {
	case CallWaiting:
		return to == CallConnected
	case CallConnected:
		return to == CallTransferring
	case CallTransferring:
		return to == CallTransferred
	default:
		return false
	}
}

// ParticipantRole identifies which party a room participant is.
type ParticipantRole string

const (
	ParticipantCaller ParticipantRole = "caller"
	ParticipantAgentA ParticipantRole = "agent_a"
	ParticipantAgentB ParticipantRole = "agent_b"
)

// Valid reports whether the participant role is known.
func (r ParticipantRole) Valid() bool {
	switch r {
	case ParticipantCaller, ParticipantAgentA, ParticipantAgentB:
		return true
	}
	return false
}

// Participant records one party present in a session room.
type Participant struct {
	Identity string          `json:"identity"`
	Role     ParticipantRole `json:"role"`
	Room     string          `json:"room"`
	JoinedAt time.Time       `json:"joined_at"`
}

// CallSession is one caller's conversation, from first contact through an
// optional warm transfer. The store is the sole owner; everything outside
// receives snapshots.
type CallSession struct {
	ID     string
	Caller string
	AgentA string
	AgentB string // set when a transfer begins
	State  CallState

	OriginalRoom string
	TransferRoom string
	FinalRoom    string

	TransferReason string
	CallSummary    string

	CreatedAt    time.Time
	Participants []Participant
}

// SessionSnapshot is a point-in-time copy of a session, safe to retain and
// serialize.
type SessionSnapshot struct {
	ID             string        `json:"session_id"`
	Caller         string        `json:"caller_identity"`
	AgentA         string        `json:"agent_a,omitempty"`
	AgentB         string        `json:"agent_b,omitempty"`
	State          CallState     `json:"state"`
	OriginalRoom   string        `json:"original_room,omitempty"`
	TransferRoom   string        `json:"transfer_room,omitempty"`
	FinalRoom      string        `json:"final_room,omitempty"`
	TransferReason string        `json:"transfer_reason,omitempty"`
	CallSummary    string        `json:"call_summary,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Participants   []Participant `json:"participants,omitempty"`
}

// snapshot copies the session. Callers must hold the store lock.
func (s *CallSession) snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:             s.ID,
		Caller:         s.Caller,
		AgentA:         s.AgentA,
		AgentB:         s.AgentB,
		State:          s.State,
		OriginalRoom:   s.OriginalRoom,
		TransferRoom:   s.TransferRoom,
		FinalRoom:      s.FinalRoom,
		TransferReason: s.TransferReason,
		CallSummary:    s.CallSummary,
		CreatedAt:      s.CreatedAt,
	}
	if len(s.Participants) > 0 {
		snap.Participants = make([]Participant, len(s.Participants))
		copy(snap.Participants, s.Participants)
	}
	return snap
}

// SessionID derives a session id from the caller identity and the creation
// time. Second granularity; rapid repeats from the same caller collide and
// surface as a conflict at the store.
func SessionID(caller string, at time.Time) string {
	return fmt.Sprintf("session_%s_%s", at.Format("20060102_150405"), caller)
}

// OriginalRoomName is the room created when a session starts.
func OriginalRoomName(sessionID string) string {
	return "call_" + sessionID
}

// TransferRoomName is the private room where agent A briefs agent B.
func TransferRoomName(sessionID string, at time.Time) string {
	return fmt.Sprintf("transfer_%s_%s", sessionID, at.Format("150405"))
}

// FinalRoomName is the room where the caller continues with agent B.
func FinalRoomName(sessionID string) string {
	return "final_" + sessionID
}
