package orchestrator

import (
	"time"

	"github.com/warmline/warmline/pkg/core"
)

// Event types published by the orchestrator.
const (
	EventSessionCreated    = "session_created"
	EventSessionState      = "session_state"
	EventSessionJoined     = "session_joined"
	EventTransferInitiated = "transfer_initiated"
	EventTransferExplained = "transfer_explained"
	EventTransferCompleted = "transfer_completed"
	EventSessionEnded      = "session_ended"
	EventAgentState        = "agent_state"
)

// Event is a state-change notification pushed to transport subscribers.
// Payloads are snapshots; receivers never observe live entities.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	State     string         `json:"state,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// Sink receives orchestration events. Implementations must not block; the
// orchestrator publishes from inside request handling.
type Sink interface {
	Publish(Event)
}

// Observer receives operation telemetry.
type Observer interface {
	PhaseObserved(phase, outcome string, elapsed time.Duration)
	CollaboratorObserved(collaborator, op string, elapsed time.Duration, err error)
	SessionsActive(n int)
}

func (o *Orchestrator) publish(ev Event) {
	if o.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = o.now()
	}
	o.events.Publish(ev)
}

func (o *Orchestrator) publishAgentState(snap core.AgentSnapshot) {
	o.publish(Event{
		Type:  EventAgentState,
		Agent: snap.Identity,
		State: string(snap.State),
		Data: map[string]any{
			"role":            snap.Role,
			"current_session": snap.CurrentSession,
		},
	})
}

func (o *Orchestrator) observePhase(phase, outcome string, started time.Time) {
	if o.observer == nil {
		return
	}
	o.observer.PhaseObserved(phase, outcome, time.Since(started))
}

func (o *Orchestrator) observeCollaborator(collaborator, op string, started time.Time, err error) {
	if o.observer == nil {
		return
	}
	o.observer.CollaboratorObserved(collaborator, op, time.Since(started), err)
}

func (o *Orchestrator) observeSessions() {
	if o.observer == nil {
		return
	}
	o.observer.SessionsActive(o.sessions.ActiveLen())
}
