// Package orchestrator drives the warm-transfer protocol: it owns the
// coupling between the agent and session state machines, serializes work per
// session, and calls the room provider and summarizer with timeouts, outside
// any held lock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warmline/warmline/pkg/core"
)

const (
	agentAGreeting = "Hello! This is Agent A. How can I help you today?"

	// speaker labels used in transcripts and summary prompts
	speakerAgentA = "Agent A"
	speakerAgentB = "Agent B"

	originalRoomCapacity = 3
	transferRoomCapacity = 2
	finalRoomCapacity    = 2

	defaultUpstreamTimeout = 15 * time.Second
)

// Options configures an Orchestrator. Zero values get sensible defaults.
type Options struct {
	Logger          *slog.Logger
	Events          Sink
	Observer        Observer
	UpstreamTimeout time.Duration
	Now             func() time.Time
}

// Orchestrator is the protocol engine. One instance is built at process
// start and shared by the transport layer; it holds no global state.
type Orchestrator struct {
	logger     *slog.Logger
	agents     *core.AgentRegistry
	sessions   *core.SessionStore
	rooms      core.RoomProvider
	summarizer core.Summarizer
	events     Sink
	observer   Observer

	upstreamTimeout time.Duration
	now             func() time.Time

	locks *sessionLocks

	mu        sync.Mutex
	transfers map[string]*core.TransferRecord
}

// New creates an Orchestrator over the given registry, store and
// collaborators.
func New(agents *core.AgentRegistry, sessions *core.SessionStore, rooms core.RoomProvider, summarizer core.Summarizer, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.UpstreamTimeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		logger:          logger,
		agents:          agents,
		sessions:        sessions,
		rooms:           rooms,
		summarizer:      summarizer,
		events:          opts.Events,
		observer:        opts.Observer,
		upstreamTimeout: timeout,
		now:             now,
		locks:           newSessionLocks(),
		transfers:       make(map[string]*core.TransferRecord),
	}
}

// CreateSessionResult is the outcome of a successful session creation.
type CreateSessionResult struct {
	Session core.SessionSnapshot
	AgentA  core.AgentSnapshot
}

// CreateSession reserves an Agent A, creates the original room and records
// the new session in waiting state. When agentAHint is empty the first idle
// Agent A is reserved atomically; a named agent is engaged directly.
func (o *Orchestrator) CreateSession(ctx context.Context, caller, agentAHint string) (CreateSessionResult, error) {
	if caller == "" {
		return CreateSessionResult{}, core.NewValidationErrorWithParam("caller identity is required", "caller_identity")
	}

	now := o.now()
	sessionID := core.SessionID(caller, now)

	agentA, err := o.reserveAgentA(agentAHint, sessionID)
	if err != nil {
		return CreateSessionResult{}, err
	}

	// Fresh call, fresh transcript. The greeting is the first turn.
	if err := o.agents.ResetTranscript(agentA.Identity); err != nil {
		o.releaseAgent(agentA.Identity, sessionID)
		return CreateSessionResult{}, err
	}
	if err := o.agents.AppendTranscript(agentA.Identity, core.Turn{
		Speaker:   speakerAgentA,
		Text:      agentAGreeting,
		Timestamp: now,
	}); err != nil {
		o.releaseAgent(agentA.Identity, sessionID)
		return CreateSessionResult{}, err
	}

	roomName := core.OriginalRoomName(sessionID)
	if _, err := o.createRoom(ctx, roomName, originalRoomCapacity); err != nil {
		o.releaseAgent(agentA.Identity, sessionID)
		return CreateSessionResult{}, err
	}

	session := core.CallSession{
		ID:           sessionID,
		Caller:       caller,
		AgentA:       agentA.Identity,
		State:        core.CallWaiting,
		OriginalRoom: roomName,
		CreatedAt:    now,
	}
	if err := o.sessions.Create(session); err != nil {
		o.releaseAgent(agentA.Identity, sessionID)
		return CreateSessionResult{}, err
	}
	if err := o.agents.Assign(sessionID, agentA.Identity); err != nil {
		o.logger.Error("assign after create failed", "session_id", sessionID, "agent", agentA.Identity, "error", err)
	}

	snap, _ := o.sessions.Get(sessionID)
	agentSnap, _ := o.agents.Get(agentA.Identity)

	o.logger.Info("session created",
		"session_id", sessionID,
		"caller", caller,
		"agent_a", agentA.Identity,
		"room", roomName)
	o.publish(Event{
		Type:      EventSessionCreated,
		SessionID: sessionID,
		State:     string(snap.State),
		Data: map[string]any{
			"caller":  caller,
			"agent_a": agentA.Identity,
			"room":    roomName,
		},
	})
	o.publishAgentState(agentSnap)
	o.observeSessions()

	return CreateSessionResult{Session: snap, AgentA: agentSnap}, nil
}

func (o *Orchestrator) reserveAgentA(hint, sessionID string) (core.AgentSnapshot, error) {
	if hint == "" {
		snap, ok := o.agents.Acquire(core.RoleAgentA, "", core.AgentInCall, sessionID)
		if !ok {
			return core.AgentSnapshot{}, &core.Error{
				Type:    core.ErrConflict,
				Message: "no Agent A is available",
				Code:    core.CodeNoAgentAvailable,
			}
		}
		return snap, nil
	}

	snap, ok := o.agents.Get(hint)
	if !ok {
		return core.AgentSnapshot{}, core.NewNotFoundError(fmt.Sprintf("agent %q does not exist", hint))
	}
	if snap.Role != core.RoleAgentA {
		return core.AgentSnapshot{}, core.NewValidationErrorWithParam(fmt.Sprintf("agent %q cannot take first contact", hint), "agent_a_identity")
	}
	if err := o.agents.Engage(hint, sessionID); err != nil {
		return core.AgentSnapshot{}, err
	}
	snap, _ = o.agents.Get(hint)
	return snap, nil
}

// releaseAgent puts an agent back to idle if it is still bound to the given
// session. Used on failure paths; errors are logged, not returned.
func (o *Orchestrator) releaseAgent(identity, sessionID string) {
	snap, ok := o.agents.Get(identity)
	if !ok || snap.CurrentSession != sessionID {
		return
	}
	if snap.State != core.AgentInCall && snap.State != core.AgentInTransfer {
		return
	}
	if err := o.agents.SetState(identity, core.AgentIdle); err != nil {
		o.logger.Warn("release agent failed", "agent", identity, "error", err)
	}
}

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Token    string
	RoomName string
	Role     core.ParticipantRole
}

// Join issues a credential for the session's original room and records the
// participant. The session moves waiting -> connected when the assigned
// Agent A joins.
func (o *Orchestrator) Join(ctx context.Context, sessionID, identity string, role core.ParticipantRole) (JoinResult, error) {
	if identity == "" {
		return JoinResult{}, core.NewValidationErrorWithParam("identity is required", "identity")
	}

	unlock := o.locks.acquire(sessionID)
	snap, ok := o.sessions.Get(sessionID)
	if !ok {
		unlock()
		return JoinResult{}, core.NewNotFoundError(fmt.Sprintf("session %q does not exist", sessionID))
	}
	if snap.State == core.CallEnded {
		unlock()
		return JoinResult{}, core.NewStateViolationError(fmt.Sprintf("session %q has ended", sessionID))
	}
	if role == "" {
		role = inferRole(snap, identity)
	}
	if !role.Valid() {
		unlock()
		return JoinResult{}, core.NewValidationErrorWithParam(fmt.Sprintf("unknown participant role %q", role), "role")
	}
	if role == core.ParticipantAgentA && identity != snap.AgentA {
		unlock()
		return JoinResult{}, core.NewValidationErrorWithParam(fmt.Sprintf("agent %q is not assigned to session %s", identity, sessionID), "identity")
	}
	if role == core.ParticipantAgentB && identity != snap.AgentB {
		unlock()
		return JoinResult{}, core.NewValidationErrorWithParam(fmt.Sprintf("agent %q is not the transfer target of session %s", identity, sessionID), "identity")
	}
	roomName := snap.OriginalRoom
	unlock()

	profile := core.ProfileCaller
	if role != core.ParticipantCaller {
		profile = core.ProfileAgent
	}
	token, err := o.issueToken(ctx, identity, roomName, profile)
	if err != nil {
		return JoinResult{}, err
	}

	unlock = o.locks.acquire(sessionID)
	defer unlock()
	var transitioned bool
	err = o.sessions.Update(sessionID, func(sess *core.CallSession) error {
		if sess.State == core.CallEnded {
			return core.NewStateViolationError(fmt.Sprintf("session %q ended while joining", sessionID))
		}
		upsertParticipant(sess, core.Participant{
			Identity: identity,
			Role:     role,
			Room:     roomName,
			JoinedAt: o.now(),
		})
		if role == core.ParticipantAgentA && sess.State == core.CallWaiting {
			sess.State = core.CallConnected
			transitioned = true
		}
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	o.logger.Info("participant joined",
		"session_id", sessionID,
		"identity", identity,
		"role", role,
		"room", roomName)
	o.publish(Event{
		Type:      EventSessionJoined,
		SessionID: sessionID,
		Agent:     identity,
		Data: map[string]any{
			"role": role,
			"room": roomName,
		},
	})
	if transitioned {
		sessSnap, _ := o.sessions.Get(sessionID)
		o.publish(Event{
			Type:      EventSessionState,
			SessionID: sessionID,
			State:     string(sessSnap.State),
		})
	}

	return JoinResult{Token: token, RoomName: roomName, Role: role}, nil
}

func inferRole(snap core.SessionSnapshot, identity string) core.ParticipantRole {
	switch identity {
	case snap.AgentA:
		return core.ParticipantAgentA
	case snap.AgentB:
		return core.ParticipantAgentB
	default:
		return core.ParticipantCaller
	}
}

func upsertParticipant(sess *core.CallSession, p core.Participant) {
	for i := range sess.Participants {
		if sess.Participants[i].Identity == p.Identity && sess.Participants[i].Room == p.Room {
			sess.Participants[i] = p
			return
		}
	}
	sess.Participants = append(sess.Participants, p)
}

// EndSession moves the session to its terminal state, releases both agents
// and discards any transfer record. Participants are removed from the
// original room best-effort afterwards.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) (core.SessionSnapshot, error) {
	unlock := o.locks.acquire(sessionID)

	snap, ok := o.sessions.Get(sessionID)
	if !ok {
		unlock()
		return core.SessionSnapshot{}, core.NewNotFoundError(fmt.Sprintf("session %q does not exist", sessionID))
	}
	if snap.State == core.CallEnded {
		unlock()
		return core.SessionSnapshot{}, core.NewStateViolationError(fmt.Sprintf("session %q has already ended", sessionID))
	}

	err := o.sessions.Update(sessionID, func(sess *core.CallSession) error {
		if !sess.State.CanTransition(core.CallEnded) {
			return core.NewStateViolationError(fmt.Sprintf("session %q cannot end from state %s", sessionID, sess.State))
		}
		sess.State = core.CallEnded
		return nil
	})
	if err != nil {
		unlock()
		return core.SessionSnapshot{}, err
	}

	o.releaseAgent(snap.AgentA, sessionID)
	if snap.AgentB != "" {
		o.releaseAgent(snap.AgentB, sessionID)
	}
	o.dropTransfer(sessionID)
	o.agents.Unassign(sessionID)

	ended, _ := o.sessions.Get(sessionID)
	unlock()

	for _, p := range ended.Participants {
		if err := o.removeParticipant(ctx, p.Room, p.Identity); err != nil {
			o.logger.Warn("remove participant failed",
				"session_id", sessionID,
				"identity", p.Identity,
				"room", p.Room,
				"error", err)
		}
	}

	o.logger.Info("session ended", "session_id", sessionID, "state_before", snap.State)
	o.publish(Event{
		Type:      EventSessionEnded,
		SessionID: sessionID,
		State:     string(core.CallEnded),
	})
	for _, identity := range []string{ended.AgentA, ended.AgentB} {
		if identity == "" {
			continue
		}
		if agentSnap, ok := o.agents.Get(identity); ok {
			o.publishAgentState(agentSnap)
		}
	}
	o.observeSessions()

	return ended, nil
}

// GetSession returns a snapshot of one session.
func (o *Orchestrator) GetSession(sessionID string) (core.SessionSnapshot, error) {
	snap, ok := o.sessions.Get(sessionID)
	if !ok {
		return core.SessionSnapshot{}, core.NewNotFoundError(fmt.Sprintf("session %q does not exist", sessionID))
	}
	return snap, nil
}

// ListSessions returns snapshots of all sessions, oldest first.
func (o *Orchestrator) ListSessions() []core.SessionSnapshot {
	return o.sessions.List()
}

// GetAgent returns a snapshot of one agent.
func (o *Orchestrator) GetAgent(identity string) (core.AgentSnapshot, error) {
	snap, ok := o.agents.Get(identity)
	if !ok {
		return core.AgentSnapshot{}, core.NewNotFoundError(fmt.Sprintf("agent %q does not exist", identity))
	}
	return snap, nil
}

// ListAgents returns snapshots of all agents in registration order.
func (o *Orchestrator) ListAgents() []core.AgentSnapshot {
	return o.agents.List()
}

// FirstAvailableAgentB returns an advisory pick for a transfer target.
func (o *Orchestrator) FirstAvailableAgentB(specialty string) (core.AgentSnapshot, bool) {
	return o.agents.FirstAvailable(core.RoleAgentB, specialty)
}

// IssueRoomToken issues a credential for one of the session's rooms. The
// transport uses it to hand both agents into the transfer room once a
// transfer is initiated.
func (o *Orchestrator) IssueRoomToken(ctx context.Context, identity, roomName string, profile core.RoomProfile) (string, error) {
	return o.issueToken(ctx, identity, roomName, profile)
}

// Collaborator wrappers. Each applies the upstream timeout, records
// telemetry and returns a classified error.

func (o *Orchestrator) createRoom(ctx context.Context, name string, capacity int) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.upstreamTimeout)
	defer cancel()
	started := time.Now()
	id, err := o.rooms.CreateRoom(cctx, name, capacity)
	o.observeCollaborator("rooms", "create_room", started, err)
	if err != nil {
		return "", o.upstreamError("room provider", core.CodeRoomCreateFailed, err)
	}
	return id, nil
}

func (o *Orchestrator) issueToken(ctx context.Context, identity, roomName string, profile core.RoomProfile) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.upstreamTimeout)
	defer cancel()
	started := time.Now()
	token, err := o.rooms.IssueToken(cctx, identity, roomName, profile)
	o.observeCollaborator("rooms", "issue_token", started, err)
	if err != nil {
		return "", o.upstreamError("room provider", core.CodeTokenIssueFailed, err)
	}
	return token, nil
}

func (o *Orchestrator) removeParticipant(ctx context.Context, roomName, identity string) error {
	cctx, cancel := context.WithTimeout(ctx, o.upstreamTimeout)
	defer cancel()
	started := time.Now()
	err := o.rooms.RemoveParticipant(cctx, roomName, identity)
	o.observeCollaborator("rooms", "remove_participant", started, err)
	return err
}

func (o *Orchestrator) summarize(ctx context.Context, transcript core.Transcript) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.upstreamTimeout)
	defer cancel()
	started := time.Now()
	text, err := o.summarizer.Summarize(cctx, transcript)
	o.observeCollaborator("summarizer", "summarize", started, err)
	if err != nil {
		return "", o.upstreamError("summarizer", core.CodeSummaryFailed, err)
	}
	return text, nil
}

func (o *Orchestrator) explain(ctx context.Context, summary, reason, targetContext string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.upstreamTimeout)
	defer cancel()
	started := time.Now()
	text, err := o.summarizer.Explain(cctx, summary, reason, targetContext)
	o.observeCollaborator("summarizer", "explain", started, err)
	if err != nil {
		return "", o.upstreamError("summarizer", core.CodeExplainFailed, err)
	}
	return text, nil
}

func (o *Orchestrator) upstreamError(collaborator, code string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewUpstreamErrorCode(collaborator, core.CodeUpstreamTimeout, err)
	}
	return core.NewUpstreamErrorCode(collaborator, code, err)
}
