package core

import (
	"fmt"
	"sync"
	"time"
)

// AgentRegistry owns every Agent entity plus the session to agent
// assignment map. All mutation happens under one lock through validated
// transitions, so an availability check and the reservation it implies are
// a single atomic step.
type AgentRegistry struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	order    []string          // registration order, availability tie-break
	assigned map[string]string // session id -> responsible agent identity
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		agents:   make(map[string]*Agent),
		assigned: make(map[string]string),
	}
}

// Register adds an agent. Identities must be unique.
func (r *AgentRegistry) Register(a Agent) error {
	if a.Identity == "" {
		return NewValidationErrorWithParam("agent identity is required", "identity")
	}
	if !a.Role.Valid() {
		return NewValidationErrorWithParam(fmt.Sprintf("unknown agent role %q", a.Role), "role")
	}
	if a.State == "" {
		a.State = AgentIdle
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.Identity]; exists {
		return &Error{
			Type:    ErrConflict,
			Message: fmt.Sprintf("agent %q is already registered", a.Identity),
			Code:    CodeDuplicateIdentity,
		}
	}
	agent := a
	r.agents[a.Identity] = &agent
	r.order = append(r.order, a.Identity)
	return nil
}

// Get returns a snapshot of the named agent.
func (r *AgentRegistry) Get(identity string) (AgentSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[identity]
	if !ok {
		return AgentSnapshot{}, false
	}
	return a.snapshot(), true
}

// List returns snapshots of all agents in registration order.
func (r *AgentRegistry) List() []AgentSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentSnapshot, 0, len(r.order))
	for _, identity := range r.order {
		out = append(out, r.agents[identity].snapshot())
	}
	return out
}

// Acquire finds an idle agent of the given role and atomically transitions
// it to target, bound to sessionID. Specialty, when non-empty, must match
// exactly. Ties break by registration order. The lookup and the reservation
// are one step; two concurrent callers can never both reserve the same
// agent.
func (r *AgentRegistry) Acquire(role AgentRole, specialty string, target AgentState, sessionID string) (AgentSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, identity := range r.order {
		a := r.agents[identity]
		if a.Role != role || a.State != AgentIdle {
			continue
		}
		if specialty != "" && a.Specialty != specialty {
			continue
		}
		if !a.State.CanTransition(target) {
			continue
		}
		a.State = target
		a.CurrentSession = sessionID
		return a.snapshot(), true
	}
	return AgentSnapshot{}, false
}

// FirstAvailable returns the first idle agent of the role without reserving
// it. Advisory only: callers that need exclusivity use Acquire or the
// validated transitions.
func (r *AgentRegistry) FirstAvailable(role AgentRole, specialty string) (AgentSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, identity := range r.order {
		a := r.agents[identity]
		if a.Role != role || a.State != AgentIdle {
			continue
		}
		if specialty != "" && a.Specialty != specialty {
			continue
		}
		return a.snapshot(), true
	}
	return AgentSnapshot{}, false
}

// Engage transitions an agent into a call bound to sessionID. Engaging an
// agent already in the same session is a no-op, so a retried delivery does
// not fail.
func (r *AgentRegistry) Engage(identity, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[identity]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("agent %q is not registered", identity))
	}
	if a.State == AgentInCall && a.CurrentSession == sessionID {
		return nil
	}
	if a.CurrentSession != "" && a.CurrentSession != sessionID {
		return NewConflictError(fmt.Sprintf("agent %q is engaged in session %s", identity, a.CurrentSession))
	}
	if !a.State.CanTransition(AgentInCall) {
		return NewStateViolationError(fmt.Sprintf("agent %q cannot enter a call from state %s", identity, a.State))
	}
	a.State = AgentInCall
	a.CurrentSession = sessionID
	return nil
}

// SetState applies a validated state transition. Entering in_transfer
// requires a current session; entering idle or offline clears it.
func (r *AgentRegistry) SetState(identity string, to AgentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[identity]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("agent %q is not registered", identity))
	}
	if !a.State.CanTransition(to) {
		return NewStateViolationError(fmt.Sprintf("agent %q cannot move %s -> %s", identity, a.State, to))
	}
	if to == AgentInTransfer && a.CurrentSession == "" {
		return NewStateViolationError(fmt.Sprintf("agent %q has no current session to transfer", identity))
	}
	a.State = to
	if to == AgentIdle || to == AgentOffline {
		a.CurrentSession = ""
	}
	return nil
}

// Assign records the agent currently responsible for a session.
func (r *AgentRegistry) Assign(sessionID, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[identity]; !ok {
		return NewNotFoundError(fmt.Sprintf("agent %q is not registered", identity))
	}
	r.assigned[sessionID] = identity
	return nil
}

// SessionAgent returns the agent currently responsible for a session.
func (r *AgentRegistry) SessionAgent(sessionID string) (AgentSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.assigned[sessionID]
	if !ok {
		return AgentSnapshot{}, false
	}
	a, ok := r.agents[identity]
	if !ok {
		return AgentSnapshot{}, false
	}
	return a.snapshot(), true
}

// Unassign drops the session's assignment entry.
func (r *AgentRegistry) Unassign(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assigned, sessionID)
}

// ResetTranscript clears the agent's transcript at the start of a new call.
func (r *AgentRegistry) ResetTranscript(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[identity]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("agent %q is not registered", identity))
	}
	a.Transcript = nil
	return nil
}

// AppendTranscript appends one turn to the agent's transcript.
func (r *AgentRegistry) AppendTranscript(identity string, turn Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[identity]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("agent %q is not registered", identity))
	}
	a.Transcript = append(a.Transcript, turn)
	return nil
}

// SetTransferContext stores the briefing delivered to a role B agent.
func (r *AgentRegistry) SetTransferContext(identity string, tc TransferContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[identity]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("agent %q is not registered", identity))
	}
	if a.Role != RoleAgentB {
		return NewValidationErrorWithParam(fmt.Sprintf("agent %q does not receive transfers", identity), "identity")
	}
	if tc.ReceivedAt.IsZero() {
		tc.ReceivedAt = time.Now()
	}
	a.TransferContext = &tc
	return nil
}
