package core

import "time"

// AgentRole distinguishes first-contact agents from transfer specialists.
type AgentRole string

const (
	RoleAgentA AgentRole = "agent_a" // first contact, may initiate transfers
	RoleAgentB AgentRole = "agent_b" // specialist receiving transfers
)

// Valid reports whether the role is one of the two known roles.
func (r AgentRole) Valid() bool {
	return r == RoleAgentA || r == RoleAgentB
}

// AgentState is the lifecycle state of an agent.
type AgentState string

const (
	AgentIdle       AgentState = "idle"
	AgentInCall     AgentState = "in_call"
	AgentInTransfer AgentState = "in_transfer"
	AgentOffline    AgentState = "offline"
)

// agentTransitions lists the legal agent state transitions. Any state may
// additionally move to offline administratively.
var agentTransitions = map[AgentState][]AgentState{
	AgentIdle:       {AgentInCall},
	AgentInCall:     {AgentInTransfer, AgentIdle},
	AgentInTransfer: {AgentIdle, AgentInCall},
	AgentOffline:    {AgentIdle},
}

// CanTransition reports whether s -> to is a legal agent transition.
func (s AgentState) CanTransition(to AgentState) bool {
	if to == AgentOffline {
		return true
	}
	for _, next := range agentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Agent is a call participant tracked by the registry. Registered once,
// it lives for the process lifetime and moves only through validated state
// transitions. The registry is the sole owner; everything outside receives
// snapshots.
type Agent struct {
	Identity  string
	Name      string
	Role      AgentRole
	Specialty string // role B only

	State          AgentState
	CurrentSession string // session id, empty when not engaged
	Transcript     Transcript

	// TransferContext holds the briefing delivered to a role B agent during
	// a warm transfer. Retained after the call ends for review.
	TransferContext *TransferContext
}

// AgentSnapshot is a point-in-time copy of an agent, safe to retain and
// serialize.
type AgentSnapshot struct {
	Identity        string           `json:"identity"`
	Name            string           `json:"name"`
	Role            AgentRole        `json:"role"`
	Specialty       string           `json:"specialty,omitempty"`
	State           AgentState       `json:"state"`
	CurrentSession  string           `json:"current_session,omitempty"`
	Transcript      Transcript       `json:"transcript,omitempty"`
	TransferContext *TransferContext `json:"transfer_context,omitempty"`
}

// snapshot copies the agent. Callers must hold the registry lock.
func (a *Agent) snapshot() AgentSnapshot {
	snap := AgentSnapshot{
		Identity:       a.Identity,
		Name:           a.Name,
		Role:           a.Role,
		Specialty:      a.Specialty,
		State:          a.State,
		CurrentSession: a.CurrentSession,
		Transcript:     a.Transcript.Clone(),
	}
	if a.TransferContext != nil {
		tc := *a.TransferContext
		snap.TransferContext = &tc
	}
	return snap
}

// TransferContext is the briefing delivered to agent B when a transfer is
// explained.
type TransferContext struct {
	Explanation string    `json:"explanation"`
	Summary     string    `json:"summary"`
	ReceivedAt  time.Time `json:"received_at"`
}
