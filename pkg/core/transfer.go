package core

import "time"

// TransferRecord is the ephemeral state of an in-flight warm transfer,
// keyed by session id. Created when a transfer is initiated, consumed by
// the explain and complete phases, discarded once the session reaches
// transferred or ended.
type TransferRecord struct {
	SessionID    string    `json:"session_id"`
	AgentB       string    `json:"agent_b"`
	Reason       string    `json:"reason"`
	CallSummary  string    `json:"call_summary"`
	TransferRoom string    `json:"transfer_room"`
	InitiatedAt  time.Time `json:"initiated_at"`

	// Phase guards. A phase sets its flag while its collaborator call runs
	// outside the session lock so an overlapping attempt is rejected instead
	// of racing.
	Explaining bool `json:"-"`
	Completing bool `json:"-"`
}
