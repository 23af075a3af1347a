package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/warmline/warmline/pkg/core"
)

// summaryPlaceholder stands in for the handoff summary when the summarizer
// fails during initiation. Degraded accuracy is accepted at that phase;
// the transfer itself must not abort.
const summaryPlaceholder = "Customer inquiry requiring specialized assistance"

// InitiateResult is the outcome of a successful transfer initiation.
type InitiateResult struct {
	TransferRoom string
	Summary      string
	AgentB       core.AgentSnapshot
}

// InitiateTransfer runs phase 1 of the warm transfer: agent A steps into
// in_transfer, the conversation is summarized (placeholder on failure) and
// the private transfer room is created. The session commits to transferring
// only after the room exists.
func (o *Orchestrator) InitiateTransfer(ctx context.Context, sessionID, agentB, reason string) (InitiateResult, error) {
	started := time.Now()
	res, err := o.initiateTransfer(ctx, sessionID, agentB, reason)
	o.observePhase("initiate", outcomeOf(err), started)
	return res, err
}

func (o *Orchestrator) initiateTransfer(ctx context.Context, sessionID, agentB, reason string) (InitiateResult, error) {
	if sessionID == "" {
		return InitiateResult{}, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if agentB == "" {
		return InitiateResult{}, core.NewValidationErrorWithParam("transfer target is required", "agent_b_identity")
	}

	bSnap, ok := o.agents.Get(agentB)
	if !ok {
		return InitiateResult{}, core.NewNotFoundError(fmt.Sprintf("agent %q does not exist", agentB))
	}
	if bSnap.Role != core.RoleAgentB {
		return InitiateResult{}, core.NewValidationErrorWithParam(fmt.Sprintf("agent %q cannot receive transfers", agentB), "agent_b_identity")
	}
	if bSnap.State == core.AgentOffline {
		return InitiateResult{}, core.NewConflictError(fmt.Sprintf("agent %q is offline", agentB))
	}
	if bSnap.CurrentSession != "" && bSnap.CurrentSession != sessionID {
		return InitiateResult{}, core.NewConflictError(fmt.Sprintf("agent %q is engaged in session %s", agentB, bSnap.CurrentSession))
	}

	unlock := o.locks.acquire(sessionID)
	sessSnap, ok := o.sessions.Get(sessionID)
	if !ok {
		unlock()
		return InitiateResult{}, core.NewNotFoundError(fmt.Sprintf("session %q does not exist", sessionID))
	}
	if sessSnap.State != core.CallConnected {
		unlock()
		return InitiateResult{}, core.NewStateViolationError(fmt.Sprintf("session %q is not connected (state %s)", sessionID, sessSnap.State))
	}
	agentA := sessSnap.AgentA

	// Moving agent A to in_transfer inside the locked section doubles as the
	// guard against a second concurrent initiation: the loser fails the
	// transition and commits nothing.
	if err := o.agents.SetState(agentA, core.AgentInTransfer); err != nil {
		unlock()
		return InitiateResult{}, err
	}
	aSnap, _ := o.agents.Get(agentA)
	transcript := aSnap.Transcript
	unlock()

	summary, err := o.summarize(ctx, transcript)
	if err != nil {
		o.logger.Warn("summarize failed, using placeholder",
			"session_id", sessionID,
			"error", err)
		summary = summaryPlaceholder
	}

	now := o.now()
	roomName := core.TransferRoomName(sessionID, now)
	if _, err := o.createRoom(ctx, roomName, transferRoomCapacity); err != nil {
		o.rollbackInitiate(sessionID, agentA)
		return InitiateResult{}, err
	}

	unlock = o.locks.acquire(sessionID)
	defer unlock()

	// The room call ran unlocked; the session may have moved meanwhile.
	sessSnap, ok = o.sessions.Get(sessionID)
	aSnap, aOK := o.agents.Get(agentA)
	if !ok || sessSnap.State != core.CallConnected ||
		!aOK || aSnap.State != core.AgentInTransfer || aSnap.CurrentSession != sessionID {
		return InitiateResult{}, core.NewStateViolationError(fmt.Sprintf("session %q changed while initiating transfer", sessionID))
	}

	record := core.TransferRecord{
		SessionID:    sessionID,
		AgentB:       agentB,
		Reason:       reason,
		CallSummary:  summary,
		TransferRoom: roomName,
		InitiatedAt:  now,
	}
	err = o.sessions.Update(sessionID, func(sess *core.CallSession) error {
		if !sess.State.CanTransition(core.CallTransferring) {
			return core.NewStateViolationError(fmt.Sprintf("session %q cannot start a transfer from state %s", sessionID, sess.State))
		}
		sess.AgentB = agentB
		sess.TransferRoom = roomName
		sess.TransferReason = reason
		sess.CallSummary = summary
		sess.State = core.CallTransferring
		return nil
	})
	if err != nil {
		return InitiateResult{}, err
	}
	o.putTransfer(record)
	// Responsibility for the session passes to agent B once the record
	// exists.
	if err := o.agents.Assign(sessionID, agentB); err != nil {
		o.logger.Error("assign transfer target failed", "session_id", sessionID, "agent_b", agentB, "error", err)
	}

	o.logger.Info("transfer initiated",
		"session_id", sessionID,
		"agent_a", agentA,
		"agent_b", agentB,
		"transfer_room", roomName,
		"reason", reason)
	o.publish(Event{
		Type:      EventTransferInitiated,
		SessionID: sessionID,
		State:     string(core.CallTransferring),
		Data: map[string]any{
			"agent_a":       agentA,
			"agent_b":       agentB,
			"transfer_room": roomName,
			"reason":        reason,
		},
	})
	if snap, ok := o.agents.Get(agentA); ok {
		o.publishAgentState(snap)
	}

	bSnap, _ = o.agents.Get(agentB)
	return InitiateResult{TransferRoom: roomName, Summary: summary, AgentB: bSnap}, nil
}

// rollbackInitiate returns agent A to in_call after a failed room creation,
// provided the transfer is still the agent's live state.
func (o *Orchestrator) rollbackInitiate(sessionID, agentA string) {
	unlock := o.locks.acquire(sessionID)
	defer unlock()
	snap, ok := o.agents.Get(agentA)
	if !ok || snap.State != core.AgentInTransfer || snap.CurrentSession != sessionID {
		return
	}
	if err := o.agents.SetState(agentA, core.AgentInCall); err != nil {
		o.logger.Warn("rollback to in_call failed", "agent", agentA, "error", err)
	}
}

// ExplainTransfer runs phase 2: the summarizer turns the recorded summary
// and reason into a spoken briefing, which is delivered to agent B. There
// is no fallback; a failed explanation stops the transfer here.
func (o *Orchestrator) ExplainTransfer(ctx context.Context, sessionID, agentA, agentB string) (string, error) {
	started := time.Now()
	text, err := o.explainTransfer(ctx, sessionID, agentA, agentB)
	o.observePhase("explain", outcomeOf(err), started)
	return text, err
}

func (o *Orchestrator) explainTransfer(ctx context.Context, sessionID, agentA, agentB string) (string, error) {
	if sessionID == "" {
		return "", core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if agentA == "" || agentB == "" {
		return "", core.NewValidationError("both agent identities are required")
	}

	unlock := o.locks.acquire(sessionID)
	record, err := o.beginExplain(sessionID)
	if err != nil {
		unlock()
		return "", err
	}
	if record.AgentB != agentB {
		o.endExplain(sessionID)
		unlock()
		return "", core.NewValidationErrorWithParam(fmt.Sprintf("agent %q is not the transfer target", agentB), "agent_b_identity")
	}
	sessSnap, ok := o.sessions.Get(sessionID)
	if !ok || sessSnap.AgentA != agentA {
		o.endExplain(sessionID)
		unlock()
		return "", core.NewValidationErrorWithParam(fmt.Sprintf("agent %q did not initiate this transfer", agentA), "agent_a_identity")
	}
	bSnap, ok := o.agents.Get(agentB)
	if !ok {
		o.endExplain(sessionID)
		unlock()
		return "", core.NewNotFoundError(fmt.Sprintf("agent %q does not exist", agentB))
	}
	targetContext := agentBContext(bSnap)
	unlock()

	explanation, explainErr := o.explain(ctx, record.CallSummary, record.Reason, targetContext)

	unlock = o.locks.acquire(sessionID)
	defer unlock()
	o.endExplain(sessionID)

	if explainErr != nil {
		return "", explainErr
	}

	// Re-validate: the record disappears when the session ends mid-flight.
	if _, ok := o.transferSnapshot(sessionID); !ok {
		return "", core.NewStateViolationError(fmt.Sprintf("session %q changed while explaining transfer", sessionID))
	}

	// Delivery. Engaging agent B first keeps a failed delivery atomic: a
	// busy agent rejects the briefing before any transcript changes.
	if err := o.agents.Engage(agentB, sessionID); err != nil {
		return "", err
	}
	now := o.now()
	if err := o.agents.AppendTranscript(agentA, core.Turn{
		Speaker:   speakerAgentA,
		Text:      fmt.Sprintf("[Transfer explanation to %s]: %s", agentB, explanation),
		Timestamp: now,
	}); err != nil {
		o.logger.Warn("append transfer note failed", "agent", agentA, "error", err)
	}
	if err := o.agents.SetTransferContext(agentB, core.TransferContext{
		Explanation: explanation,
		Summary:     record.CallSummary,
		ReceivedAt:  now,
	}); err != nil {
		return "", err
	}
	if err := o.agents.AppendTranscript(agentB, core.Turn{
		Speaker:   speakerAgentA,
		Text:      "[Transfer]: " + explanation,
		Timestamp: now,
	}); err != nil {
		o.logger.Warn("append briefing failed", "agent", agentB, "error", err)
	}
	ack := fmt.Sprintf("Thank you Agent A. I'll take care of this customer. Hello, I'm %s from %s. I've been briefed on your situation and I'm here to help.", bSnap.Name, bSnap.Specialty)
	if err := o.agents.AppendTranscript(agentB, core.Turn{
		Speaker:   speakerAgentB,
		Text:      ack,
		Timestamp: now,
	}); err != nil {
		o.logger.Warn("append acknowledgment failed", "agent", agentB, "error", err)
	}

	o.logger.Info("transfer explained",
		"session_id", sessionID,
		"agent_a", agentA,
		"agent_b", agentB)
	o.publish(Event{
		Type:      EventTransferExplained,
		SessionID: sessionID,
		Agent:     agentB,
		Data: map[string]any{
			"agent_a":     agentA,
			"explanation": explanation,
		},
	})
	if snap, ok := o.agents.Get(agentB); ok {
		o.publishAgentState(snap)
	}

	return explanation, nil
}

func agentBContext(snap core.AgentSnapshot) string {
	if snap.Specialty == "" {
		return snap.Name
	}
	return fmt.Sprintf("%s (%s)", snap.Name, snap.Specialty)
}

// CompleteResult is the outcome of a successful transfer completion.
type CompleteResult struct {
	FinalRoom   string
	CallerToken string
	AgentBToken string
	Summary     string
}

// CompleteTransfer runs phase 3: the summary is refreshed best-effort, the
// final room is created and credentials are issued for the caller and agent
// B. Only then does agent A exit. Room or token failure leaves agent A in
// in_transfer for the operator to retry or force-end.
func (o *Orchestrator) CompleteTransfer(ctx context.Context, sessionID, agentA string) (CompleteResult, error) {
	started := time.Now()
	res, err := o.completeTransfer(ctx, sessionID, agentA)
	o.observePhase("complete", outcomeOf(err), started)
	return res, err
}

func (o *Orchestrator) completeTransfer(ctx context.Context, sessionID, agentA string) (CompleteResult, error) {
	if sessionID == "" {
		return CompleteResult{}, core.NewValidationErrorWithParam("session id is required", "session_id")
	}
	if agentA == "" {
		return CompleteResult{}, core.NewValidationErrorWithParam("agent identity is required", "agent_a_identity")
	}

	aSnap, ok := o.agents.Get(agentA)
	if !ok {
		return CompleteResult{}, core.NewNotFoundError(fmt.Sprintf("agent %q does not exist", agentA))
	}
	if aSnap.CurrentSession != sessionID {
		return CompleteResult{}, core.NewNotFoundError(fmt.Sprintf("agent %q has no transfer in session %s", agentA, sessionID))
	}

	unlock := o.locks.acquire(sessionID)
	sessSnap, ok := o.sessions.Get(sessionID)
	if !ok {
		unlock()
		return CompleteResult{}, core.NewNotFoundError(fmt.Sprintf("session %q does not exist", sessionID))
	}
	record, err := o.beginComplete(sessionID)
	if err != nil {
		unlock()
		return CompleteResult{}, err
	}
	if sessSnap.State != core.CallTransferring {
		o.endComplete(sessionID)
		unlock()
		return CompleteResult{}, core.NewStateViolationError(fmt.Sprintf("session %q is not transferring (state %s)", sessionID, sessSnap.State))
	}
	aSnap, _ = o.agents.Get(agentA)
	transcript := aSnap.Transcript
	caller := sessSnap.Caller
	unlock()

	refreshed, err := o.summarize(ctx, transcript)
	if err != nil {
		o.logger.Warn("summary refresh failed, keeping prior",
			"session_id", sessionID,
			"error", err)
		refreshed = ""
	}

	finalRoom := core.FinalRoomName(sessionID)
	if _, err := o.createRoom(ctx, finalRoom, finalRoomCapacity); err != nil {
		o.endComplete(sessionID)
		return CompleteResult{}, err
	}
	callerToken, err := o.issueToken(ctx, caller, finalRoom, core.ProfileCaller)
	if err != nil {
		o.endComplete(sessionID)
		return CompleteResult{}, err
	}
	agentBToken, err := o.issueToken(ctx, record.AgentB, finalRoom, core.ProfileAgent)
	if err != nil {
		o.endComplete(sessionID)
		return CompleteResult{}, err
	}

	unlock = o.locks.acquire(sessionID)
	defer unlock()
	o.endComplete(sessionID)

	if _, ok := o.transferSnapshot(sessionID); !ok {
		return CompleteResult{}, core.NewStateViolationError(fmt.Sprintf("session %q changed while completing transfer", sessionID))
	}
	aSnap, ok = o.agents.Get(agentA)
	if !ok || aSnap.State != core.AgentInTransfer || aSnap.CurrentSession != sessionID {
		return CompleteResult{}, core.NewStateViolationError(fmt.Sprintf("agent %q changed while completing transfer", agentA))
	}

	var summary string
	err = o.sessions.Update(sessionID, func(sess *core.CallSession) error {
		if !sess.State.CanTransition(core.CallTransferred) {
			return core.NewStateViolationError(fmt.Sprintf("session %q cannot complete a transfer from state %s", sessionID, sess.State))
		}
		if refreshed != "" {
			sess.CallSummary = refreshed
		}
		sess.FinalRoom = finalRoom
		sess.State = core.CallTransferred
		summary = sess.CallSummary
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}
	if err := o.agents.SetState(agentA, core.AgentIdle); err != nil {
		o.logger.Error("agent A exit failed", "agent", agentA, "error", err)
	}
	o.dropTransfer(sessionID)

	o.logger.Info("transfer completed",
		"session_id", sessionID,
		"agent_a", agentA,
		"agent_b", record.AgentB,
		"final_room", finalRoom)
	o.publish(Event{
		Type:      EventTransferCompleted,
		SessionID: sessionID,
		State:     string(core.CallTransferred),
		Data: map[string]any{
			"agent_a":    agentA,
			"agent_b":    record.AgentB,
			"final_room": finalRoom,
		},
	})
	if snap, ok := o.agents.Get(agentA); ok {
		o.publishAgentState(snap)
	}

	return CompleteResult{
		FinalRoom:   finalRoom,
		CallerToken: callerToken,
		AgentBToken: agentBToken,
		Summary:     summary,
	}, nil
}

// Transfer record bookkeeping. The map has its own lock because records for
// different sessions are touched concurrently.

func (o *Orchestrator) putTransfer(record core.TransferRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stored := record
	o.transfers[record.SessionID] = &stored
}

func (o *Orchestrator) transferSnapshot(sessionID string) (core.TransferRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.transfers[sessionID]
	if !ok {
		return core.TransferRecord{}, false
	}
	return *rec, true
}

func (o *Orchestrator) dropTransfer(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.transfers, sessionID)
}

func (o *Orchestrator) beginExplain(sessionID string) (core.TransferRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.transfers[sessionID]
	if !ok {
		return core.TransferRecord{}, core.NewNotFoundError(fmt.Sprintf("session %q has no transfer in progress", sessionID))
	}
	if rec.Explaining {
		return core.TransferRecord{}, core.NewConflictErrorCode("transfer explanation already in progress", core.CodePhaseInProgress)
	}
	rec.Explaining = true
	return *rec, nil
}

func (o *Orchestrator) endExplain(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec, ok := o.transfers[sessionID]; ok {
		rec.Explaining = false
	}
}

func (o *Orchestrator) beginComplete(sessionID string) (core.TransferRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.transfers[sessionID]
	if !ok {
		return core.TransferRecord{}, core.NewNotFoundError(fmt.Sprintf("session %q has no transfer in progress", sessionID))
	}
	if rec.Completing {
		return core.TransferRecord{}, core.NewConflictErrorCode("transfer completion already in progress", core.CodePhaseInProgress)
	}
	rec.Completing = true
	return *rec, nil
}

func (o *Orchestrator) endComplete(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec, ok := o.transfers[sessionID]; ok {
		rec.Completing = false
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if t := core.TypeOf(err); t != "" {
		return string(t)
	}
	return "error"
}
