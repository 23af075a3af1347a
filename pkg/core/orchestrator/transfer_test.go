package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/warmline/warmline/pkg/core"
)

func TestInitiateTransfer(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")

	res, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing question")
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}

	wantRoom := "transfer_" + sess.ID + "_150926"
	if res.TransferRoom != wantRoom {
		t.Errorf("transfer room = %q, want %q", res.TransferRoom, wantRoom)
	}
	if res.Summary == "" {
		t.Error("summary is empty")
	}

	snap, _ := e.orch.GetSession(sess.ID)
	if snap.State != core.CallTransferring {
		t.Errorf("session state = %s, want transferring", snap.State)
	}
	if snap.AgentB != "b1" || snap.TransferRoom != wantRoom || snap.TransferReason != "billing question" {
		t.Errorf("session = %+v", snap)
	}
	if snap.CallSummary != res.Summary {
		t.Errorf("session summary = %q, want %q", snap.CallSummary, res.Summary)
	}

	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentInTransfer {
		t.Errorf("agent A state = %s, want in_transfer", aSnap.State)
	}

	rooms := e.rooms.roomsCreated()
	if len(rooms) != 2 || rooms[1].Name != wantRoom || rooms[1].Capacity != 2 {
		t.Errorf("rooms = %+v, want transfer room with capacity 2", rooms)
	}

	// responsibility has moved to agent B
	assigned, ok := e.agents.SessionAgent(sess.ID)
	if !ok || assigned.Identity != "b1" {
		t.Errorf("session agent = %v, want b1", assigned.Identity)
	}
}

func TestInitiateTransfer_NotConnected(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.orch.CreateSession(context.Background(), "cust1", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// still waiting, nobody joined
	_, err = e.orch.InitiateTransfer(context.Background(), res.Session.ID, "b1", "billing")
	if core.TypeOf(err) != core.ErrStateViolation {
		t.Fatalf("error = %v, want state violation", err)
	}

	if got := len(e.rooms.roomsCreated()); got != 1 {
		t.Errorf("rooms created = %d, want only the original room", got)
	}
	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentInCall {
		t.Errorf("agent A state = %s, want in_call untouched", aSnap.State)
	}
}

func TestInitiateTransfer_TargetChecks(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	ctx := context.Background()

	if _, err := e.orch.InitiateTransfer(ctx, sess.ID, "ghost", "r"); core.TypeOf(err) != core.ErrNotFound {
		t.Errorf("unknown target error = %v, want not found", err)
	}
	if _, err := e.orch.InitiateTransfer(ctx, sess.ID, "a2", "r"); core.TypeOf(err) != core.ErrValidation {
		t.Errorf("role A target error = %v, want validation", err)
	}

	if err := e.agents.SetState("b1", core.AgentOffline); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if _, err := e.orch.InitiateTransfer(ctx, sess.ID, "b1", "r"); core.TypeOf(err) != core.ErrConflict {
		t.Errorf("offline target error = %v, want conflict", err)
	}

	// engage b2 elsewhere and try to pull it in
	other := e.createConnected(t, "cust2")
	if _, err := e.orch.InitiateTransfer(ctx, other.ID, "b2", "tech"); err != nil {
		t.Fatalf("InitiateTransfer other: %v", err)
	}
	if _, err := e.orch.ExplainTransfer(ctx, other.ID, "a2", "b2"); err != nil {
		t.Fatalf("ExplainTransfer other: %v", err)
	}
	if _, err := e.orch.InitiateTransfer(ctx, sess.ID, "b2", "r"); core.TypeOf(err) != core.ErrConflict {
		t.Errorf("busy target error = %v, want conflict", err)
	}
}

func TestInitiateTransfer_SummarizerFallback(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	e.summ.setSummarizeErr(errors.New("model overloaded"))

	res, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing")
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if res.Summary != summaryPlaceholder {
		t.Errorf("summary = %q, want placeholder", res.Summary)
	}
	if res.TransferRoom == "" {
		t.Error("no transfer room despite fallback")
	}
	snap, _ := e.orch.GetSession(sess.ID)
	if snap.State != core.CallTransferring {
		t.Errorf("session state = %s, want transferring", snap.State)
	}
}

func TestInitiateTransfer_RoomFailureRollsBack(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	e.rooms.setCreateErr(errors.New("livekit down"))

	_, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing")
	if core.TypeOf(err) != core.ErrUpstream {
		t.Fatalf("error = %v, want upstream failure", err)
	}
	ce, _ := core.AsError(err)
	if ce.Code != core.CodeRoomCreateFailed {
		t.Errorf("Code = %q, want %q", ce.Code, core.CodeRoomCreateFailed)
	}

	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentInCall {
		t.Errorf("agent A state = %s, want in_call after rollback", aSnap.State)
	}
	snap, _ := e.orch.GetSession(sess.ID)
	if snap.State != core.CallConnected || snap.AgentB != "" {
		t.Errorf("session after rollback = %s/%q, want connected/unset", snap.State, snap.AgentB)
	}

	// no record was stored, so completion reports nothing to complete
	if _, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1"); core.TypeOf(err) != core.ErrNotFound {
		t.Errorf("complete after rollback error = %v, want not found", err)
	}
}

// Two racing initiations: exactly one wins, and only one transfer room is
// ever created.
func TestInitiateTransfer_ConcurrentSecondLoses(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, target := range []string{"b1", "b2"} {
		wg.Add(1)
		go func(b string) {
			defer wg.Done()
			_, err := e.orch.InitiateTransfer(context.Background(), sess.ID, b, "race")
			errs <- err
		}(target)
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
		} else if core.TypeOf(err) == core.ErrStateViolation {
			lost++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Errorf("won=%d lost=%d, want 1/1", won, lost)
	}

	var transferRooms int
	for _, r := range e.rooms.roomsCreated() {
		if strings.HasPrefix(r.Name, "transfer_") {
			transferRooms++
		}
	}
	if transferRooms != 1 {
		t.Errorf("transfer rooms created = %d, want 1", transferRooms)
	}
}

func TestExplainTransfer(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	init, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing")
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}

	explanation, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1")
	if err != nil {
		t.Fatalf("ExplainTransfer: %v", err)
	}
	if explanation == "" {
		t.Fatal("empty explanation")
	}

	if got := e.summ.target(); got != "Ben (Billing)" {
		t.Errorf("target context = %q, want %q", got, "Ben (Billing)")
	}

	bSnap, _ := e.agents.Get("b1")
	if bSnap.State != core.AgentInCall || bSnap.CurrentSession != sess.ID {
		t.Errorf("agent B = %s/%q, want in_call bound to session", bSnap.State, bSnap.CurrentSession)
	}
	if bSnap.TransferContext == nil {
		t.Fatal("agent B has no transfer context")
	}
	if bSnap.TransferContext.Explanation != explanation || bSnap.TransferContext.Summary != init.Summary {
		t.Errorf("transfer context = %+v", bSnap.TransferContext)
	}
	if len(bSnap.Transcript) != 2 {
		t.Fatalf("agent B transcript length = %d, want briefing + acknowledgment", len(bSnap.Transcript))
	}
	if bSnap.Transcript[0].Speaker != "Agent A" || !strings.HasPrefix(bSnap.Transcript[0].Text, "[Transfer]: ") {
		t.Errorf("briefing turn = %+v", bSnap.Transcript[0])
	}
	if bSnap.Transcript[1].Speaker != "Agent B" || !strings.Contains(bSnap.Transcript[1].Text, "I'm Ben from Billing") {
		t.Errorf("acknowledgment turn = %+v", bSnap.Transcript[1])
	}

	aSnap, _ := e.agents.Get("a1")
	last := aSnap.Transcript[len(aSnap.Transcript)-1]
	if !strings.HasPrefix(last.Text, "[Transfer explanation to b1]: ") {
		t.Errorf("agent A transfer note = %q", last.Text)
	}
}

func TestExplainTransfer_NoRecord(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")

	_, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1")
	if core.TypeOf(err) != core.ErrNotFound {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestExplainTransfer_FailurePropagates(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	if _, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing"); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	e.summ.mu.Lock()
	e.summ.explainErr = errors.New("model refused")
	e.summ.mu.Unlock()

	_, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1")
	if core.TypeOf(err) != core.ErrUpstream {
		t.Fatalf("error = %v, want upstream failure", err)
	}
	ce, _ := core.AsError(err)
	if ce.Code != core.CodeExplainFailed {
		t.Errorf("Code = %q, want %q", ce.Code, core.CodeExplainFailed)
	}

	// agent B never hears about it
	bSnap, _ := e.agents.Get("b1")
	if bSnap.State != core.AgentIdle || bSnap.TransferContext != nil || len(bSnap.Transcript) != 0 {
		t.Errorf("agent B touched by failed explanation: %+v", bSnap)
	}

	// the failure is not fatal to the record; a retry can succeed
	e.summ.mu.Lock()
	e.summ.explainErr = nil
	e.summ.mu.Unlock()
	if _, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1"); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestExplainTransfer_WrongParties(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	if _, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing"); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}

	if _, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b2"); core.TypeOf(err) != core.ErrValidation {
		t.Errorf("wrong target error = %v, want validation", err)
	}
	if _, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a2", "b1"); core.TypeOf(err) != core.ErrValidation {
		t.Errorf("wrong initiator error = %v, want validation", err)
	}
}

// The session ends while the explanation call is in flight. The stale result
// must be discarded and agent B left untouched.
func TestExplainTransfer_SessionEndedMidFlight(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	if _, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing"); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	e.summ.explainGate = gate
	e.summ.explainEntered = entered

	done := make(chan error, 1)
	go func() {
		_, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1")
		done <- err
	}()

	// wait until the explanation is blocked inside the collaborator call,
	// then end the session underneath it
	<-entered
	if _, err := e.orch.EndSession(context.Background(), sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	close(gate)

	err := <-done
	if core.TypeOf(err) != core.ErrStateViolation {
		t.Fatalf("error = %v, want state violation", err)
	}
	bSnap, _ := e.agents.Get("b1")
	if bSnap.TransferContext != nil || len(bSnap.Transcript) != 0 {
		t.Errorf("agent B received stale delivery: %+v", bSnap)
	}
}

func TestCompleteTransfer(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	if _, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing"); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if _, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1"); err != nil {
		t.Fatalf("ExplainTransfer: %v", err)
	}

	e.summ.mu.Lock()
	e.summ.summarizeText = "caller verified, invoice 4521 disputed"
	e.summ.mu.Unlock()

	res, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1")
	if err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}

	if res.FinalRoom != "final_"+sess.ID {
		t.Errorf("final room = %q", res.FinalRoom)
	}
	if res.CallerToken == "" || res.AgentBToken == "" {
		t.Error("missing credentials")
	}
	if res.Summary != "caller verified, invoice 4521 disputed" {
		t.Errorf("summary = %q, want refreshed text", res.Summary)
	}

	snap, _ := e.orch.GetSession(sess.ID)
	if snap.State != core.CallTransferred || snap.FinalRoom != res.FinalRoom {
		t.Errorf("session = %s/%q", snap.State, snap.FinalRoom)
	}
	if snap.AgentB != "b1" {
		t.Errorf("session agent B = %q, want b1", snap.AgentB)
	}

	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentIdle || aSnap.CurrentSession != "" {
		t.Errorf("agent A = %s/%q, want idle/unbound", aSnap.State, aSnap.CurrentSession)
	}

	// final room capacity and token profiles
	rooms := e.rooms.roomsCreated()
	last := rooms[len(rooms)-1]
	if last.Name != res.FinalRoom || last.Capacity != 2 {
		t.Errorf("final room = %+v, want capacity 2", last)
	}
	var callerProfile, agentProfile core.RoomProfile
	for _, tok := range e.rooms.tokens {
		if tok.Room != res.FinalRoom {
			continue
		}
		switch tok.Identity {
		case "cust1":
			callerProfile = tok.Profile
		case "b1":
			agentProfile = tok.Profile
		}
	}
	if callerProfile != core.ProfileCaller || agentProfile != core.ProfileAgent {
		t.Errorf("profiles = %q/%q, want caller/agent", callerProfile, agentProfile)
	}

	// the record is consumed
	if _, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1"); core.TypeOf(err) != core.ErrNotFound {
		t.Errorf("second complete error = %v, want not found", err)
	}
}

func TestCompleteTransfer_WithoutInitiate(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")

	_, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1")
	if core.TypeOf(err) != core.ErrNotFound {
		t.Fatalf("error = %v, want not found", err)
	}

	snap, _ := e.orch.GetSession(sess.ID)
	if snap.State != core.CallConnected {
		t.Errorf("session state = %s, want connected unchanged", snap.State)
	}
	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentInCall {
		t.Errorf("agent A state = %s, want in_call unchanged", aSnap.State)
	}
}

func TestCompleteTransfer_SummaryRefreshBestEffort(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	init, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing")
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if _, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1"); err != nil {
		t.Fatalf("ExplainTransfer: %v", err)
	}
	e.summ.setSummarizeErr(errors.New("model overloaded"))

	res, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1")
	if err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	if res.Summary != init.Summary {
		t.Errorf("summary = %q, want prior %q retained", res.Summary, init.Summary)
	}
}

func TestCompleteTransfer_TokenFailureLeavesInTransfer(t *testing.T) {
	e := newTestEnv(t)
	sess := e.createConnected(t, "cust1")
	if _, err := e.orch.InitiateTransfer(context.Background(), sess.ID, "b1", "billing"); err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if _, err := e.orch.ExplainTransfer(context.Background(), sess.ID, "a1", "b1"); err != nil {
		t.Fatalf("ExplainTransfer: %v", err)
	}
	e.rooms.setTokenErr(errors.New("token service down"))

	_, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1")
	if core.TypeOf(err) != core.ErrUpstream {
		t.Fatalf("error = %v, want upstream failure", err)
	}

	// no rollback: agent A stays parked in in_transfer
	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentInTransfer || aSnap.CurrentSession != sess.ID {
		t.Errorf("agent A = %s/%q, want in_transfer bound", aSnap.State, aSnap.CurrentSession)
	}
	snap, _ := e.orch.GetSession(sess.ID)
	if snap.State != core.CallTransferring {
		t.Errorf("session state = %s, want transferring", snap.State)
	}

	// the operator can retry once the provider recovers
	e.rooms.setTokenErr(nil)
	if _, err := e.orch.CompleteTransfer(context.Background(), sess.ID, "a1"); err != nil {
		t.Errorf("retry after recovery: %v", err)
	}
}

// The full protocol run from the caller dialing in to agent B owning the
// conversation in the final room.
func TestWarmTransferEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, err := e.orch.CreateSession(ctx, "cust1", "a1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sid := created.Session.ID
	if created.Session.State != core.CallWaiting {
		t.Fatalf("state = %s, want waiting", created.Session.State)
	}
	if len(created.AgentA.Transcript) != 1 {
		t.Fatalf("transcript length = %d, want 1 after greeting", len(created.AgentA.Transcript))
	}

	if _, err := e.orch.Join(ctx, sid, "cust1", core.ParticipantCaller); err != nil {
		t.Fatalf("Join caller: %v", err)
	}
	if _, err := e.orch.Join(ctx, sid, "a1", core.ParticipantAgentA); err != nil {
		t.Fatalf("Join agent A: %v", err)
	}
	snap, _ := e.orch.GetSession(sid)
	if snap.State != core.CallConnected {
		t.Fatalf("state = %s, want connected", snap.State)
	}
	aSnap, _ := e.agents.Get("a1")
	if aSnap.State != core.AgentInCall {
		t.Fatalf("a1 state = %s, want in_call", aSnap.State)
	}

	init, err := e.orch.InitiateTransfer(ctx, sid, "b1", "billing")
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if init.TransferRoom == "" {
		t.Fatal("no transfer room")
	}
	aSnap, _ = e.agents.Get("a1")
	snap, _ = e.orch.GetSession(sid)
	if aSnap.State != core.AgentInTransfer || snap.State != core.CallTransferring {
		t.Fatalf("after initiate: a1=%s session=%s", aSnap.State, snap.State)
	}

	if _, err := e.orch.ExplainTransfer(ctx, sid, "a1", "b1"); err != nil {
		t.Fatalf("ExplainTransfer: %v", err)
	}
	bSnap, _ := e.agents.Get("b1")
	if bSnap.State != core.AgentInCall || bSnap.TransferContext == nil {
		t.Fatalf("after explain: b1=%s context=%v", bSnap.State, bSnap.TransferContext)
	}

	fin, err := e.orch.CompleteTransfer(ctx, sid, "a1")
	if err != nil {
		t.Fatalf("CompleteTransfer: %v", err)
	}
	if fin.FinalRoom == "" {
		t.Fatal("no final room")
	}
	aSnap, _ = e.agents.Get("a1")
	snap, _ = e.orch.GetSession(sid)
	if aSnap.State != core.AgentIdle || aSnap.CurrentSession != "" {
		t.Fatalf("after complete: a1=%s/%q, want idle/unbound", aSnap.State, aSnap.CurrentSession)
	}
	if snap.State != core.CallTransferred {
		t.Fatalf("after complete: session=%s, want transferred", snap.State)
	}

	// observed state sequence is the forward protocol order
	wantOrder := map[string]int{
		string(core.CallWaiting):      0,
		string(core.CallConnected):    1,
		string(core.CallTransferring): 2,
		string(core.CallTransferred):  3,
		string(core.CallEnded):        4,
	}
	last := -1
	for _, ev := range e.events.events {
		if ev.SessionID != sid || ev.State == "" {
			continue
		}
		rank, known := wantOrder[ev.State]
		if !known {
			continue
		}
		if rank < last {
			t.Errorf("state %s observed after rank %d", ev.State, last)
		}
		last = rank
	}
}
