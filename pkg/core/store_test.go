package core

import (
	"testing"
	"time"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewSessionStore()
	at := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	sess := CallSession{
		ID:        SessionID("cust1", at),
		Caller:    "cust1",
		AgentA:    "agent_a_001",
		State:     CallWaiting,
		CreatedAt: at,
	}
	if err := s.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap, ok := s.Get(sess.ID)
	if !ok {
		t.Fatal("Get did not find the session")
	}
	if snap.Caller != "cust1" || snap.State != CallWaiting {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStore_CollisionIsConflict(t *testing.T) {
	s := NewSessionStore()
	at := time.Now()
	sess := CallSession{ID: SessionID("cust1", at), Caller: "cust1", State: CallWaiting}
	if err := s.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := s.Create(sess)
	if TypeOf(err) != ErrConflict {
		t.Fatalf("second Create error = %v, want conflict", err)
	}
	ce, _ := AsError(err)
	if ce.Code != CodeSessionIDCollision {
		t.Errorf("Code = %q, want %q", ce.Code, CodeSessionIDCollision)
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	s := NewSessionStore()
	err := s.Update("ghost", func(*CallSession) error { return nil })
	if TypeOf(err) != ErrNotFound {
		t.Errorf("Update missing error = %v, want not found", err)
	}
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	s := NewSessionStore()
	base := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	for i, caller := range []string{"c3", "c1", "c2"} {
		at := base.Add(time.Duration(2-i) * time.Minute)
		if err := s.Create(CallSession{ID: SessionID(caller, at), Caller: caller, State: CallWaiting, CreatedAt: at}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	list := s.List()
	if len(list) != 3 {
		t.Fatalf("List length = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			t.Errorf("List not ordered: %v before %v", list[i].CreatedAt, list[i-1].CreatedAt)
		}
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewSessionStore()
	sess := CallSession{ID: "s1", Caller: "c1", State: CallWaiting, Participants: []Participant{{Identity: "c1", Role: ParticipantCaller}}}
	if err := s.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap, _ := s.Get("s1")
	snap.Participants[0].Identity = "tampered"

	fresh, _ := s.Get("s1")
	if fresh.Participants[0].Identity != "c1" {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestStore_Remove(t *testing.T) {
	s := NewSessionStore()
	if err := s.Create(CallSession{ID: "s1", Caller: "c1", State: CallWaiting}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Remove("s1")
	if _, ok := s.Get("s1"); ok {
		t.Error("Get found a removed session")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_ActiveLenExcludesEnded(t *testing.T) {
	s := NewSessionStore()
	if err := s.Create(CallSession{ID: "s1", Caller: "c1", State: CallConnected}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(CallSession{ID: "s2", Caller: "c2", State: CallEnded}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got := s.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
	if got := s.ActiveLen(); got != 1 {
		t.Errorf("ActiveLen = %d, want 1", got)
	}

	err := s.Update("s1", func(sess *CallSession) error {
		sess.State = CallEnded
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.ActiveLen(); got != 0 {
		t.Errorf("ActiveLen after end = %d, want 0", got)
	}
}
