package ratelimit

import (
	"testing"
	"time"
)

func TestAcquire_TokenBucketRefills(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2})
	now := time.Unix(1_000_000, 0)

	for i := 0; i < 2; i++ {
		dec := l.Acquire("p1", now)
		if !dec.Allowed {
			t.Fatalf("request %d rejected inside burst", i)
		}
		dec.Permit.Release()
	}

	dec := l.Acquire("p1", now)
	if dec.Allowed {
		t.Fatal("third request allowed with an empty bucket")
	}
	if dec.RetryAfter < 1 {
		t.Errorf("RetryAfter = %d, want >= 1", dec.RetryAfter)
	}

	dec = l.Acquire("p1", now.Add(1500*time.Millisecond))
	if !dec.Allowed {
		t.Fatal("request rejected after refill window")
	}
	dec.Permit.Release()
}

func TestAcquire_PrincipalsAreIndependent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	now := time.Unix(1_000_000, 0)

	if dec := l.Acquire("p1", now); !dec.Allowed {
		t.Fatal("p1 first request rejected")
	}
	if dec := l.Acquire("p1", now); dec.Allowed {
		t.Fatal("p1 second request allowed")
	}
	if dec := l.Acquire("p2", now); !dec.Allowed {
		t.Fatal("p2 first request rejected; principals must not share buckets")
	}
}

func TestAcquire_ConcurrencyCap(t *testing.T) {
	l := New(Config{MaxConcurrent: 1})
	now := time.Unix(1_000_000, 0)

	first := l.Acquire("p1", now)
	if !first.Allowed {
		t.Fatal("first request rejected")
	}

	if dec := l.Acquire("p1", now); dec.Allowed {
		t.Fatal("second concurrent request allowed over the cap")
	}

	first.Permit.Release()
	if dec := l.Acquire("p1", now); !dec.Allowed {
		t.Fatal("request rejected after the slot was released")
	}
}

func TestPermit_ReleaseIsIdempotent(t *testing.T) {
	l := New(Config{MaxConcurrent: 1})
	now := time.Unix(1_000_000, 0)

	dec := l.Acquire("p1", now)
	dec.Permit.Release()
	dec.Permit.Release()

	// A double release must not free a slot twice.
	a := l.Acquire("p1", now)
	if !a.Allowed {
		t.Fatal("first request after release rejected")
	}
	if b := l.Acquire("p1", now); b.Allowed {
		t.Fatal("cap not enforced after double release")
	}
}

func TestAcquire_EntryMapIsBounded(t *testing.T) {
	l := New(Config{RPS: 100, Burst: 100, MaxEntries: 8, EntryTTL: time.Minute})
	now := time.Unix(1_000_000, 0)

	for i := 0; i < 50; i++ {
		l.Acquire(PrincipalKeyFromIP(string(rune('a'+i))), now)
	}

	l.mu.Lock()
	n := len(l.m)
	l.mu.Unlock()
	if n > 8 {
		t.Fatalf("map grew to %d entries, want <= 8", n)
	}
}

func TestConfig_Enabled(t *testing.T) {
	cases := []struct {
		cfg  Config
		want bool
	}{
		{Config{}, false},
		{Config{RPS: 1}, false},
		{Config{Burst: 1}, false},
		{Config{RPS: 1, Burst: 1}, true},
		{Config{MaxConcurrent: 1}, true},
	}
	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Errorf("Enabled(%+v) = %v, want %v", tc.cfg, got, tc.want)
		}
	}
}

func TestPrincipalKeys_AreOpaqueAndStable(t *testing.T) {
	k1 := PrincipalKeyFromAPIKey("secret-key")
	k2 := PrincipalKeyFromAPIKey("secret-key")
	if k1 != k2 {
		t.Error("api key hashing is not stable")
	}
	if k1 == "secret-key" || len(k1) < 10 {
		t.Errorf("key %q leaks or is too short", k1)
	}

	ip := PrincipalKeyFromIP("203.0.113.7")
	if ip == k1 {
		t.Error("ip and api key spaces collide")
	}
}
