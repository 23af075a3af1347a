package orchestrator

import (
	"sync"
	"testing"
)

func TestSessionLocks_MutualExclusion(t *testing.T) {
	locks := newSessionLocks()

	var counter, max int
	var track sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.acquire("s1")
			defer unlock()
			track.Lock()
			counter++
			if counter > max {
				max = counter
			}
			track.Unlock()
			track.Lock()
			counter--
			track.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Errorf("max concurrent holders = %d, want 1", max)
	}
}

func TestSessionLocks_IndependentSessions(t *testing.T) {
	locks := newSessionLocks()

	unlock1 := locks.acquire("s1")
	done := make(chan struct{})
	go func() {
		unlock2 := locks.acquire("s2")
		unlock2()
		close(done)
	}()
	<-done // s2 was not blocked by s1
	unlock1()
}

func TestSessionLocks_EntriesDropped(t *testing.T) {
	locks := newSessionLocks()

	unlock := locks.acquire("s1")
	unlock()
	unlock() // releasing twice is harmless

	locks.mu.Lock()
	n := len(locks.locks)
	locks.mu.Unlock()
	if n != 0 {
		t.Errorf("lock entries remaining = %d, want 0", n)
	}
}
