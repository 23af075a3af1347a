package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle is a tiny process lifecycle state holder shared across handlers.
// It is used for readiness draining during graceful shutdown and for uptime
// reporting on the health endpoint.
type Lifecycle struct {
	draining atomic.Bool
	started  time.Time
}

// New returns a Lifecycle anchored at the current time.
func New() *Lifecycle {
	return &Lifecycle{started: time.Now()}
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Uptime reports how long the process has been serving. A nil or zero-value
// Lifecycle reports zero.
func (l *Lifecycle) Uptime() time.Duration {
	if l == nil || l.started.IsZero() {
		return 0
	}
	return time.Since(l.started)
}
