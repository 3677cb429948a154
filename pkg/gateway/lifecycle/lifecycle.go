// Package lifecycle holds process state shared across handlers.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle tracks readiness draining during graceful shutdown.
type Lifecycle struct {
	draining      atomic.Bool
	drainingSince atomic.Int64
}

// SetDraining marks the process as draining. Readiness fails and new live
// connections are refused while draining.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	if draining && l.draining.CompareAndSwap(false, true) {
		l.drainingSince.Store(time.Now().UnixNano())
		return
	}
	if !draining {
		l.draining.Store(false)
		l.drainingSince.Store(0)
	}
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// DrainingFor reports how long the process has been draining.
func (l *Lifecycle) DrainingFor(now time.Time) time.Duration {
	if l == nil {
		return 0
	}
	since := l.drainingSince.Load()
	if since == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, since))
}
