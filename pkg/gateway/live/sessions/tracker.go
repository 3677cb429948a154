// Package sessions tracks open /v1/live connections so shutdown can warn
// and then cancel them.
package sessions

import (
	"context"
	"sort"
	"sync"
)

// Handle controls one tracked connection.
type Handle struct {
	// Cancel ends the connection and its voice session.
	Cancel func()
	// Notify sends an error frame without closing. It reports delivery.
	Notify func(code, message string) bool
}

type Tracker struct {
	mu    sync.Mutex
	conns map[string]*entry
	wg    sync.WaitGroup
}

type entry struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]*entry)}
}

// Register tracks a connection until the returned func is called. A second
// registration under the same id replaces and releases the first.
func (t *Tracker) Register(connID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	e := &entry{handle: h}
	t.mu.Lock()
	if t.conns == nil {
		t.conns = make(map[string]*entry)
	}
	old := t.conns[connID]
	t.conns[connID] = e
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.release(connID, old)
	}
	return func() { t.release(connID, e) }
}

func (t *Tracker) release(connID string, e *entry) {
	e.once.Do(func() {
		t.mu.Lock()
		if t.conns[connID] == e {
			delete(t.conns, connID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// IDs returns the tracked connection ids in sorted order.
func (t *Tracker) IDs() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	ids := make([]string, 0, len(t.conns))
	for id := range t.conns {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (t *Tracker) handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Handle, 0, len(t.conns))
	for _, e := range t.conns {
		out = append(out, e.handle)
	}
	return out
}

// NotifyAll sends code and message to every connection and returns how many
// accepted it.
func (t *Tracker) NotifyAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Notify != nil && h.Notify(code, message) {
			sent++
		}
	}
	return sent
}

// CancelAll cancels every connection and returns how many were cancelled.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Cancel != nil {
			h.Cancel()
			canceled++
		}
	}
	return canceled
}

// Wait blocks until every connection unregistered or ctx is done. It
// reports whether all connections finished.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
