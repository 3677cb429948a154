package types

import "sync"

// History is the append-only conversation history shared by the text chat,
// the voice session and the gist extractor.
//
// Appends are atomic per call. Ordering between concurrent producers is
// whichever Append acquires the lock first.
type History struct {
	mu    sync.RWMutex
	turns []Turn
	subs  map[chan struct{}]struct{}
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{subs: make(map[chan struct{}]struct{})}
}

// Append adds turn to the end of the history and notifies subscribers.
func (h *History) Append(turn Turn) Turn {
	turn.Image = turn.Image.Clone()

	h.mu.Lock()
	h.turns = append(h.turns, turn)
	subs := make([]chan struct{}, 0, len(h.subs))
	for ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return turn
}

// Snapshot returns a copy of the current turns in display order.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Subscribe returns a channel that receives a signal after each append.
// Signals coalesce when the receiver is slow. Call the returned func to stop.
func (h *History) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[chan struct{}]struct{})
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}
