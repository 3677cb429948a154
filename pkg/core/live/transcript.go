package live

import "github.com/lumina-press/lumina/pkg/core/types"

// Transcript accumulates partial transcription fragments for the speaker
// currently talking. It is owned by a single goroutine.
type Transcript struct {
	speaker types.Speaker
	text    string
}

// Add appends a fragment. A fragment from a different speaker than the
// pending one replaces the pending buffer.
func (t *Transcript) Add(speaker types.Speaker, text string) {
	if speaker != t.speaker {
		t.speaker = speaker
		t.text = text
		return
	}
	t.text += text
}

// Pending returns the buffered speaker and text.
func (t *Transcript) Pending() (types.Speaker, string) {
	return t.speaker, t.text
}

// Finalize returns the buffered turn and clears the buffer. ok is false when
// nothing was buffered.
func (t *Transcript) Finalize() (turn types.Turn, ok bool) {
	speaker, text := t.speaker, t.text
	t.Reset()
	if speaker == "" || text == "" {
		return types.Turn{}, false
	}
	return types.NewTurn(speaker, text, nil), true
}

// Reset discards the buffer.
func (t *Transcript) Reset() {
	t.speaker = ""
	t.text = ""
}
