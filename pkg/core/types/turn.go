// Package types holds the conversation data model shared by the chat, voice
// and gist components.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerRequester Speaker = "requester"
	SpeakerAssistant Speaker = "assistant"
)

// Valid reports whether s is one of the known speakers.
func (s Speaker) Valid() bool {
	return s == SpeakerRequester || s == SpeakerAssistant
}

// Turn is one finalized utterance in the conversation history.
// Turns are immutable once created; copy before handing out mutable fields.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Image     *Image    `json:"image,omitempty"`
}

// NewTurn creates a turn stamped with a fresh identifier and the current time.
// Voice and text producers both go through here so the two are indistinguishable
// to downstream consumers.
func NewTurn(speaker Speaker, text string, image *Image) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
		Image:     image.Clone(),
	}
}

// Image is a binary-encoded image attached to a turn or submitted for critique.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// Clone returns a deep copy of img. A nil image stays nil.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	out := &Image{MIMEType: img.MIMEType}
	if img.Data != nil {
		out.Data = append([]byte(nil), img.Data...)
	}
	return out
}

// MarshalJSON renders the image as a data URL so browsers can display it directly.
func (img Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MIMEType string `json:"mime_type"`
		DataURL  string `json:"data_url"`
	}{
		MIMEType: img.MIMEType,
		DataURL:  img.DataURL(),
	})
}

// Validate checks that the image carries data and an image MIME type.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("image is required")
	}
	if len(img.Data) == 0 {
		return fmt.Errorf("image data is empty")
	}
	if len(img.MIMEType) < len("image/") || img.MIMEType[:len("image/")] != "image/" {
		return fmt.Errorf("unsupported image mime type %q", img.MIMEType)
	}
	return nil
}
