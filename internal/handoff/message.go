// Package handoff carries one-shot messages from the drawing screen to the
// main display through a single last-write-wins slot.
package handoff

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names a message type.
type Kind string

const (
	// KindDrawingComplete carries a freshly submitted drawing.
	KindDrawingComplete Kind = "drawingComplete"
	// KindReturnToStart signals the drawing screen went back to Start.
	KindReturnToStart Kind = "returnToStart"
)

// SlotKey is the well-known name of the shared slot.
const SlotKey = "mainScreenMessage"

// Message is an immutable hand-off record. It crosses contexts as JSON text.
type Message struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"type"`
	ImageData string `json:"imageData,omitempty"`
	Note      string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage stamps a message with a fresh id and the given time.
func NewMessage(kind Kind, imageData, note string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		ImageData: imageData,
		Note:      note,
		Timestamp: now.UnixMilli(),
	}
}

// Time returns the message timestamp.
func (m Message) Time() time.Time { return time.UnixMilli(m.Timestamp) }

// Encode serialises m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Parse decodes and validates a serialised message.
func Parse(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	if err := m.validate(); err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	return m, nil
}

func (m Message) validate() error {
	switch m.Kind {
	case KindDrawingComplete, KindReturnToStart:
	default:
		return fmt.Errorf("unknown type %q", m.Kind)
	}
	if m.ID == "" {
		return fmt.Errorf("missing id")
	}
	return nil
}
