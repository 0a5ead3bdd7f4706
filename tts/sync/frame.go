package sync

import (
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
)

// Mode is the source currently driving the cursor.
type Mode int

const (
	// ModePending means no source owns the cursor yet. The grace timer
	// decides between the other two.
	ModePending Mode = iota
	// ModeBoundary means engine boundary events drive the cursor.
	ModeBoundary
	// ModeSimulated means a self-timed walk drives the cursor.
	ModeSimulated
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModePending:
		return "pending"
	case ModeBoundary:
		return "boundary"
	case ModeSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Frame is one rendered sample of the face.
type Frame struct {
	Mouth     float64       `json:"mouth"`
	Blink     bool          `json:"blink"`
	State     tts.StateType `json:"state"`
	Mode      Mode          `json:"mode"`
	Cursor    int           `json:"cursor"`
	Utterance uint64        `json:"utterance"`
	At        time.Time     `json:"at"`
}
