package tts

import (
	"strings"
	"time"
)

// Engine defines the interface for speech engines.
//
// Speak is asynchronous: it returns once the utterance has been handed to
// the engine, and progress is reported on the Events channel. Boundary
// events are best effort and may never arrive.
type Engine interface {
	// Name returns a short identifier such as "espeak" or "google".
	Name() string

	// Available reports whether the engine can speak on this host.
	Available() bool

	// Voices returns a snapshot of the voice catalog. It may be empty
	// until the engine has finished loading.
	Voices() []Voice

	// Speak starts speaking the request, cancelling anything in flight.
	Speak(req *SpeechRequest) error

	// Pause suspends the current utterance.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error

	// Cancel abandons the current utterance without emitting an end event.
	Cancel() error

	// Events returns the channel on which engine notifications arrive.
	Events() <-chan Event

	// Close stops the engine and releases resources.
	Close() error
}

// Gender is the voice gender hint carried by a persona.
type Gender int

const (
	// GenderUnspecified matches any voice.
	GenderUnspecified Gender = iota
	// GenderFemale prefers female voices.
	GenderFemale
	// GenderMale prefers male voices.
	GenderMale
)

// String returns the string representation of the gender.
func (g Gender) String() string {
	switch g {
	case GenderFemale:
		return "female"
	case GenderMale:
		return "male"
	default:
		return "unspecified"
	}
}

// ParseGender maps loose persona gender tags onto a Gender.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female", "woman":
		return GenderFemale
	case "m", "male", "man":
		return GenderMale
	default:
		return GenderUnspecified
	}
}

// Voice describes one entry of an engine's voice catalog.
type Voice struct {
	ID       string `json:"id"`       // Engine specific identifier
	Name     string `json:"name"`     // Human-readable name
	Language string `json:"language"` // BCP 47 tag such as "hi-IN"
	Gender   Gender `json:"gender"`   // Gender if the engine reports one
	Default  bool   `json:"default"`  // Engine default voice
}

// IsZero reports whether v is the empty voice.
func (v Voice) IsZero() bool {
	return v.ID == "" && v.Name == ""
}

// VoiceHint is the persona's voice preference for an utterance.
type VoiceHint struct {
	Gender    Gender `json:"gender"`
	Language  string `json:"language"`
	Preferred string `json:"preferred,omitempty"` // Optional voice name, fuzzy matched
}

// EventKind identifies an engine notification.
type EventKind int

const (
	// EventStart is sent when audio output begins.
	EventStart EventKind = iota
	// EventBoundary reports progress to an approximate text offset.
	EventBoundary
	// EventEnd is sent when an utterance completes.
	EventEnd
	// EventError is sent when an utterance fails mid-flight.
	EventError
	// EventVoicesChanged is sent when the voice catalog changes.
	EventVoicesChanged
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventBoundary:
		return "boundary"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	case EventVoicesChanged:
		return "voices-changed"
	default:
		return "unknown"
	}
}

// Event is a notification pushed by an engine.
type Event struct {
	Kind      EventKind
	Utterance uint64    // SpeechRequest.ID the event belongs to
	Offset    int       // Rune offset into the normalized text (boundary only)
	Err       error     // Failure cause (error only)
	At        time.Time // When the engine observed the event
}
