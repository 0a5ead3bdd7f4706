package tts

import "fmt"

// Prosody holds the rate, pitch and volume of an utterance.
type Prosody struct {
	Rate   float64 `json:"rate" yaml:"rate"`
	Pitch  float64 `json:"pitch" yaml:"pitch"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// DefaultProsody returns the neutral prosody.
func DefaultProsody() Prosody {
	return Prosody{Rate: 1.0, Pitch: 1.0, Volume: 1.0}
}

// Validate checks that the prosody values are within engine limits.
func (p Prosody) Validate() error {
	if p.Rate < 0.1 || p.Rate > 4.0 {
		return fmt.Errorf("rate must be between 0.1 and 4.0, got %f", p.Rate)
	}
	if p.Pitch < 0.0 || p.Pitch > 2.0 {
		return fmt.Errorf("pitch must be between 0.0 and 2.0, got %f", p.Pitch)
	}
	if p.Volume < 0.0 || p.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", p.Volume)
	}
	return nil
}

// SpeechRequest is one utterance handed to an engine. It is immutable once
// created.
type SpeechRequest struct {
	ID             uint64 // Monotonic utterance id
	RawText        string // Text as supplied by the caller
	NormalizedText string // Text with sentence punctuation rewritten to pause markers
	Prosody
	Voice Voice
}
