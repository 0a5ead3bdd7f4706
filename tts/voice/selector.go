package voice

import (
	"sync"

	"github.com/dgnsrekt/mouthpiece/tts"
)

// Selector pins one voice for the active persona and re-selects whenever
// the catalog or the persona changes. Utterances already in flight keep
// the voice they were started with; only the pin moves.
type Selector struct {
	mu      sync.RWMutex
	markers Markers
	voices  []tts.Voice
	hint    tts.VoiceHint
	pinned  tts.Voice
	ok      bool
}

// NewSelector creates a selector with an empty catalog.
func NewSelector(m Markers) *Selector {
	return &Selector{markers: m}
}

// SetCatalog replaces the catalog snapshot. It reports whether the pinned
// voice changed.
func (s *Selector) SetCatalog(voices []tts.Voice) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = append([]tts.Voice(nil), voices...)
	return s.reselect()
}

// SetHint switches the active persona hint. It reports whether the pinned
// voice changed.
func (s *Selector) SetHint(hint tts.VoiceHint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hint == hint && s.ok {
		return false
	}
	s.hint = hint
	return s.reselect()
}

// Refresh reads a new snapshot from c.
func (s *Selector) Refresh(c Catalog) (bool, error) {
	if c == nil {
		return false, ErrNilCatalog
	}
	return s.SetCatalog(c.Voices()), nil
}

// Select refreshes from c, applies hint and returns the pinned voice.
func (s *Selector) Select(c Catalog, hint tts.VoiceHint) (tts.Voice, error) {
	if c == nil {
		return tts.Voice{}, ErrNilCatalog
	}
	voices := append([]tts.Voice(nil), c.Voices()...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = voices
	s.hint = hint
	s.reselect()
	if !s.ok {
		return tts.Voice{}, tts.ErrVoiceUnavailable
	}
	return s.pinned, nil
}

// Pinned returns the current voice, if any.
func (s *Selector) Pinned() (tts.Voice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned, s.ok
}

// Voices returns the last catalog snapshot.
func (s *Selector) Voices() []tts.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tts.Voice(nil), s.voices...)
}

// Hint returns the active persona hint.
func (s *Selector) Hint() tts.VoiceHint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hint
}

func (s *Selector) reselect() bool {
	v, ok := Pick(s.voices, s.hint, s.markers)
	if ok == s.ok && v == s.pinned {
		return false
	}
	s.pinned, s.ok = v, ok
	return true
}
