// Package mock provides a scripted speech engine for testing and demos.
//
// The engine produces no audio. It walks the normalized text on a timer and
// reports start, boundary and end events the way a real engine would. In
// manual mode it only records calls, and tests inject events with Emit.
package mock

import (
	"sync"
	"time"
	"unicode"

	"github.com/dgnsrekt/mouthpiece/tts"
)

// Boundary modes.
const (
	BoundariesWord  = "word"  // One boundary at the start of each word
	BoundariesChar  = "char"  // One boundary per rune
	BoundariesNone  = "none"  // Start and end only
	BoundariesBurst = "burst" // Two boundaries per word, 10ms apart
)

const burstGap = 10 * time.Millisecond

// DefaultVoices returns the mock catalog.
func DefaultVoices() []tts.Voice {
	return []tts.Voice{
		{ID: "mock-lekha", Name: "Lekha", Language: "hi-IN", Gender: tts.GenderFemale, Default: true},
		{ID: "mock-rishi", Name: "Rishi", Language: "hi-IN", Gender: tts.GenderMale},
		{ID: "mock-samantha", Name: "Samantha", Language: "en-US", Gender: tts.GenderFemale},
		{ID: "mock-daniel", Name: "Daniel", Language: "en-GB", Gender: tts.GenderMale},
	}
}

// Engine implements tts.Engine without producing sound.
type Engine struct {
	cfg    tts.MockConfig
	manual bool
	events chan tts.Event

	mu        sync.Mutex
	wg        sync.WaitGroup
	voices    []tts.Voice
	available bool
	closed    bool
	failure   error
	current   *tts.SpeechRequest
	playing   *playback
	requests  []*tts.SpeechRequest
	calls     map[string]int
}

// New creates an engine whose catalog loads after cfg.LoadDelay, followed by
// a voices-changed event.
func New(cfg tts.MockConfig) *Engine {
	e := newEngine(cfg, false)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if cfg.LoadDelay > 0 {
			time.Sleep(cfg.LoadDelay)
		}
		e.SetVoices(DefaultVoices())
	}()
	return e
}

// NewManual creates an engine with a ready catalog that never emits events
// on its own.
func NewManual(voices []tts.Voice) *Engine {
	e := newEngine(tts.MockConfig{Boundaries: BoundariesNone}, true)
	e.voices = append([]tts.Voice(nil), voices...)
	return e
}

func newEngine(cfg tts.MockConfig, manual bool) *Engine {
	if cfg.Boundaries == "" {
		cfg.Boundaries = BoundariesWord
	}
	if cfg.CharInterval <= 0 {
		cfg.CharInterval = 70 * time.Millisecond
	}
	return &Engine{
		cfg:       cfg,
		manual:    manual,
		events:    make(chan tts.Event, 64),
		available: true,
		calls:     make(map[string]int),
	}
}

// Name returns "mock".
func (e *Engine) Name() string { return "mock" }

// Available reports the availability set by SetAvailable.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available && !e.closed
}

// Voices returns the catalog, empty until loaded.
func (e *Engine) Voices() []tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["voices"]++
	return append([]tts.Voice(nil), e.voices...)
}

// Speak starts playback of req, cancelling anything in flight.
func (e *Engine) Speak(req *tts.SpeechRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["speak"]++

	if e.closed {
		return tts.ErrEngineClosed
	}
	if e.failure != nil {
		return e.failure
	}

	e.stopLocked()
	e.current = req
	e.requests = append(e.requests, req)
	if e.manual {
		return nil
	}

	p := newPlayback()
	e.playing = p
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.play(req, p)
	}()
	return nil
}

// Pause suspends playback.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["pause"]++
	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if e.playing != nil {
		e.playing.pause()
	}
	return nil
}

// Resume continues playback.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["resume"]++
	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if e.playing != nil {
		e.playing.resume()
	}
	return nil
}

// Cancel abandons playback without an end event.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["cancel"]++
	e.stopLocked()
	return nil
}

// Events returns the notification channel. It is closed by Close.
func (e *Engine) Events() <-chan tts.Event {
	return e.events
}

// Close stops playback and closes the event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stopLocked()
	e.mu.Unlock()

	e.wg.Wait()
	close(e.events)
	return nil
}

func (e *Engine) stopLocked() {
	if e.playing != nil {
		e.playing.cancel()
		e.playing = nil
	}
	e.current = nil
}

// play walks req one rune per interval and reports progress.
func (e *Engine) play(req *tts.SpeechRequest, p *playback) {
	send := func(ev tts.Event) bool {
		ev.Utterance = req.ID
		ev.At = time.Now()
		select {
		case e.events <- ev:
			return true
		case <-p.stop:
			return false
		}
	}

	if !send(tts.Event{Kind: tts.EventStart}) {
		return
	}

	interval := e.cfg.CharInterval
	if req.Rate > 0 {
		interval = time.Duration(float64(interval) / req.Rate)
	}

	for _, offset := range Offsets([]rune(req.NormalizedText), e.cfg.Boundaries) {
		if !p.waitUntil(time.Duration(offset) * interval) {
			return
		}
		if !send(tts.Event{Kind: tts.EventBoundary, Offset: offset}) {
			return
		}
		if e.cfg.Boundaries == BoundariesBurst {
			if !p.wait(burstGap) || !send(tts.Event{Kind: tts.EventBoundary, Offset: offset}) {
				return
			}
		}
	}

	if !p.waitUntil(time.Duration(len([]rune(req.NormalizedText))) * interval) {
		return
	}

	e.mu.Lock()
	if e.playing == p {
		e.playing = nil
		e.current = nil
	}
	e.mu.Unlock()
	send(tts.Event{Kind: tts.EventEnd})
}

// Offsets returns the rune offsets at which mode reports boundaries.
func Offsets(runes []rune, mode string) []int {
	var out []int
	switch mode {
	case BoundariesChar:
		for i := range runes {
			out = append(out, i)
		}
	case BoundariesWord, BoundariesBurst:
		inWord := false
		for i, r := range runes {
			space := unicode.IsSpace(r)
			if !space && !inWord {
				out = append(out, i)
			}
			inWord = !space
		}
	}
	return out
}

// Test controls

// Emit pushes an event as if the engine had produced it. It blocks if the
// event buffer is full.
func (e *Engine) Emit(ev tts.Event) {
	e.events <- ev
}

// SetVoices replaces the catalog and emits a voices-changed event.
func (e *Engine) SetVoices(voices []tts.Voice) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.voices = append([]tts.Voice(nil), voices...)
	e.mu.Unlock()

	select {
	case e.events <- tts.Event{Kind: tts.EventVoicesChanged, At: time.Now()}:
	default:
	}
}

// SetAvailable controls what Available reports.
func (e *Engine) SetAvailable(ok bool) {
	e.mu.Lock()
	e.available = ok
	e.mu.Unlock()
}

// SetFailure makes Speak fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	e.failure = err
	e.mu.Unlock()
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.SetFailure(nil)
}

// Requests returns every request passed to Speak.
func (e *Engine) Requests() []*tts.SpeechRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*tts.SpeechRequest(nil), e.requests...)
}

// Current returns the request being spoken, if any.
func (e *Engine) Current() *tts.SpeechRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CallCount returns how many times the named method was called.
func (e *Engine) CallCount(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}
