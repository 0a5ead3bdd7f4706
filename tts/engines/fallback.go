package engines

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/tts"
)

// Fallback speaks through the first available engine of a preference list
// and moves to the next one after repeated failures. Only the active
// engine's events are forwarded. Switching engines emits voices-changed so
// the caller selects a voice from the new catalog.
type Fallback struct {
	engines     []tts.Engine
	maxFailures int
	events      chan tts.Event
	done        chan struct{}
	wg          sync.WaitGroup

	mu       sync.RWMutex
	active   int
	failures int
	closed   bool
}

// NewFallback wraps engines in preference order.
func NewFallback(maxFailures int, engines ...tts.Engine) *Fallback {
	if maxFailures < 1 {
		maxFailures = 1
	}
	f := &Fallback{
		engines:     engines,
		maxFailures: maxFailures,
		events:      make(chan tts.Event, 64),
		done:        make(chan struct{}),
	}

	for i, e := range engines {
		if e.Available() {
			f.active = i
			break
		}
	}
	if len(engines) > 0 {
		log.Debug("Fallback engine ready", "active", engines[f.active].Name(), "engines", len(engines))
	}

	for i, e := range engines {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.forward(i, e)
		}()
	}
	return f
}

func (f *Fallback) forward(i int, e tts.Engine) {
	for ev := range e.Events() {
		f.mu.RLock()
		active := f.active == i && !f.closed
		f.mu.RUnlock()
		if !active {
			continue
		}
		select {
		case f.events <- ev:
		case <-f.done:
			return
		}
	}
}

func (f *Fallback) current() tts.Engine {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[f.active]
}

// Name returns the active engine's name.
func (f *Fallback) Name() string {
	if e := f.current(); e != nil {
		return e.Name()
	}
	return "fallback"
}

// Available reports whether any engine is available.
func (f *Fallback) Available() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}
	for _, e := range f.engines {
		if e.Available() {
			return true
		}
	}
	return false
}

// Voices returns the active engine's catalog.
func (f *Fallback) Voices() []tts.Voice {
	if e := f.current(); e != nil {
		return e.Voices()
	}
	return nil
}

// Speak speaks through the active engine. After maxFailures consecutive
// failures the next available engine becomes active; the failing request is
// not retried because its voice came from the old catalog.
func (f *Fallback) Speak(req *tts.SpeechRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return tts.ErrEngineClosed
	}
	if len(f.engines) == 0 {
		return tts.ErrEngineUnavailable
	}

	err := f.engines[f.active].Speak(req)
	if err == nil {
		if f.failures > 0 {
			log.Info("Speech engine recovered", "engine", f.engines[f.active].Name(), "failures", f.failures)
			f.failures = 0
		}
		return nil
	}

	f.failures++
	log.Warn("Speech engine failed",
		"engine", f.engines[f.active].Name(),
		"attempt", f.failures,
		"of", f.maxFailures,
		"error", err)

	if f.failures >= f.maxFailures {
		f.switchLocked()
	}
	return err
}

// switchLocked activates the next available engine after the current one.
func (f *Fallback) switchLocked() {
	for step := 1; step < len(f.engines); step++ {
		next := (f.active + step) % len(f.engines)
		if !f.engines[next].Available() {
			continue
		}

		prev := f.engines[f.active]
		if err := prev.Cancel(); err != nil {
			log.Debug("Failed to cancel previous engine", "engine", prev.Name(), "error", err)
		}
		log.Warn("Switching speech engine", "from", prev.Name(), "to", f.engines[next].Name())

		f.active = next
		f.failures = 0
		select {
		case f.events <- tts.Event{Kind: tts.EventVoicesChanged, At: time.Now()}:
		default:
		}
		return
	}
}

// Pause pauses the active engine.
func (f *Fallback) Pause() error {
	if e := f.current(); e != nil {
		return e.Pause()
	}
	return tts.ErrNotSpeaking
}

// Resume resumes the active engine.
func (f *Fallback) Resume() error {
	if e := f.current(); e != nil {
		return e.Resume()
	}
	return tts.ErrNotSpeaking
}

// Cancel cancels the active engine.
func (f *Fallback) Cancel() error {
	if e := f.current(); e != nil {
		return e.Cancel()
	}
	return nil
}

// Events returns the forwarded events of the active engine.
func (f *Fallback) Events() <-chan tts.Event {
	return f.events
}

// Close closes every engine and the event channel.
func (f *Fallback) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.done)
	var errs []error
	for _, e := range f.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	f.wg.Wait()
	close(f.events)
	return errors.Join(errs...)
}

// Status describes the active engine.
func (f *Fallback) Status() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.engines) == 0 {
		return "No engines"
	}
	return fmt.Sprintf("Using %s (failures: %d/%d)", f.engines[f.active].Name(), f.failures, f.maxFailures)
}
