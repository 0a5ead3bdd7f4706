package engines

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/engines/mock"
)

// TestFallbackEngine tests the fallback mechanism
func TestFallbackEngine(t *testing.T) {
	// Primary that always fails
	primary := mock.NewManual(mock.DefaultVoices()[:2])
	primary.SetFailure(errors.New("primary engine failure"))

	// Fallback that always works
	secondary := mock.NewManual(mock.DefaultVoices()[2:])

	engine := NewFallback(2, primary, secondary)
	defer engine.Close()

	if got := engine.Voices()[0].Name; got != "Lekha" {
		t.Errorf("Expected primary catalog, got %s", got)
	}

	// First attempt fails on the primary
	if err := engine.Speak(&tts.SpeechRequest{ID: 1}); err == nil {
		t.Error("Expected first attempt to fail")
	}
	if engine.Status() != "Using mock (failures: 1/2)" {
		t.Errorf("Unexpected status: %s", engine.Status())
	}

	// Second failure switches engines
	if err := engine.Speak(&tts.SpeechRequest{ID: 2}); err == nil {
		t.Error("Expected second attempt to fail")
	}

	select {
	case ev := <-engine.Events():
		if ev.Kind != tts.EventVoicesChanged {
			t.Errorf("Expected voices-changed after switch, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("No voices-changed event after switch")
	}

	if got := engine.Voices()[0].Name; got != "Samantha" {
		t.Errorf("Expected fallback catalog, got %s", got)
	}

	// Subsequent calls use the fallback
	if err := engine.Speak(&tts.SpeechRequest{ID: 3}); err != nil {
		t.Errorf("Expected fallback to speak: %v", err)
	}
	if secondary.Current() == nil || secondary.Current().ID != 3 {
		t.Error("Expected request on the fallback engine")
	}
}

// TestFallbackSkipsUnavailable tests that an unavailable primary is skipped.
func TestFallbackSkipsUnavailable(t *testing.T) {
	primary := mock.NewManual(mock.DefaultVoices())
	primary.SetAvailable(false)
	secondary := mock.NewManual(mock.DefaultVoices())

	engine := NewFallback(DefaultMaxFailures, primary, secondary)
	defer engine.Close()

	if err := engine.Speak(&tts.SpeechRequest{ID: 1}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if primary.CallCount("speak") != 0 || secondary.CallCount("speak") != 1 {
		t.Error("Expected speech on the available engine only")
	}
}

// TestFallbackForwardsActiveEvents tests that inactive engines are muted.
func TestFallbackForwardsActiveEvents(t *testing.T) {
	primary := mock.NewManual(mock.DefaultVoices())
	secondary := mock.NewManual(mock.DefaultVoices())

	engine := NewFallback(DefaultMaxFailures, primary, secondary)

	secondary.Emit(tts.Event{Kind: tts.EventEnd, Utterance: 99})
	primary.Emit(tts.Event{Kind: tts.EventStart, Utterance: 1})

	select {
	case ev := <-engine.Events():
		if ev.Utterance != 1 {
			t.Errorf("Expected event from the active engine, got utterance %d", ev.Utterance)
		}
	case <-time.After(time.Second):
		t.Fatal("Event was not forwarded")
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for range engine.Events() {
	}
	if engine.Available() {
		t.Error("Closed fallback should not be available")
	}
	if err := engine.Speak(&tts.SpeechRequest{ID: 2}); !errors.Is(err, tts.ErrEngineClosed) {
		t.Errorf("Expected ErrEngineClosed, got %v", err)
	}
}

// TestOpen tests building engines from configuration.
func TestOpen(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Engine = "espeak"
	cfg.Espeak.Binary = "espeak-ng-not-installed"
	cfg.Fallbacks = []string{"mock", "mock"}

	engine, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer engine.Close()

	if engine.Name() != "mock" {
		t.Errorf("Expected mock engine, got %s", engine.Name())
	}
	if _, ok := engine.(*Fallback); ok {
		t.Error("A single opened engine should not be wrapped")
	}

	cfg.Fallbacks = nil
	if _, err := Open(context.Background(), cfg, nil); !errors.Is(err, tts.ErrEngineUnavailable) {
		t.Errorf("Expected ErrEngineUnavailable, got %v", err)
	}
}
