package mock

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
)

// collect reads events until an end event or the timeout.
func collect(t *testing.T, e *Engine, timeout time.Duration) []tts.Event {
	t.Helper()
	var out []tts.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind == tts.EventVoicesChanged {
				continue
			}
			out = append(out, ev)
			if ev.Kind == tts.EventEnd {
				return out
			}
		case <-deadline:
			return out
		}
	}
}

func kinds(events []tts.Event) []tts.EventKind {
	out := make([]tts.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// TestNewManual tests that a manual engine is ready immediately.
func TestNewManual(t *testing.T) {
	engine := NewManual(DefaultVoices())
	defer engine.Close()

	if !engine.Available() {
		t.Error("Mock engine should be available by default")
	}
	if got := len(engine.Voices()); got != 4 {
		t.Errorf("Expected 4 voices, got %d", got)
	}
	if engine.Name() != "mock" {
		t.Errorf("Expected name mock, got %s", engine.Name())
	}
}

// TestAsyncCatalogLoad tests that the catalog starts empty and is announced.
func TestAsyncCatalogLoad(t *testing.T) {
	engine := New(tts.MockConfig{LoadDelay: 20 * time.Millisecond})
	defer engine.Close()

	if got := len(engine.Voices()); got != 0 {
		t.Fatalf("Expected empty catalog before load, got %d voices", got)
	}

	select {
	case ev := <-engine.Events():
		if ev.Kind != tts.EventVoicesChanged {
			t.Fatalf("Expected voices-changed, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("Catalog never loaded")
	}

	if got := len(engine.Voices()); got != 4 {
		t.Errorf("Expected 4 voices after load, got %d", got)
	}
}

// TestOffsets tests boundary placement for each mode.
func TestOffsets(t *testing.T) {
	runes := []rune("ab  cd e")

	tests := []struct {
		mode string
		want []int
	}{
		{BoundariesWord, []int{0, 4, 7}},
		{BoundariesBurst, []int{0, 4, 7}},
		{BoundariesChar, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{BoundariesNone, nil},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got := Offsets(runes, tt.mode)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Offsets(%q) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

// TestPlaybackEvents tests the event sequence of a spoken utterance.
func TestPlaybackEvents(t *testing.T) {
	engine := New(tts.MockConfig{Boundaries: BoundariesWord, CharInterval: time.Millisecond})
	defer engine.Close()

	req := &tts.SpeechRequest{ID: 7, NormalizedText: "hi there", Prosody: tts.DefaultProsody()}
	if err := engine.Speak(req); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	events := collect(t, engine, 2*time.Second)
	want := []tts.EventKind{tts.EventStart, tts.EventBoundary, tts.EventBoundary, tts.EventEnd}
	if !reflect.DeepEqual(kinds(events), want) {
		t.Fatalf("Expected %v, got %v", want, kinds(events))
	}
	for _, ev := range events {
		if ev.Utterance != 7 {
			t.Errorf("Event %v carries utterance %d, want 7", ev.Kind, ev.Utterance)
		}
	}
	if events[2].Offset != 3 {
		t.Errorf("Expected second boundary at 3, got %d", events[2].Offset)
	}
	if engine.Current() != nil {
		t.Error("Current should be cleared after end")
	}
}

// TestNoBoundaries tests that mode none reports only start and end.
func TestNoBoundaries(t *testing.T) {
	engine := New(tts.MockConfig{Boundaries: BoundariesNone, CharInterval: time.Millisecond})
	defer engine.Close()

	engine.Speak(&tts.SpeechRequest{ID: 1, NormalizedText: "quiet", Prosody: tts.DefaultProsody()})

	events := collect(t, engine, 2*time.Second)
	want := []tts.EventKind{tts.EventStart, tts.EventEnd}
	if !reflect.DeepEqual(kinds(events), want) {
		t.Errorf("Expected %v, got %v", want, kinds(events))
	}
}

// TestCancelSuppressesEnd tests that a cancelled utterance never ends.
func TestCancelSuppressesEnd(t *testing.T) {
	engine := New(tts.MockConfig{Boundaries: BoundariesNone, CharInterval: 50 * time.Millisecond})
	defer engine.Close()

	engine.Speak(&tts.SpeechRequest{ID: 1, NormalizedText: "a long sentence", Prosody: tts.DefaultProsody()})
	if err := engine.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	for _, ev := range collect(t, engine, 200*time.Millisecond) {
		if ev.Kind == tts.EventEnd {
			t.Fatal("Cancelled utterance reported end")
		}
	}
	if engine.CallCount("cancel") != 1 {
		t.Errorf("Expected 1 cancel call, got %d", engine.CallCount("cancel"))
	}
}

// TestPauseResume tests pause errors and that paused time is not counted.
func TestPauseResume(t *testing.T) {
	engine := New(tts.MockConfig{Boundaries: BoundariesNone, CharInterval: 20 * time.Millisecond})
	defer engine.Close()

	if err := engine.Pause(); !errors.Is(err, tts.ErrNotSpeaking) {
		t.Errorf("Expected ErrNotSpeaking, got %v", err)
	}

	engine.Speak(&tts.SpeechRequest{ID: 1, NormalizedText: "abcd", Prosody: tts.DefaultProsody()})
	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	for _, ev := range collect(t, engine, 100*time.Millisecond) {
		if ev.Kind == tts.EventEnd {
			t.Fatal("Paused utterance ended")
		}
	}

	if err := engine.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	events := collect(t, engine, 2*time.Second)
	if len(events) == 0 || events[len(events)-1].Kind != tts.EventEnd {
		t.Errorf("Expected end after resume, got %v", kinds(events))
	}
}

// TestSpeakWithFailure tests error injection.
func TestSpeakWithFailure(t *testing.T) {
	engine := NewManual(DefaultVoices())
	defer engine.Close()

	testError := errors.New("test error")
	engine.SetFailure(testError)

	if err := engine.Speak(&tts.SpeechRequest{ID: 1}); err != testError {
		t.Errorf("Expected injected error, got %v", err)
	}

	engine.ClearFailure()
	if err := engine.Speak(&tts.SpeechRequest{ID: 2}); err != nil {
		t.Errorf("Unexpected error after clearing failure: %v", err)
	}
	if got := len(engine.Requests()); got != 1 {
		t.Errorf("Expected 1 recorded request, got %d", got)
	}
}

// TestClose tests that Close closes the event channel and rejects speech.
func TestClose(t *testing.T) {
	engine := New(tts.MockConfig{LoadDelay: time.Millisecond})
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	for range engine.Events() {
	}

	if engine.Available() {
		t.Error("Closed engine should not be available")
	}
	if err := engine.Speak(&tts.SpeechRequest{ID: 1}); !errors.Is(err, tts.ErrEngineClosed) {
		t.Errorf("Expected ErrEngineClosed, got %v", err)
	}
}
