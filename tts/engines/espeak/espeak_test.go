package espeak

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
)

const voicesOutput = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en              --/M      English_(Great_Britain) gmw/en          (en 2)
 5  hi              --/F      Hindi              inc/hi
 2  mr              --/-      Marathi            inc/mr
`

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not found in PATH", name)
	}
}

// nextEvent skips catalog events and returns the next utterance event.
func nextEvent(t *testing.T, e *Engine) tts.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				t.Fatal("Event channel closed")
			}
			if ev.Kind == tts.EventVoicesChanged {
				continue
			}
			return ev
		case <-timeout:
			t.Fatal("Timed out waiting for event")
		}
	}
}

// TestParseVoices tests parsing of the voice table.
func TestParseVoices(t *testing.T) {
	voices := ParseVoices([]byte(voicesOutput))
	if len(voices) != 4 {
		t.Fatalf("Expected 4 voices, got %d", len(voices))
	}

	want := tts.Voice{ID: "hi", Name: "Hindi", Language: "hi", Gender: tts.GenderFemale}
	if !reflect.DeepEqual(voices[2], want) {
		t.Errorf("Expected %+v, got %+v", want, voices[2])
	}
	if voices[0].Gender != tts.GenderMale {
		t.Errorf("Expected male Afrikaans voice, got %v", voices[0].Gender)
	}
	if !voices[1].Default || voices[1].Name != "English (Great Britain)" {
		t.Errorf("Unexpected English voice: %+v", voices[1])
	}
	if voices[3].Gender != tts.GenderUnspecified {
		t.Errorf("Expected unspecified gender, got %v", voices[3].Gender)
	}
}

// TestParseVoicesGarbage tests that unrelated output is ignored.
func TestParseVoicesGarbage(t *testing.T) {
	if voices := ParseVoices([]byte("espeak-ng: command not understood\n\n")); len(voices) != 0 {
		t.Errorf("Expected no voices, got %v", voices)
	}
}

// TestArgs tests the prosody mapping onto espeak-ng flags.
func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		req  tts.SpeechRequest
		want []string
	}{
		{
			name: "defaults",
			req:  tts.SpeechRequest{Prosody: tts.DefaultProsody()},
			want: []string{"--stdin", "-s", "175", "-p", "50", "-a", "100"},
		},
		{
			name: "zero prosody",
			req:  tts.SpeechRequest{},
			want: []string{"--stdin", "-s", "175", "-p", "50", "-a", "100"},
		},
		{
			name: "voice and limits",
			req: tts.SpeechRequest{
				Voice:   tts.Voice{ID: "hi"},
				Prosody: tts.Prosody{Rate: 2.0, Pitch: 2.0, Volume: 0.5},
			},
			want: []string{"--stdin", "-v", "hi", "-s", "350", "-p", "99", "-a", "50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Args(&tt.req); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSpeakEnds tests start and end events from a process that exits cleanly.
func TestSpeakEnds(t *testing.T) {
	requireBinary(t, "true")
	engine := New(tts.EspeakConfig{Binary: "true"})
	defer engine.Close()

	if !engine.Available() {
		t.Fatal("Engine should be available")
	}
	if err := engine.Speak(&tts.SpeechRequest{ID: 3, NormalizedText: "namaste"}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	if ev := nextEvent(t, engine); ev.Kind != tts.EventStart || ev.Utterance != 3 {
		t.Errorf("Expected start of utterance 3, got %v %d", ev.Kind, ev.Utterance)
	}
	if ev := nextEvent(t, engine); ev.Kind != tts.EventEnd {
		t.Errorf("Expected end, got %v", ev.Kind)
	}
}

// TestSpeakFails tests that a failing process reports an error event.
func TestSpeakFails(t *testing.T) {
	requireBinary(t, "false")
	engine := New(tts.EspeakConfig{Binary: "false"})
	defer engine.Close()

	engine.Speak(&tts.SpeechRequest{ID: 1, NormalizedText: "namaste"})

	nextEvent(t, engine)
	ev := nextEvent(t, engine)
	if ev.Kind != tts.EventError {
		t.Fatalf("Expected error event, got %v", ev.Kind)
	}
	if !errors.Is(ev.Err, tts.ErrSynthesis) {
		t.Errorf("Expected ErrSynthesis, got %v", ev.Err)
	}
}

// TestPauseWithoutUtterance tests pause and resume when idle.
func TestPauseWithoutUtterance(t *testing.T) {
	engine := New(tts.EspeakConfig{Binary: "espeak-ng-missing"})
	defer engine.Close()

	if engine.Available() {
		t.Error("Missing binary should not be available")
	}
	if err := engine.Pause(); !errors.Is(err, tts.ErrNotSpeaking) {
		t.Errorf("Expected ErrNotSpeaking, got %v", err)
	}
	if err := engine.Resume(); !errors.Is(err, tts.ErrNotSpeaking) {
		t.Errorf("Expected ErrNotSpeaking, got %v", err)
	}
}

// TestCancelSuppressesEnd tests that a killed process reports nothing.
func TestCancelSuppressesEnd(t *testing.T) {
	requireBinary(t, "sh")
	script := filepath.Join(t.TempDir(), "slow-espeak")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	engine := New(tts.EspeakConfig{Binary: script})
	defer engine.Close()

	if err := engine.Speak(&tts.SpeechRequest{ID: 9, NormalizedText: "der tak"}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := engine.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case ev := <-engine.Events():
			if ev.Kind == tts.EventEnd || ev.Kind == tts.EventError {
				t.Fatalf("Cancelled utterance reported %v", ev.Kind)
			}
		case <-deadline:
			return
		}
	}
}

// TestCloseRejectsSpeak tests speaking after close.
func TestCloseRejectsSpeak(t *testing.T) {
	engine := New(tts.EspeakConfig{Binary: "espeak-ng-missing"})
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := engine.Speak(&tts.SpeechRequest{ID: 1}); !errors.Is(err, tts.ErrEngineClosed) {
		t.Errorf("Expected ErrEngineClosed, got %v", err)
	}
	for range engine.Events() {
	}
}
