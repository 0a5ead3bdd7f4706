package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/engines/mock"
	ttsync "github.com/dgnsrekt/mouthpiece/tts/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRunner(t *testing.T, cfg tts.MockConfig) (*ttsync.Runner, *mock.Engine, context.CancelFunc) {
	t.Helper()
	engine := mock.New(cfg)
	r := ttsync.NewRunner(engine, ttsync.DefaultOptions(), 256)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errc:
		case <-time.After(2 * time.Second):
			t.Error("runner did not stop")
		}
		engine.Close()
	})
	return r, engine, cancel
}

// speakWhenReady retries until the asynchronous catalog has loaded.
func speakWhenReady(t *testing.T, r *ttsync.Runner, text string) uint64 {
	t.Helper()
	var id uint64
	require.Eventually(t, func() bool {
		var err error
		id, err = r.Speak(context.Background(), text, tts.DefaultProsody(), female)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	return id
}

func TestRunnerBoundaryUtterance(t *testing.T) {
	r, _, _ := startRunner(t, tts.MockConfig{Boundaries: mock.BoundariesWord, CharInterval: 10 * time.Millisecond})

	frames, unsubscribe := r.Subscribe()
	defer unsubscribe()

	id := speakWhenReady(t, r, "namaste duniya kaise ho")

	var sawBoundary, sawIdle bool
	timeout := time.After(5 * time.Second)
	for !sawIdle {
		select {
		case f := <-frames:
			if f.Utterance == id && f.Mode == ttsync.ModeBoundary {
				sawBoundary = true
			}
			if sawBoundary && f.State == tts.StateIdle {
				sawIdle = true
			}
		case <-timeout:
			t.Fatalf("utterance never finished (boundary seen: %v)", sawBoundary)
		}
	}

	assert.Equal(t, tts.StateIdle, r.Snapshot().State)
	assert.GreaterOrEqual(t, r.Mouth(), 0.12)
	assert.LessOrEqual(t, r.Mouth(), 1.6)
}

func TestRunnerFallsBackWithoutBoundaries(t *testing.T) {
	r, _, _ := startRunner(t, tts.MockConfig{Boundaries: mock.BoundariesNone, CharInterval: 40 * time.Millisecond})

	frames, unsubscribe := r.Subscribe()
	defer unsubscribe()

	speakWhenReady(t, r, "bina seema ke ghatnaayein aati hain")

	timeout := time.After(3 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.Mode == ttsync.ModeSimulated && f.Cursor > 0 {
				return
			}
		case <-timeout:
			t.Fatal("never switched to simulated mode")
		}
	}
}

func TestRunnerCommands(t *testing.T) {
	r, engine, _ := startRunner(t, tts.MockConfig{Boundaries: mock.BoundariesWord, CharInterval: 50 * time.Millisecond})
	ctx := context.Background()

	assert.ErrorIs(t, r.Pause(ctx), tts.ErrInvalidState)
	assert.NoError(t, r.Stop(ctx))

	speakWhenReady(t, r, "ek lamba vakya jo der tak chalta hai")
	require.NoError(t, r.Pause(ctx))
	assert.Equal(t, 1, engine.CallCount("pause"))

	req, ok, err := r.Request(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Lekha", req.Voice.Name)

	require.NoError(t, r.Resume(ctx))
	require.NoError(t, r.Stop(ctx))

	_, ok, err = r.Request(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunnerSetHint(t *testing.T) {
	r, _, _ := startRunner(t, tts.MockConfig{LoadDelay: time.Millisecond})

	require.Eventually(t, func() bool {
		return len(r.Selector().Voices()) > 0
	}, 2*time.Second, 5*time.Millisecond, "voices-changed reaches the selector")

	v, ok := r.SetHint(male)
	require.True(t, ok)
	assert.Equal(t, "Rishi", v.Name)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r, _, cancel := startRunner(t, tts.MockConfig{})
	frames, _ := r.Subscribe()

	cancel()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	for range frames {
	}

	_, err := r.Speak(context.Background(), "hello", tts.DefaultProsody(), female)
	assert.ErrorIs(t, err, tts.ErrControllerDisposed)

	late, _ := r.Subscribe()
	_, open := <-late
	assert.False(t, open, "subscriptions after shutdown are closed")
}
