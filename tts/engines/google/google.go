// Package google speaks through Cloud Text-to-Speech.
//
// Every word is preceded by an SSML mark. The service returns the time of
// each mark, and the engine replays them as boundary events against the
// audio player's position. Synthesized clips are cached on disk.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/cache"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/audio"
)

const pollInterval = 10 * time.Millisecond

var logger = log.WithPrefix("google")

// Player outputs clips and reports progress. *audio.Player implements it.
type Player interface {
	Play(audio.Clip) error
	Pause() error
	Resume() error
	Stop() error
	Position() time.Duration
	Finished() bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClient sets the synthesis backend instead of connecting to the cloud.
func WithClient(c Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithPlayer sets the audio output.
func WithPlayer(p Player) Option {
	return func(e *Engine) { e.player = p }
}

// WithCache caches synthesized clips.
func WithCache(s *cache.Store) Option {
	return func(e *Engine) { e.cache = s }
}

// Engine implements tts.Engine with Cloud Text-to-Speech.
type Engine struct {
	cfg    tts.GoogleConfig
	client Client
	player Player
	cache  *cache.Store
	events chan tts.Event
	done   chan struct{}

	mu      sync.Mutex
	wg      sync.WaitGroup
	voices  []tts.Voice
	closed  bool
	current *utterance
}

// utterance is the request being synthesized or played.
type utterance struct {
	req       *tts.SpeechRequest
	cancel    context.CancelFunc
	cancelled bool
	playing   bool
	paused    bool
}

// New creates an engine and starts loading the voice catalog. Without
// WithClient it connects to the cloud and fails if no credentials are found.
func New(ctx context.Context, cfg tts.GoogleConfig, opts ...Option) (*Engine, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	e := &Engine{
		cfg:    cfg,
		events: make(chan tts.Event, 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		client, err := NewCloudClient(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		e.client = client
	}
	if e.player == nil {
		e.player = audio.NewPlayer()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loadVoices()
	}()
	return e, nil
}

// Name returns "google".
func (e *Engine) Name() string { return "google" }

// Available reports whether the engine is open.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// Voices returns the catalog for the configured language.
func (e *Engine) Voices() []tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Voice(nil), e.voices...)
}

func (e *Engine) loadVoices() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()
	go func() {
		select {
		case <-e.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	voices, err := e.client.ListVoices(ctx, e.cfg.LanguageCode)
	if err != nil {
		logger.Warn("Failed to list voices", "language", e.cfg.LanguageCode, "error", err)
		return
	}
	logger.Debug("Voice catalog loaded", "language", e.cfg.LanguageCode, "voices", len(voices))

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.voices = voices
	e.mu.Unlock()

	select {
	case e.events <- tts.Event{Kind: tts.EventVoicesChanged, At: time.Now()}:
	case <-e.done:
	}
}

// Speak synthesizes and plays req in the background, cancelling anything
// in flight.
func (e *Engine) Speak(req *tts.SpeechRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return tts.ErrEngineClosed
	}
	e.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{req: req, cancel: cancel}
	e.current = u

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.run(ctx, u)
	}()
	return nil
}

func (e *Engine) run(ctx context.Context, u *utterance) {
	clip, marks, err := e.synthesize(ctx, u.req)
	if err != nil {
		if ctx.Err() == nil {
			e.emit(u, tts.Event{Kind: tts.EventError, Err: fmt.Errorf("%w: %w", tts.ErrSynthesis, err)})
			e.release(u)
		}
		return
	}

	e.mu.Lock()
	if u.cancelled {
		e.mu.Unlock()
		return
	}
	if err := e.player.Play(clip); err != nil {
		e.mu.Unlock()
		e.emit(u, tts.Event{Kind: tts.EventError, Err: fmt.Errorf("%w: %w", tts.ErrSynthesis, err)})
		e.release(u)
		return
	}
	u.playing = true
	if u.paused {
		e.player.Pause()
	}
	e.mu.Unlock()

	e.emit(u, tts.Event{Kind: tts.EventStart})
	e.track(ctx, u, newTracker(marks))
}

// track polls the player and reports marks as they are heard.
func (e *Engine) track(ctx context.Context, u *utterance, t *tracker) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, m := range t.due(e.player.Position()) {
			e.emit(u, tts.Event{Kind: tts.EventBoundary, Offset: m.Offset})
		}
		if e.player.Finished() {
			if !e.release(u) {
				return
			}
			e.emit(u, tts.Event{Kind: tts.EventEnd})
			return
		}
	}
}

// release clears u as the current utterance. It reports false if u was
// already replaced or cancelled.
func (e *Engine) release(u *utterance) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != u || u.cancelled {
		return false
	}
	e.current = nil
	return true
}

func (e *Engine) synthesize(ctx context.Context, req *tts.SpeechRequest) (audio.Clip, []Mark, error) {
	ssml := BuildSSML(req.NormalizedText)
	key := cache.Key(
		req.Voice.ID,
		strconv.FormatFloat(req.Rate, 'f', 3, 64),
		strconv.FormatFloat(req.Pitch, 'f', 3, 64),
		strconv.FormatFloat(req.Volume, 'f', 3, 64),
		strconv.Itoa(e.cfg.SampleRate),
		ssml,
	)

	if e.cache != nil {
		if data, ok := e.cache.Get(key); ok {
			clip, marks, err := decodeEntry(data)
			if err == nil {
				logger.Debug("Cache hit", "utterance", req.ID)
				return clip, marks, nil
			}
			logger.Warn("Dropping corrupt cache entry", "error", err)
			e.cache.Delete(key)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	clip, marks, err := e.client.Synthesize(ctx, Synthesis{
		SSML:       ssml,
		Voice:      req.Voice,
		Prosody:    req.Prosody,
		SampleRate: e.cfg.SampleRate,
	})
	if err != nil {
		return audio.Clip{}, nil, err
	}
	logger.Debug("Synthesized",
		"utterance", req.ID,
		"audio", clip.Duration(),
		"marks", len(marks),
		"took", time.Since(start))

	if e.cache != nil {
		if data, err := encodeEntry(clip, marks); err == nil {
			if err := e.cache.Put(key, data); err != nil {
				logger.Debug("Failed to cache clip", "error", err)
			}
		}
	}
	return clip, marks, nil
}

func (e *Engine) emit(u *utterance, ev tts.Event) {
	ev.Utterance = u.req.ID
	ev.At = time.Now()

	e.mu.Lock()
	drop := u.cancelled || e.closed
	e.mu.Unlock()
	if drop {
		return
	}
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Pause pauses playback, or holds the clip if it is still being synthesized.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if e.current.paused {
		return nil
	}
	e.current.paused = true
	if e.current.playing {
		return e.player.Pause()
	}
	return nil
}

// Resume continues playback.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if !e.current.paused {
		return nil
	}
	e.current.paused = false
	if e.current.playing {
		return e.player.Resume()
	}
	return nil
}

// Cancel stops synthesis and playback without an end event.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	return nil
}

// Events returns the notification channel. It is closed by Close.
func (e *Engine) Events() <-chan tts.Event {
	return e.events
}

// Close stops playback, closes the client and the event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stopLocked()
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
	close(e.events)
	return e.client.Close()
}

func (e *Engine) stopLocked() {
	u := e.current
	if u == nil {
		return
	}
	u.cancelled = true
	u.cancel()
	if u.playing {
		if err := e.player.Stop(); err != nil {
			logger.Debug("Failed to stop player", "error", err)
		}
	}
	e.current = nil
}

// entryHeader precedes the PCM in a cache entry.
type entryHeader struct {
	Format audio.Format `json:"format"`
	Marks  []Mark       `json:"marks"`
}

func encodeEntry(clip audio.Clip, marks []Mark) ([]byte, error) {
	header, err := json.Marshal(entryHeader{Format: clip.Format, Marks: marks})
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.Grow(len(header) + 1 + len(clip.PCM))
	b.Write(header)
	b.WriteByte('\n')
	b.Write(clip.PCM)
	return b.Bytes(), nil
}

func decodeEntry(data []byte) (audio.Clip, []Mark, error) {
	header, pcm, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return audio.Clip{}, nil, errors.New("missing cache entry header")
	}
	var h entryHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return audio.Clip{}, nil, fmt.Errorf("%w: %w", cache.ErrCacheCorrupted, err)
	}
	clip := audio.Clip{PCM: pcm, Format: h.Format}
	if err := h.Format.Validate(pcm); err != nil {
		return audio.Clip{}, nil, fmt.Errorf("%w: %w", cache.ErrCacheCorrupted, err)
	}
	return clip, h.Marks, nil
}
