// Package espeak drives the espeak-ng command line synthesizer.
//
// espeak-ng plays audio itself and reports no progress, so the engine only
// emits start and end events. The controller animates these utterances in
// simulated mode.
package espeak

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/tts"
)

const (
	defaultWPM   = 175
	maxPitch     = 99
	maxAmplitude = 200
)

var logger = log.WithPrefix("espeak")

// Engine implements tts.Engine on top of an espeak-ng subprocess.
type Engine struct {
	cfg    tts.EspeakConfig
	events chan tts.Event
	done   chan struct{}

	mu      sync.Mutex
	wg      sync.WaitGroup
	voices  []tts.Voice
	closed  bool
	current *utterance
}

// utterance is one running espeak-ng process.
type utterance struct {
	id        uint64
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	cancelled bool
	paused    bool
}

// New creates an engine and starts loading the voice catalog in the
// background. A voices-changed event follows once the catalog is known.
func New(cfg tts.EspeakConfig) *Engine {
	if cfg.Binary == "" {
		cfg.Binary = "espeak-ng"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	e := &Engine{
		cfg:    cfg,
		events: make(chan tts.Event, 64),
		done:   make(chan struct{}),
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loadVoices()
	}()
	return e
}

// Name returns "espeak".
func (e *Engine) Name() string { return "espeak" }

// Available reports whether the binary can be found.
func (e *Engine) Available() bool {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return false
	}
	_, err := exec.LookPath(e.cfg.Binary)
	return err == nil
}

// Voices returns the catalog parsed from `espeak-ng --voices`.
func (e *Engine) Voices() []tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Voice(nil), e.voices...)
}

func (e *Engine) loadVoices() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, e.cfg.Binary, "--voices").Output()
	if err != nil {
		logger.Warn("Failed to list voices", "binary", e.cfg.Binary, "error", err)
		return
	}

	voices := ParseVoices(out)
	logger.Debug("Voice catalog loaded", "voices", len(voices))

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

// ParseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  hi              --/M      Hindi              inc/hi
func ParseVoices(out []byte) []tts.Voice {
	var voices []tts.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		v := tts.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
			Default:  fields[1] == "en",
		}
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			v.Gender = tts.ParseGender(g)
		}
		voices = append(voices, v)
	}
	return voices
}

// Args returns the espeak-ng arguments for req. Text is passed on stdin.
func Args(req *tts.SpeechRequest) []string {
	args := []string{"--stdin"}
	if req.Voice.ID != "" {
		args = append(args, "-v", req.Voice.ID)
	}

	p := req.Prosody
	if p == (tts.Prosody{}) {
		p = tts.DefaultProsody()
	}
	wpm := int(math.Round(defaultWPM * p.Rate))
	pitch := min(int(math.Round(p.Pitch*50)), maxPitch)
	amp := min(int(math.Round(p.Volume*100)), maxAmplitude)

	return append(args,
		"-s", strconv.Itoa(wpm),
		"-p", strconv.Itoa(pitch),
		"-a", strconv.Itoa(amp),
	)
}

// Speak starts an espeak-ng process for req, killing any current one.
func (e *Engine) Speak(req *tts.SpeechRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return tts.ErrEngineClosed
	}
	e.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, e.cfg.Binary, Args(req)...)

	// Stdin must be set before Start.
	cmd.Stdin = strings.NewReader(req.NormalizedText)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", e.cfg.Binary, err)
	}

	u := &utterance{id: req.ID, cmd: cmd, cancel: cancel}
	e.current = u
	logger.Debug("Speaking", "utterance", req.ID, "voice", req.Voice.ID, "pid", cmd.Process.Pid)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.wait(u, &stderr)
	}()
	return nil
}

// wait reports the lifecycle of u until its process exits.
func (e *Engine) wait(u *utterance, stderr *bytes.Buffer) {
	e.emit(u, tts.Event{Kind: tts.EventStart})

	err := u.cmd.Wait()
	u.cancel()

	e.mu.Lock()
	cancelled := u.cancelled
	if e.current == u {
		e.current = nil
	}
	e.mu.Unlock()

	if cancelled {
		return
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		e.emit(u, tts.Event{Kind: tts.EventError, Err: fmt.Errorf("%w: %w", tts.ErrSynthesis, err)})
		return
	}
	e.emit(u, tts.Event{Kind: tts.EventEnd})
}

func (e *Engine) emit(u *utterance, ev tts.Event) {
	ev.Utterance = u.id
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

// Pause stops the process with SIGSTOP where the platform allows it.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if e.current.paused {
		return nil
	}
	if err := suspend(e.current.cmd.Process); err != nil {
		return err
	}
	e.current.paused = true
	return nil
}

// Resume continues a stopped process with SIGCONT.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if !e.current.paused {
		return nil
	}
	if err := resume(e.current.cmd.Process); err != nil {
		return err
	}
	e.current.paused = false
	return nil
}

// Cancel kills the current process. No end event is sent.
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

// Close kills any running process and closes the event channel.
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
	return nil
}

func (e *Engine) stopLocked() {
	u := e.current
	if u == nil {
		return
	}
	u.cancelled = true
	if u.paused {
		// A stopped process does not act on SIGKILL until continued on
		// some platforms.
		if err := resume(u.cmd.Process); err != nil && !errors.Is(err, tts.ErrNotImplemented) {
			logger.Debug("Failed to continue process before kill", "error", err)
		}
	}
	u.cancel()
	e.current = nil
}
