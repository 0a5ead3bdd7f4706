package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/voice"
)

// command is a controller call made from another goroutine.
type command struct {
	fn    func(c *Controller) error
	reply chan error
}

// Runner owns a Controller on a single goroutine. Commands, engine events
// and timer deadlines are handled one at a time in arrival order, so the
// controller never sees concurrent calls.
type Runner struct {
	ctrl   *Controller
	engine tts.Engine
	buffer int

	cmds chan command
	done chan struct{}

	mu      gosync.RWMutex
	subs    map[int]chan Frame
	nextSub int
	last    Frame
}

// NewRunner wraps a new controller for engine. Frames are fanned out to
// subscribers with the given per-subscriber buffer; a subscriber that
// falls behind misses frames rather than stalling the controller.
func NewRunner(engine tts.Engine, opts Options, buffer int) *Runner {
	if buffer < 1 {
		buffer = 1
	}
	r := &Runner{
		engine: engine,
		buffer: buffer,
		cmds:   make(chan command),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Frame),
	}

	onFrame := opts.OnFrame
	opts.OnFrame = func(f Frame) {
		r.broadcast(f)
		if onFrame != nil {
			onFrame(f)
		}
	}
	r.ctrl = NewController(engine, opts)
	return r
}

// Run processes work until ctx is cancelled. The controller is disposed on
// return and every subscription is closed.
func (r *Runner) Run(ctx context.Context) error {
	defer r.shutdown()

	var events <-chan tts.Event
	if r.engine != nil {
		events = r.engine.Events()
	}

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		r.ctrl.Tick()

		var wake <-chan time.Time
		if next, ok := r.ctrl.NextDeadline(); ok {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(max(next.Sub(r.ctrl.clock.Now()), 0))
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-r.cmds:
			cmd.reply <- cmd.fn(r.ctrl)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.ctrl.HandleEvent(ev)

		case <-wake:
		}
	}
}

func (r *Runner) shutdown() {
	r.ctrl.Dispose()
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
}

// do runs fn on the controller goroutine and waits for its result.
func (r *Runner) do(ctx context.Context, fn func(c *Controller) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return tts.ErrControllerDisposed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-r.done:
		return tts.ErrControllerDisposed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Speak starts a new utterance and returns its id.
func (r *Runner) Speak(ctx context.Context, text string, p tts.Prosody, hint tts.VoiceHint) (uint64, error) {
	var id uint64
	err := r.do(ctx, func(c *Controller) error {
		var err error
		id, err = c.Speak(text, p, hint)
		return err
	})
	return id, err
}

// Pause suspends the current utterance.
func (r *Runner) Pause(ctx context.Context) error {
	return r.do(ctx, (*Controller).Pause)
}

// Resume continues the current utterance.
func (r *Runner) Resume(ctx context.Context) error {
	return r.do(ctx, (*Controller).Resume)
}

// Stop abandons the current utterance.
func (r *Runner) Stop(ctx context.Context) error {
	return r.do(ctx, (*Controller).Stop)
}

// Request returns a copy of the current speech request, if any.
func (r *Runner) Request(ctx context.Context) (tts.SpeechRequest, bool, error) {
	var (
		req tts.SpeechRequest
		ok  bool
	)
	err := r.do(ctx, func(c *Controller) error {
		var p *tts.SpeechRequest
		if p, ok = c.Request(); ok {
			req = *p
		}
		return nil
	})
	return req, ok, err
}

// SetHint switches the persona hint used for re-selection. In-flight
// utterances keep their voice.
func (r *Runner) SetHint(hint tts.VoiceHint) (tts.Voice, bool) {
	sel := r.ctrl.Selector()
	sel.SetHint(hint)
	return sel.Pinned()
}

// Selector returns the voice selector. Safe for concurrent use.
func (r *Runner) Selector() *voice.Selector {
	return r.ctrl.Selector()
}

// Mouth returns the current mouth value. Safe for concurrent use.
func (r *Runner) Mouth() float64 {
	return r.ctrl.Mouth()
}

// Snapshot returns the most recently published frame.
func (r *Runner) Snapshot() Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Subscribe returns a channel of frames and a function that ends the
// subscription. The channel is closed when the runner stops.
func (r *Runner) Subscribe() (<-chan Frame, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Frame, r.buffer)
	select {
	case <-r.done:
		close(ch)
		return ch, func() {}
	default:
	}

	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				close(c)
				delete(r.subs, id)
			}
		})
	}
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) broadcast(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = f
	for _, ch := range r.subs {
		select {
		case ch <- f:
		default:
		}
	}
}
