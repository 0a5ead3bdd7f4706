// Package sync drives the mouth from an utterance and the speech engine's
// progress reports.
//
// The Controller is a single-goroutine state machine. Engine boundary
// events advance the cursor when they arrive; if none arrive within the
// grace window the utterance switches, for good, to a self-timed walk over
// the text. Runner wraps a Controller in a goroutine for concurrent use.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/observe"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/sched"
	"github.com/dgnsrekt/mouthpiece/tts/tween"
	"github.com/dgnsrekt/mouthpiece/tts/viseme"
	"github.com/dgnsrekt/mouthpiece/tts/voice"
	"golang.org/x/time/rate"
)

const component = "controller"

// End reasons recorded in metrics.
const (
	reasonEnd        = "end"
	reasonError      = "error"
	reasonStop       = "stop"
	reasonSuperseded = "superseded"
	reasonCeiling    = "ceiling"
)

// Options configures a Controller.
type Options struct {
	Sync  tts.SyncConfig
	Mouth tts.MouthConfig
	Voice tts.VoiceConfig

	// Clock defaults to the system clock.
	Clock sched.Clock

	// Selector defaults to a new selector built from Voice.
	Selector *voice.Selector

	// Metrics may be nil.
	Metrics *observe.Metrics

	// OnFrame receives every rendered frame on the controller goroutine.
	OnFrame func(Frame)
}

// DefaultOptions returns options with default timings.
func DefaultOptions() Options {
	return Options{
		Sync:  tts.DefaultSyncConfig(),
		Mouth: tts.DefaultMouthConfig(),
		Voice: tts.DefaultVoiceConfig(),
	}
}

// utterance is everything owned by one speak call. It is discarded on end,
// stop or supersession.
type utterance struct {
	req      *tts.SpeechRequest
	text     viseme.Text
	timeline viseme.Timeline
	started  time.Time

	mode         Mode
	boundarySeen bool
	cursor       int
	next         int // Next rune for the simulated walk
	limiter      *rate.Limiter

	grace   sched.Handle
	ceiling sched.Handle
	step    sched.Handle
	close   sched.Handle

	ceilingAt time.Time
	remaining time.Duration // Ceiling time left while paused
}

// Controller synchronizes the mouth with one utterance at a time. It is not
// safe for concurrent use; see Runner.
type Controller struct {
	engine   tts.Engine
	cfg      tts.SyncConfig
	mouth    tts.MouthConfig
	marker   rune
	clock    sched.Clock
	sched    *sched.Scheduler
	tween    *tween.Engine
	sm       *tts.StateMachine
	selector *voice.Selector
	metrics  *observe.Metrics
	onFrame  func(Frame)
	log      *log.Logger

	utt      *utterance
	lastID   uint64
	frame    sched.Handle
	blink    bool
	disposed bool
}

// NewController creates a controller for engine.
func NewController(engine tts.Engine, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = sched.SystemClock{}
	}
	if opts.Selector == nil {
		opts.Selector = voice.NewSelector(voice.MarkersFromConfig(opts.Voice))
	}

	c := &Controller{
		engine:   engine,
		cfg:      opts.Sync,
		mouth:    opts.Mouth,
		marker:   opts.Voice.PauseRune(),
		clock:    opts.Clock,
		sched:    sched.New(),
		tween:    tween.New(opts.Mouth),
		sm:       tts.NewStateMachine(),
		selector: opts.Selector,
		metrics:  opts.Metrics,
		onFrame:  opts.OnFrame,
		log:      log.WithPrefix("sync"),
	}
	for _, s := range []tts.StateType{tts.StateIdle, tts.StateSpeaking, tts.StatePaused, tts.StateEnded} {
		c.sm.OnEnter(s, func() { c.log.Debug("state", "state", s) })
	}
	return c
}

// Speak starts a new utterance, superseding any in flight. Requests are
// validated before anything is torn down, so a rejected call leaves the
// current utterance untouched. It returns the utterance id.
func (c *Controller) Speak(text string, p tts.Prosody, hint tts.VoiceHint) (uint64, error) {
	if c.disposed {
		return 0, tts.ErrControllerDisposed
	}
	now := c.Tick()

	if strings.TrimSpace(text) == "" {
		return 0, c.reject("invalid_request", tts.ErrInvalidRequest)
	}
	if err := p.Validate(); err != nil {
		return 0, c.reject("invalid_request", fmt.Errorf("%w: %w", tts.ErrInvalidRequest, err))
	}
	if c.engine == nil || !c.engine.Available() {
		return 0, c.reject("engine_unavailable", tts.ErrEngineUnavailable)
	}
	v, err := c.selector.Select(c.engine, hint)
	if err != nil {
		return 0, c.reject("voice_unavailable", err)
	}

	if c.utt != nil {
		c.cancelEngine()
		c.teardown(now, reasonSuperseded)
		c.sm.Transition(tts.StateIdle)
	}

	norm := viseme.Normalize(text, c.marker)
	c.lastID++
	req := &tts.SpeechRequest{
		ID:             c.lastID,
		RawText:        text,
		NormalizedText: norm.String(),
		Prosody:        p,
		Voice:          v,
	}
	if err := c.engine.Speak(req); err != nil {
		c.tween.Tween(now, c.mouth.Rest, c.cfg.RestTween)
		c.ensureFrames(now)
		return 0, c.reject("synthesis", fmt.Errorf("%w: %w", tts.ErrSynthesis, err))
	}

	u := &utterance{
		req:      req,
		text:     norm,
		timeline: viseme.BuildTimeline(norm, p.Rate),
		started:  now,
		limiter:  rate.NewLimiter(rate.Every(c.cfg.CoalesceWindow), 1),
	}
	c.utt = u
	c.sm.Transition(tts.StateSpeaking)
	c.metrics.RecordUtterance(context.Background(), c.engine.Name())

	c.tween.Tween(now, c.mouth.Start, c.cfg.RestTween)
	u.grace = c.sched.After(now, c.cfg.GraceWindow, func(at time.Time) { c.onGrace(u, at) })
	c.armCeiling(u, now, c.ceiling(u))
	c.ensureFrames(now)

	c.log.Debug("speaking", "utterance", req.ID, "voice", v.Name, "runes", norm.Len(), "rate", p.Rate)
	return req.ID, nil
}

// Pause suspends the utterance. Only valid while speaking.
func (c *Controller) Pause() error {
	if c.disposed {
		return tts.ErrControllerDisposed
	}
	now := c.Tick()
	if c.sm.Current() != tts.StateSpeaking {
		return tts.NewTTSError(tts.ErrInvalidState, component, "pause").
			WithSeverity(tts.SeverityWarning).
			WithContext("state", c.sm.Current().String())
	}
	if err := c.engine.Pause(); err != nil {
		return tts.NewTTSError(err, component, "pause")
	}

	u := c.utt
	c.cancel(&u.step)
	c.cancel(&u.close)
	if c.cancel(&u.ceiling) {
		u.remaining = u.ceilingAt.Sub(now)
	}

	c.tween.Tween(now, c.mouth.Paused, c.cfg.RestTween)
	c.sm.Transition(tts.StatePaused)
	c.ensureFrames(now)
	c.log.Debug("paused", "utterance", u.req.ID, "cursor", u.cursor)
	return nil
}

// Resume continues a paused utterance. The grace timer is not re-armed.
func (c *Controller) Resume() error {
	if c.disposed {
		return tts.ErrControllerDisposed
	}
	now := c.Tick()
	if c.sm.Current() != tts.StatePaused {
		return tts.NewTTSError(tts.ErrInvalidState, component, "resume").
			WithSeverity(tts.SeverityWarning).
			WithContext("state", c.sm.Current().String())
	}
	if err := c.engine.Resume(); err != nil {
		return tts.NewTTSError(err, component, "resume")
	}

	u := c.utt
	c.sm.Transition(tts.StateSpeaking)
	c.armCeiling(u, now, u.remaining)
	c.tween.Tween(now, c.mouth.Start, c.cfg.RestTween)
	if u.mode == ModeSimulated && u.next < u.text.Len() {
		u.step = c.sched.After(now, 0, func(at time.Time) { c.onStep(u, at) })
	}
	c.ensureFrames(now)
	c.log.Debug("resumed", "utterance", u.req.ID, "mode", u.mode)
	return nil
}

// Stop abandons any utterance and returns the mouth to rest. It is safe to
// call in any state, repeatedly.
func (c *Controller) Stop() error {
	if c.disposed {
		return tts.ErrControllerDisposed
	}
	now := c.Tick()
	if c.utt != nil {
		c.cancelEngine()
		c.log.Debug("stopped", "utterance", c.utt.req.ID)
	}
	c.teardown(now, reasonStop)
	c.sm.Transition(tts.StateIdle)
	c.tween.Tween(now, c.mouth.Rest, c.cfg.RestTween)
	c.ensureFrames(now)
	c.publish(now)
	return nil
}

// Dispose stops the controller for good. Later calls fail with
// tts.ErrControllerDisposed.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}
	if c.utt != nil {
		c.cancelEngine()
	}
	c.teardown(c.clock.Now(), reasonStop)
	c.sm.Transition(tts.StateIdle)
	c.disposed = true
}

// HandleEvent applies one engine notification.
func (c *Controller) HandleEvent(ev tts.Event) {
	if c.disposed {
		return
	}
	now := c.Tick()

	if ev.Kind == tts.EventVoicesChanged {
		changed, err := c.selector.Refresh(c.engine)
		if err != nil {
			c.log.Warn("voice catalog refresh failed", "err", err)
			return
		}
		if v, ok := c.selector.Pinned(); changed && ok {
			c.log.Info("voice re-selected", "voice", v.Name, "language", v.Language)
		}
		return
	}

	u := c.utt
	if u == nil || ev.Utterance != u.req.ID {
		if ev.Kind == tts.EventBoundary {
			c.metrics.RecordBoundary(context.Background(), observe.BoundaryStale)
		}
		c.log.Debug("dropping stale event", "kind", ev.Kind, "utterance", ev.Utterance)
		return
	}

	switch ev.Kind {
	case tts.EventStart:
		c.log.Debug("engine started", "utterance", u.req.ID)
	case tts.EventBoundary:
		c.onBoundary(u, now, ev.Offset)
	case tts.EventEnd:
		c.finish(now, reasonEnd)
	case tts.EventError:
		err := tts.NewTTSError(ev.Err, c.engine.Name(), "speak").WithContext("utterance", u.req.ID)
		if err.IsRecoverable() {
			c.log.Warn("engine error", "utterance", u.req.ID, "err", err)
		} else {
			c.log.Error("engine failed", "utterance", u.req.ID, "err", err)
		}
		c.finish(now, reasonError)
	}
}

// Tick runs every timer that is due and returns the current time.
func (c *Controller) Tick() time.Time {
	now := c.clock.Now()
	c.sched.RunDue(now)
	return now
}

// NextDeadline returns when Tick next has work to do.
func (c *Controller) NextDeadline() (time.Time, bool) {
	return c.sched.Next()
}

// Pending returns the number of armed timers, render loop included.
func (c *Controller) Pending() int {
	return c.sched.Pending()
}

// State returns the lifecycle state.
func (c *Controller) State() tts.StateType {
	return c.sm.Current()
}

// Mode returns the cursor source of the current utterance.
func (c *Controller) Mode() Mode {
	if c.utt == nil {
		return ModePending
	}
	return c.utt.mode
}

// Cursor returns the rune index the mouth is shaping.
func (c *Controller) Cursor() int {
	if c.utt == nil {
		return 0
	}
	return c.utt.cursor
}

// Utterance returns the id of the current utterance, or zero.
func (c *Controller) Utterance() uint64 {
	if c.utt == nil {
		return 0
	}
	return c.utt.req.ID
}

// Request returns the current speech request, if any.
func (c *Controller) Request() (*tts.SpeechRequest, bool) {
	if c.utt == nil {
		return nil, false
	}
	return c.utt.req, true
}

// Mouth returns the current mouth value. Safe for concurrent use.
func (c *Controller) Mouth() float64 {
	return c.tween.Value()
}

// Selector returns the voice selector.
func (c *Controller) Selector() *voice.Selector {
	return c.selector
}

// Frame returns a snapshot of the face at now.
func (c *Controller) Frame(now time.Time) Frame {
	return Frame{
		Mouth:     c.tween.Value(),
		Blink:     c.blink,
		State:     c.sm.Current(),
		Mode:      c.Mode(),
		Cursor:    c.Cursor(),
		Utterance: c.Utterance(),
		At:        now,
	}
}

func (c *Controller) reject(kind string, err error) error {
	c.metrics.RecordSpeakError(context.Background(), kind)
	c.log.Warn("speak rejected", "err", err)
	return tts.NewTTSError(err, component, "speak")
}

func (c *Controller) onBoundary(u *utterance, now time.Time, offset int) {
	ctx := context.Background()
	if c.sm.Current() != tts.StateSpeaking || u.mode == ModeSimulated {
		c.metrics.RecordBoundary(ctx, observe.BoundaryIgnored)
		return
	}
	if !u.limiter.AllowN(now, 1) {
		c.metrics.RecordBoundary(ctx, observe.BoundaryCoalesced)
		return
	}
	c.metrics.RecordBoundary(ctx, observe.BoundaryAccepted)

	u.boundarySeen = true
	u.mode = ModeBoundary

	if offset >= u.text.Len() {
		offset = u.text.Len() - 1
	}
	if offset > u.cursor {
		c.moveCursor(u, offset)
	}
	c.animate(u, now, u.text.Classify(u.cursor, u.req.Rate))
}

func (c *Controller) onGrace(u *utterance, at time.Time) {
	u.grace = 0
	if u.boundarySeen {
		return
	}

	u.mode = ModeSimulated
	u.next = u.cursor
	c.metrics.RecordFallback(context.Background(), c.engine.Name())
	c.log.Debug("no boundary events, simulating", "utterance", u.req.ID)

	if c.sm.Current() == tts.StateSpeaking {
		u.step = c.sched.After(at, 0, func(at time.Time) { c.onStep(u, at) })
	}
}

func (c *Controller) onStep(u *utterance, at time.Time) {
	u.step = 0
	if u.next >= u.text.Len() {
		return
	}

	i := u.next
	shape := u.text.Classify(i, u.req.Rate)
	c.moveCursor(u, i)
	c.animate(u, at, shape)
	u.next = i + 1

	if u.next >= u.text.Len() {
		c.log.Debug("simulated walk reached end of text", "utterance", u.req.ID)
		return
	}
	u.step = c.sched.After(at, shape.Hold()+c.cfg.SimulatedSlack, func(at time.Time) { c.onStep(u, at) })
}

// animate tweens toward shape, blended with the current value, and queues
// a partial close partway through the hold.
func (c *Controller) animate(u *utterance, at time.Time, shape viseme.Shape) {
	blend := c.cfg.BlendCurrent
	target := c.tween.Sample(at)*blend + shape.Open*c.cfg.BoundaryBoost*(1-blend)

	d := min(shape.Duration, c.cfg.MaxBoundaryTween)
	c.tween.Tween(at, target, d)

	c.cancel(&u.close)
	if c.tween.Target() <= c.mouth.Neutral {
		return
	}
	hold := max(shape.Duration, c.mouth.MinDuration)
	closeAfter := time.Duration(float64(hold) * c.cfg.CloseAt)
	u.close = c.sched.After(at, closeAfter, func(at time.Time) {
		u.close = 0
		c.tween.Tween(at, c.mouth.Neutral, hold-closeAfter)
	})
}

func (c *Controller) moveCursor(u *utterance, i int) {
	if n := c.cfg.BlinkEvery; n > 0 && i/n != u.cursor/n {
		c.blink = !c.blink
	}
	u.cursor = i
}

func (c *Controller) ceiling(u *utterance) time.Duration {
	d := time.Duration(float64(u.timeline.Duration()) * c.cfg.CeilingFactor)
	return d + c.cfg.CeilingMargin
}

func (c *Controller) armCeiling(u *utterance, now time.Time, d time.Duration) {
	u.ceilingAt = now.Add(d)
	u.ceiling = c.sched.After(now, d, func(at time.Time) {
		u.ceiling = 0
		c.log.Warn("engine never reported end, closing utterance", "utterance", u.req.ID)
		c.cancelEngine()
		c.finish(at, reasonCeiling)
	})
}

// finish ends the current utterance and returns to idle.
func (c *Controller) finish(now time.Time, reason string) {
	if c.utt == nil {
		return
	}
	c.teardown(now, reason)
	c.sm.Transition(tts.StateEnded)
	c.tween.Tween(now, c.mouth.Rest, c.cfg.RestTween)
	c.sm.Transition(tts.StateIdle)
	c.ensureFrames(now)
	c.publish(now)
}

// teardown cancels every timer and the render loop and forgets the
// utterance. State is left to the caller.
func (c *Controller) teardown(now time.Time, reason string) {
	c.sched.CancelAll()
	c.frame = 0

	u := c.utt
	if u == nil {
		return
	}
	c.utt = nil
	c.metrics.RecordUtteranceEnd(context.Background(), reason, now.Sub(u.started))
	c.log.Debug("utterance finished", "utterance", u.req.ID, "reason", reason, "mode", u.mode)
}

func (c *Controller) cancelEngine() {
	if err := c.engine.Cancel(); err != nil {
		c.log.Warn("engine cancel failed", "err", err)
	}
}

func (c *Controller) cancel(h *sched.Handle) bool {
	if *h == 0 {
		return false
	}
	ok := c.sched.Cancel(*h)
	*h = 0
	return ok
}

// ensureFrames starts the render loop if it is parked.
func (c *Controller) ensureFrames(now time.Time) {
	if c.frame != 0 {
		return
	}
	c.frame = c.sched.After(now, c.cfg.FrameInterval, c.onFrameTick)
}

func (c *Controller) onFrameTick(at time.Time) {
	c.frame = 0
	c.tween.Sample(at)
	c.publish(at)

	if c.sm.Current().IsActive() || c.tween.Active() {
		c.frame = c.sched.After(at, c.cfg.FrameInterval, c.onFrameTick)
	}
}

func (c *Controller) publish(at time.Time) {
	if c.onFrame != nil {
		c.onFrame(c.Frame(at))
	}
}
