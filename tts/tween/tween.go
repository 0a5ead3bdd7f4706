// Package tween animates the mouth-openness value.
package tween

import (
	"math"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
	"go.uber.org/atomic"
)

// Engine owns the mouth value. Tween and Sample must be called from one
// goroutine; Value may be read from any goroutine.
type Engine struct {
	min, max    float64
	minDuration time.Duration

	value  *atomic.Float64
	active bool
	from   float64
	to     float64
	start  time.Time
	dur    time.Duration
}

// New creates an engine resting at cfg.Rest.
func New(cfg tts.MouthConfig) *Engine {
	e := &Engine{
		min:         cfg.Min,
		max:         cfg.Max,
		minDuration: cfg.MinDuration,
	}
	e.value = atomic.NewFloat64(e.clamp(cfg.Rest))
	return e
}

// Tween starts a transition from the current value to target. Any tween in
// flight is replaced; the new one starts from wherever the old one had got
// to at now. Durations below the configured minimum are raised to it.
func (e *Engine) Tween(now time.Time, target float64, d time.Duration) {
	if d < e.minDuration {
		d = e.minDuration
	}
	e.from = e.Sample(now)
	e.to = e.clamp(target)
	e.start = now
	e.dur = d
	e.active = true
}

// Sample advances the tween to now and returns the new value. It is a
// no-op once the tween has finished.
func (e *Engine) Sample(now time.Time) float64 {
	if !e.active {
		return e.value.Load()
	}

	p := float64(now.Sub(e.start)) / float64(e.dur)
	if p >= 1 {
		p = 1
		e.active = false
	}
	if p < 0 {
		p = 0
	}

	v := e.clamp(e.from + (e.to-e.from)*EaseInOutCubic(p))
	e.value.Store(v)
	return v
}

// Cancel freezes the value where it is.
func (e *Engine) Cancel() {
	e.active = false
}

// Active reports whether a tween is in flight.
func (e *Engine) Active() bool {
	return e.active
}

// Target returns the value the engine is heading to.
func (e *Engine) Target() float64 {
	if !e.active {
		return e.value.Load()
	}
	return e.to
}

// Value returns the last sampled value. Safe for concurrent use.
func (e *Engine) Value() float64 {
	return e.value.Load()
}

func (e *Engine) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return e.min
	}
	return math.Max(e.min, math.Min(e.max, v))
}

// EaseInOutCubic maps linear progress in [0, 1] onto an ease-in-out curve.
func EaseInOutCubic(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	f := -2*p + 2
	return 1 - f*f*f/2
}
