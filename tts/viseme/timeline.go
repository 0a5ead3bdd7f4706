package viseme

import (
	"time"
	"unicode"
)

// RestOpen is the openness of the closing keyframe.
const RestOpen = 0.35

// restDelay separates the last character from the closing keyframe.
const restDelay = 160 * time.Millisecond

// Keyframe is one precomputed mouth target.
type Keyframe struct {
	At    time.Duration `json:"at"`    // Offset from utterance start
	Open  float64       `json:"open"`  // Relative openness
	Index int           `json:"index"` // Normalized rune index, -1 for the closing frame
}

// Timeline is an ordered list of keyframes for one utterance.
type Timeline []Keyframe

// BuildTimeline precomputes keyframes for t at the given rate. Whitespace
// only advances time. A closing keyframe at RestOpen follows the last
// character.
func BuildTimeline(t Text, rate float64) Timeline {
	tl := make(Timeline, 0, t.Len()+1)

	var at time.Duration
	for i := 0; i < t.Len(); i++ {
		shape := t.Classify(i, rate)
		if !unicode.IsSpace(t.Runes[i]) {
			tl = append(tl, Keyframe{At: at, Open: shape.Open, Index: i})
		}
		at += shape.Hold()
	}

	return append(tl, Keyframe{At: at + restDelay, Open: RestOpen, Index: -1})
}

// Duration returns the offset of the last keyframe.
func (tl Timeline) Duration() time.Duration {
	if len(tl) == 0 {
		return 0
	}
	return tl[len(tl)-1].At
}

// Cursor walks a timeline forward by elapsed time. It never moves back.
type Cursor struct {
	tl   Timeline
	next int
}

// NewCursor returns a cursor at the start of tl.
func NewCursor(tl Timeline) *Cursor {
	return &Cursor{tl: tl}
}

// Advance consumes every keyframe due at elapsed and returns the latest
// one. It reports false when nothing new became due, including when
// elapsed is earlier than a previous call.
func (c *Cursor) Advance(elapsed time.Duration) (Keyframe, bool) {
	var (
		kf Keyframe
		ok bool
	)
	for c.next < len(c.tl) && c.tl[c.next].At <= elapsed {
		kf, ok = c.tl[c.next], true
		c.next++
	}
	return kf, ok
}

// Done reports whether every keyframe has been consumed.
func (c *Cursor) Done() bool {
	return c.next >= len(c.tl)
}

// Position returns the number of consumed keyframes.
func (c *Cursor) Position() int {
	return c.next
}
