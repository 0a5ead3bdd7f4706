package server

import (
	"github.com/dgnsrekt/mouthpiece/tts/viseme"
)

// TimelineFrame is a keyframe with its offset in milliseconds.
type TimelineFrame struct {
	AtMS  int64   `json:"at_ms"`
	Open  float64 `json:"open"`
	Index int     `json:"index"`
	Char  string  `json:"char,omitempty"`
}

// Timeline is the precomputed mouth track for a piece of text.
type Timeline struct {
	Text       string          `json:"text"`
	Rate       float64         `json:"rate"`
	DurationMS int64           `json:"duration_ms"`
	Frames     []TimelineFrame `json:"frames"`
}

// BuildTimeline normalizes text and computes its keyframes at rate.
func BuildTimeline(text string, rate float64, marker rune) Timeline {
	t := viseme.Normalize(text, marker)
	tl := viseme.BuildTimeline(t, rate)

	out := Timeline{
		Text:       t.String(),
		Rate:       rate,
		DurationMS: tl.Duration().Milliseconds(),
		Frames:     make([]TimelineFrame, 0, len(tl)),
	}
	for _, kf := range tl {
		f := TimelineFrame{AtMS: kf.At.Milliseconds(), Open: kf.Open, Index: kf.Index}
		if kf.Index >= 0 && kf.Index < len(t.Runes) {
			f.Char = string(t.Runes[kf.Index])
		}
		out.Frames = append(out.Frames, f)
	}
	return out
}
