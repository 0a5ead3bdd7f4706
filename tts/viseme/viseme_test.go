package viseme_test

import (
	"math"
	"testing"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts/viseme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"exclamation", "Hello!", "Hello।"},
		{"question", "Kaise ho? Theek", "Kaise ho। Theek"},
		{"full stop before space", "Namaste.   Aap", "Namaste। Aap"},
		{"full stop at end", "Done.", "Done।"},
		{"ellipsis", "Well... maybe", "Well… maybe"},
		{"two dots", "Hmm..", "Hmm…"},
		{"decimal point", "3.14 ok", "3.14 ok"},
		{"devanagari untouched", "नमस्ते।", "नमस्ते।"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viseme.Normalize(tt.in, 0)
			assert.Equal(t, tt.want, got.String())
			assert.Len(t, got.Origin, got.Len())
		})
	}
}

func TestNormalizeCustomMarker(t *testing.T) {
	got := viseme.Normalize("Hi! Bye?", '|')
	assert.Equal(t, "Hi| Bye|", got.String())
}

func TestNormalizeOrigin(t *testing.T) {
	text := viseme.Normalize("Hello!", 0)
	require.Equal(t, 6, text.Len())

	cur, next, orig := text.At(5)
	assert.Equal(t, '।', cur)
	assert.Equal(t, rune(0), next)
	assert.Equal(t, '!', orig, "raw rune survives normalization")

	// Collapsed whitespace still points at the raw text.
	text = viseme.Normalize("A.   B", 0)
	require.Equal(t, "A। B", text.String())
	_, _, orig = text.At(3)
	assert.Equal(t, 'B', orig)
	assert.Equal(t, 5, text.Origin[3])

	cur, next, orig = text.At(99)
	assert.Zero(t, cur)
	assert.Zero(t, next)
	assert.Zero(t, orig)
}

func TestClassifyOrder(t *testing.T) {
	tests := []struct {
		name            string
		cur, next, orig rune
		wantOpen        float64
		wantPause       bool
	}{
		{"emphatic from raw", '।', 0, '!', 1.35, true},
		{"question from raw", '।', 0, '?', 0.85, true},
		{"ellipsis rune", '…', 0, '.', 0.18, true},
		{"dot pair", '.', '.', '.', 0.18, true},
		{"danda", '।', ' ', '।', 0.18, true},
		{"comma", ',', ' ', ',', 0.34, true},
		{"dash", '—', ' ', '—', 0.32, true},
		{"quote", '"', 'a', '"', 0.36, true},
		{"bracket", '(', 'a', '(', 0.36, true},
		{"space", ' ', 'a', ' ', 0.30, true},
		{"latin vowel", 'A', 'b', 'A', 1.0, false},
		{"devanagari vowel", 'आ', 'प', 'आ', 1.0, false},
		{"devanagari matra", 'ा', ' ', 'ा', 1.0, false},
		{"latin soft", 's', 'a', 's', 0.68, false},
		{"devanagari soft", 'स', 'ा', 'स', 0.68, false},
		{"digit", '7', ' ', '7', 0.55, false},
		{"devanagari digit", '७', ' ', '७', 0.55, false},
		{"consonant", 'k', 'a', 'k', 0.42, false},
		{"devanagari consonant", 'क', 'ा', 'क', 0.42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viseme.Classify(tt.cur, tt.next, tt.orig, 1.0)
			assert.InDelta(t, tt.wantOpen, got.Open, 1e-9)
			assert.Equal(t, tt.wantPause, got.Pause > 0, "pause = %v", got.Pause)
			assert.Greater(t, got.Duration, time.Duration(0))
		})
	}
}

func TestClassifyTotal(t *testing.T) {
	texts := []string{
		"Hello! How are you? I'm fine... thanks.",
		"नमस्ते! आप कैसे हैं? मैं ठीक हूँ।",
		"(1, 2; 3: 4) — “quoted” 'single' [x] {y} <z>",
		"\t\n\x00�😀",
	}
	rates := []float64{0, 0.1, 0.6, 1, 1.5, 4, -3, math.NaN(), math.Inf(1)}

	for _, text := range texts {
		n := viseme.Normalize(text, 0)
		for _, rate := range rates {
			for i := 0; i < n.Len(); i++ {
				a := n.Classify(i, rate)
				b := n.Classify(i, rate)
				require.Equal(t, a, b, "classify must be pure")
				require.GreaterOrEqual(t, a.Duration, time.Duration(0))
				require.GreaterOrEqual(t, a.Pause, time.Duration(0))
				require.False(t, math.IsNaN(a.Open))
			}
		}
	}
}

func TestDurationScale(t *testing.T) {
	assert.InDelta(t, 1.25, viseme.DurationScale(1.0), 1e-9)
	assert.InDelta(t, 0.25+1/0.6, viseme.DurationScale(0.2), 1e-9, "clamped low")
	assert.InDelta(t, 0.25+1/1.5, viseme.DurationScale(3), 1e-9, "clamped high")
	assert.InDelta(t, 1.25, viseme.DurationScale(math.NaN()), 1e-9)

	slow := viseme.Classify('a', 0, 'a', 0.6)
	fast := viseme.Classify('a', 0, 'a', 1.5)
	assert.Greater(t, slow.Duration, fast.Duration, "faster speech holds shorter")
}

func TestHelloExample(t *testing.T) {
	text := viseme.Normalize("Hello!", 0)
	assert.NotEqual(t, '!', text.Runes[text.Len()-1], "normalized text ends in a pause marker")

	last := text.Classify(text.Len()-1, 1.0)
	vowel := text.Classify(1, 1.0)
	assert.Greater(t, last.Open, vowel.Open, "emphatic open is wider than a vowel")
}

func TestBuildTimeline(t *testing.T) {
	text := viseme.Normalize("Hi there!", 0)
	tl := viseme.BuildTimeline(text, 1.0)

	// Eight visible runes plus the closing keyframe.
	require.Len(t, tl, 9)
	assert.Equal(t, time.Duration(0), tl[0].At)
	assert.Equal(t, 0, tl[0].Index)

	for i := 1; i < len(tl); i++ {
		assert.Greater(t, tl[i].At, tl[i-1].At, "keyframes are strictly ordered")
	}

	last := tl[len(tl)-1]
	assert.Equal(t, -1, last.Index)
	assert.Equal(t, viseme.RestOpen, last.Open)
	assert.Equal(t, last.At, tl.Duration())
	assert.Equal(t, tl[len(tl)-2].At+text.Classify(text.Len()-1, 1.0).Hold()+160*time.Millisecond, last.At)

	assert.Equal(t, 3, tl[2].Index, "the space has no keyframe")

	assert.Equal(t, time.Duration(0), viseme.Timeline(nil).Duration())
}

func TestBuildTimelineRate(t *testing.T) {
	text := viseme.Normalize("Namaste, dost.", 0)
	slow := viseme.BuildTimeline(text, 0.6)
	fast := viseme.BuildTimeline(text, 1.5)
	assert.Greater(t, slow.Duration(), fast.Duration())
}

func TestCursor(t *testing.T) {
	tl := viseme.Timeline{
		{At: 0, Open: 0.4, Index: 0},
		{At: 100 * time.Millisecond, Open: 1.0, Index: 1},
		{At: 200 * time.Millisecond, Open: 0.5, Index: 2},
		{At: 360 * time.Millisecond, Open: viseme.RestOpen, Index: -1},
	}
	c := viseme.NewCursor(tl)

	kf, ok := c.Advance(0)
	require.True(t, ok)
	assert.Equal(t, 0, kf.Index)

	_, ok = c.Advance(50 * time.Millisecond)
	assert.False(t, ok, "nothing new due")

	kf, ok = c.Advance(250 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 2, kf.Index, "skips to the latest due keyframe")
	assert.Equal(t, 3, c.Position())

	_, ok = c.Advance(10 * time.Millisecond)
	assert.False(t, ok, "never moves backward")
	assert.Equal(t, 3, c.Position())

	kf, ok = c.Advance(time.Second)
	require.True(t, ok)
	assert.Equal(t, -1, kf.Index)
	assert.True(t, c.Done())
}
