// Package viseme turns text into mouth-openness targets.
//
// Nothing here knows about phonemes. Shapes are derived from punctuation
// and coarse character classes, which is enough for a stylized face and
// keeps the package free of any linguistic model.
package viseme

import "unicode"

// DefaultPauseMarker is the danda, which Hindi voices read as a pause.
const DefaultPauseMarker = '।'

// Ellipsis replaces runs of two or more dots.
const Ellipsis = '…'

// Text is normalized text that remembers where each rune came from.
type Text struct {
	Raw    []rune // Text as supplied
	Runes  []rune // Text as sent to the engine
	Origin []int  // Origin[i] indexes the Raw rune behind Runes[i]
}

// Normalize rewrites sentence punctuation into pause markers the voice
// reads as silence instead of as words:
//
//	"!" and "?"        -> marker
//	"..", "..." etc.   -> "…"
//	"." + whitespace   -> marker + single space
//	"." at end of text -> marker
//
// Offsets reported by engines index the normalized runes; Origin recovers
// the raw rune so emphasis survives the rewrite.
func Normalize(raw string, marker rune) Text {
	if marker == 0 {
		marker = DefaultPauseMarker
	}

	src := []rune(raw)
	t := Text{
		Raw:    src,
		Runes:  make([]rune, 0, len(src)),
		Origin: make([]int, 0, len(src)),
	}
	emit := func(r rune, origin int) {
		t.Runes = append(t.Runes, r)
		t.Origin = append(t.Origin, origin)
	}

	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case r == '!' || r == '?':
			emit(marker, i)

		case r == '.':
			j := i
			for j+1 < len(src) && src[j+1] == '.' {
				j++
			}
			switch {
			case j > i:
				emit(Ellipsis, i)
				i = j
			case i+1 == len(src):
				emit(marker, i)
			case unicode.IsSpace(src[i+1]):
				emit(marker, i)
				emit(' ', i+1)
				for i+1 < len(src) && unicode.IsSpace(src[i+1]) {
					i++
				}
			default:
				// Decimal points and abbreviations inside words.
				emit(r, i)
			}

		default:
			emit(r, i)
		}
	}

	return t
}

// String returns the normalized text.
func (t Text) String() string {
	return string(t.Runes)
}

// Len returns the number of normalized runes.
func (t Text) Len() int {
	return len(t.Runes)
}

// At returns the rune at i, the rune after it and the raw rune behind it.
// Out of range indexes yield zero runes.
func (t Text) At(i int) (cur, next, orig rune) {
	if i < 0 || i >= len(t.Runes) {
		return 0, 0, 0
	}
	cur = t.Runes[i]
	if i+1 < len(t.Runes) {
		next = t.Runes[i+1]
	}
	if o := t.Origin[i]; o >= 0 && o < len(t.Raw) {
		orig = t.Raw[o]
	}
	return cur, next, orig
}

// Classify classifies the rune at i.
func (t Text) Classify(i int, rate float64) Shape {
	cur, next, orig := t.At(i)
	return Classify(cur, next, orig, rate)
}
