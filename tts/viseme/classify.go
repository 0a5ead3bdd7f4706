package viseme

import (
	"time"
	"unicode"
)

// Rate limits applied before scaling durations.
const (
	MinRate = 0.6
	MaxRate = 1.5
)

// Shape is the mouth target for one character.
type Shape struct {
	Open     float64       // Relative openness, 1.0 is a plain vowel
	Duration time.Duration // How long to hold the shape
	Pause    time.Duration // Silence after the shape
}

// Hold returns the time the character occupies, pause included.
func (s Shape) Hold() time.Duration {
	return s.Duration + s.Pause
}

// class is one row of the classification table, in milliseconds at rate 1.
type class struct {
	open     float64
	duration float64
	pause    float64
}

var (
	emphatic  = class{1.35, 70, 180}
	question  = class{0.85, 90, 240}
	stop      = class{0.18, 80, 260}
	clause    = class{0.34, 60, 90}
	dash      = class{0.32, 60, 70}
	quote     = class{0.36, 45, 40}
	bracket   = class{0.36, 50, 50}
	space     = class{0.30, 40, 20}
	vowel     = class{1.00, 75, 0}
	soft      = class{0.68, 60, 0}
	digit     = class{0.55, 65, 0}
	consonant = class{0.42, 55, 0}
)

// DurationScale stretches holds for slow speech and shrinks them for fast
// speech.
func DurationScale(rate float64) float64 {
	if rate != rate { // NaN
		rate = 1
	}
	if rate < MinRate {
		rate = MinRate
	}
	if rate > MaxRate {
		rate = MaxRate
	}
	return 0.25 + 1/rate
}

// Classify maps a character to a mouth shape. cur is the normalized rune,
// next the rune after it and orig the raw rune behind cur. It is pure and
// defined for every input.
func Classify(cur, next, orig rune, rate float64) Shape {
	c := lookup(cur, next, orig)
	scale := DurationScale(rate)
	return Shape{
		Open:     c.open,
		Duration: ms(c.duration * scale),
		Pause:    ms(c.pause * scale),
	}
}

func lookup(cur, next, orig rune) class {
	switch {
	case orig == '!':
		return emphatic
	case orig == '?':
		return question
	case isEllipsis(cur, next) || isEllipsis(orig, 0) || isStop(cur) || isStop(orig):
		return stop
	case isClause(cur):
		return clause
	case isDash(cur):
		return dash
	case isQuote(cur):
		return quote
	case isBracket(cur):
		return bracket
	case unicode.IsSpace(cur):
		return space
	case IsVowel(cur):
		return vowel
	case isSoft(cur):
		return soft
	case unicode.IsDigit(cur):
		return digit
	default:
		return consonant
	}
}

func ms(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Millisecond))
}

func isEllipsis(cur, next rune) bool {
	return cur == Ellipsis || (cur == '.' && next == '.')
}

func isStop(r rune) bool {
	switch r {
	case '.', '।', '॥', '。':
		return true
	}
	return false
}

func isClause(r rune) bool {
	switch r {
	case ',', ';', ':', '،', '、':
		return true
	}
	return false
}

func isDash(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—', '―':
		return true
	}
	return false
}

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '`', '‘', '’', '“', '”', '«', '»':
		return true
	}
	return false
}

func isBracket(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', '<', '>':
		return true
	}
	return false
}

// IsVowel reports whether r is a Latin vowel or a Devanagari vowel sign.
func IsVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u',
		'á', 'é', 'í', 'ó', 'ú', 'à', 'è', 'ì', 'ò', 'ù',
		'â', 'ê', 'î', 'ô', 'û', 'ä', 'ë', 'ï', 'ö', 'ü':
		return true
	}
	switch {
	case r >= '\u0905' && r <= '\u0914': // independent vowels
		return true
	case r >= '\u093E' && r <= '\u094C': // dependent vowel signs
		return true
	case r >= '\u0901' && r <= '\u0903': // candrabindu, anusvara, visarga
		return true
	}
	return false
}

// isSoft covers fricatives, sibilants, liquids and glides.
func isSoft(r rune) bool {
	switch unicode.ToLower(r) {
	case 'f', 'v', 's', 'z', 'h', 'l', 'r', 'w', 'y', 'ç', 'ß',
		'श', 'ष', 'स', 'ह', 'ल', 'ळ', 'र', 'व', 'य',
		'\u095B', '\u095E': // za, fa with nukta
		return true
	}
	return false
}
