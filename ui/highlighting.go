package ui

import (
	"strings"
	"unicode"

	"github.com/muesli/reflow/wordwrap"
)

// wordBounds returns the rune range of the word containing cursor. If the
// cursor sits on whitespace the following word is used. ok is false past
// the last word.
func wordBounds(runes []rune, cursor int) (start, end int, ok bool) {
	if cursor < 0 {
		cursor = 0
	}
	for cursor < len(runes) && unicode.IsSpace(runes[cursor]) {
		cursor++
	}
	if cursor >= len(runes) {
		return 0, 0, false
	}

	start = cursor
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	end = cursor
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}
	return start, end, true
}

// HighlightWord renders text with the already spoken part dimmed and the
// word under the cursor highlighted. A negative cursor leaves text as is.
func HighlightWord(text string, cursor int, spoken, current func(...string) string) string {
	if cursor < 0 || text == "" {
		return text
	}
	runes := []rune(text)
	start, end, ok := wordBounds(runes, cursor)
	if !ok {
		return spoken(text)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(spoken(string(runes[:start])))
	}
	b.WriteString(current(string(runes[start:end])))
	b.WriteString(string(runes[end:]))
	return b.String()
}

func textView(text string, cursor, width int) string {
	s := HighlightWord(text, cursor, spokenStyle.Render, currentWordStyle.Render)
	if width > 0 {
		s = wordwrap.String(s, width)
	}
	return s
}
