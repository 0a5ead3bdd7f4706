package google

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const markPrefix = "o"

// Mark is an SSML mark resolved to a playback time.
type Mark struct {
	Offset int           // Rune offset of the word the mark precedes
	At     time.Duration // Time into the clip
}

// BuildSSML wraps text in <speak> and puts a mark before every word, named
// after the word's rune offset.
func BuildSSML(text string) string {
	var b strings.Builder
	b.WriteString("<speak>")

	inWord := false
	for i, r := range []rune(text) {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			fmt.Fprintf(&b, `<mark name="%s%d"/>`, markPrefix, i)
		}
		inWord = !space
		xml.EscapeText(&b, []byte(string(r)))
	}

	b.WriteString("</speak>")
	return b.String()
}

// parseMark recovers the rune offset from a mark name.
func parseMark(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, markPrefix)
	if !ok {
		return 0, false
	}
	offset, err := strconv.Atoi(rest)
	if err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}

// sortMarks orders marks by time, then offset.
func sortMarks(marks []Mark) {
	sort.SliceStable(marks, func(i, j int) bool {
		if marks[i].At != marks[j].At {
			return marks[i].At < marks[j].At
		}
		return marks[i].Offset < marks[j].Offset
	})
}

// tracker replays marks against the playback position.
type tracker struct {
	marks []Mark
	next  int
}

func newTracker(marks []Mark) *tracker {
	sorted := append([]Mark(nil), marks...)
	sortMarks(sorted)
	return &tracker{marks: sorted}
}

// due returns the marks reached by position that have not been reported.
func (t *tracker) due(position time.Duration) []Mark {
	start := t.next
	for t.next < len(t.marks) && t.marks[t.next].At <= position {
		t.next++
	}
	return t.marks[start:t.next]
}

// done reports whether every mark has been reported.
func (t *tracker) done() bool {
	return t.next >= len(t.marks)
}
