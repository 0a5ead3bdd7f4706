package ui

import (
	"math"
	"strings"

	"github.com/dgnsrekt/mouthpiece/tts"
)

// maxMouthRows is how many rows the widest-open mouth spans below its top
// lip.
const maxMouthRows = 4

const (
	faceTop    = "╭───────────────╮"
	faceBottom = "╰───────────────╯"
	faceBlank  = "│               │"
)

// openness maps a mouth value onto [0, 1] within the configured range.
func openness(v float64, cfg tts.MouthConfig) float64 {
	if cfg.Max <= cfg.Min {
		return 0
	}
	p := (v - cfg.Min) / (cfg.Max - cfg.Min)
	return math.Max(0, math.Min(1, p))
}

func mouthRows(p float64) int {
	return int(math.Round(math.Max(0, math.Min(1, p)) * maxMouthRows))
}

// mouthShape returns maxMouthRows+1 lines, each seven cells wide.
func mouthShape(rows int) []string {
	const blank = "       "
	lines := make([]string, maxMouthRows+1)
	for i := range lines {
		lines[i] = blank
	}
	if rows == 0 {
		lines[0] = " ───── "
		return lines
	}
	lines[0] = " ╭───╮ "
	for i := 1; i < rows; i++ {
		lines[i] = " │   │ "
	}
	lines[rows] = " ╰───╯ "
	return lines
}

// faceLines draws the face with the mouth open by p. The height does not
// depend on p so the layout does not jump while talking.
func faceLines(p float64, blink bool) []string {
	eye := "●"
	if blink {
		eye = "─"
	}

	lines := []string{
		faceTop,
		faceBlank,
		"│    " + eye + "     " + eye + "    │",
		faceBlank,
	}
	for _, m := range mouthShape(mouthRows(p)) {
		lines = append(lines, "│    "+m+"    │")
	}
	return append(lines, faceBottom)
}

func faceView(mouth float64, blink bool, state tts.StateType, cfg tts.MouthConfig) string {
	s := strings.Join(faceLines(openness(mouth, cfg), blink), "\n")
	if state == tts.StatePaused {
		return pausedFaceStyle.Render(s)
	}
	return faceStyle.Render(s)
}
