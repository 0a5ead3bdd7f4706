package ui

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/sync"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// stateNote describes a frame for the status bar.
func stateNote(f sync.Frame, total int) string {
	switch f.State {
	case tts.StateSpeaking:
		if total > 0 {
			return fmt.Sprintf("▶ Speaking (%d/%d) · %s", min(f.Cursor, total), total, f.Mode)
		}
		return "▶ Speaking · " + f.Mode.String()
	case tts.StatePaused:
		if total > 0 {
			return fmt.Sprintf("⏸ Paused (%d/%d)", min(f.Cursor, total), total)
		}
		return "⏸ Paused"
	case tts.StateEnded:
		return "■ Finished"
	default:
		return "■ Idle · press space to speak"
	}
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoView()
	mouth := statusBarStateStyle(fmt.Sprintf(" %3.f%% ", openness(m.frame.Mouth, m.mouth)*100))
	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	switch {
	case showStatusMessage:
		note = m.statusMessage
	case m.err != nil:
		note = "Error: " + m.err.Error()
	default:
		note = stateNote(m.frame, m.total)
		if m.persona != "" {
			note = m.persona + " | " + note
		}
	}

	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(mouth)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(mouth)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		mouth,
		helpNote,
	)
}

func (m model) helpView() (s string) {
	s += "\n"
	s += "space    pause/resume, or speak again    +/-   faster/slower\n"
	s += "s        stop                            m     toggle reply view\n"
	s += "r        replay from the start           q     quit\n"

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}

		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}
