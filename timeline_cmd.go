package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dgnsrekt/mouthpiece/internal/server"
	"github.com/dgnsrekt/mouthpiece/internal/textprep"
	"github.com/dgnsrekt/mouthpiece/tts/viseme"
	"github.com/spf13/cobra"
)

// Bar geometry for --play. The widest shape opens to 1.35.
const (
	barWidth = 24
	barScale = 1.4
)

var play bool

var timelineCmd = &cobra.Command{
	Use:     "timeline TEXT",
	Short:   "Print the mouth keyframes for some text",
	Long:    paragraph(fmt.Sprintf("\nPrint the %s keyframes the face would follow without speaking, as JSON. With --play the keyframes are drawn in real time instead.", keyword("precomputed"))),
	Example: paragraph("mouthpiece timeline \"नमस्ते दुनिया!\"\nmouthpiece timeline --rate 1.4 --play \"Kaise ho?\""),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if !raw {
			text = textprep.Speakable(text)
		}

		if play {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			norm := viseme.Normalize(text, cfg.Voice.PauseRune())
			return playTimeline(ctx, cmd.OutOrStdout(), norm, viseme.BuildTimeline(norm, cfg.Speech.Rate), cfg.Sync.FrameInterval)
		}

		tl := server.BuildTimeline(text, cfg.Speech.Rate, cfg.Voice.PauseRune())
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tl) //nolint:wrapcheck
	},
}

func init() {
	timelineCmd.Flags().BoolVar(&raw, "raw", false, "use the text as is, without markdown processing")
	timelineCmd.Flags().BoolVar(&play, "play", false, "draw the keyframes in real time")
}

// playTimeline walks tl against the wall clock and writes one line per
// keyframe that comes due. Keyframes that fall between two frames collapse
// into the latest one, the same way the face would show them.
func playTimeline(ctx context.Context, w io.Writer, text viseme.Text, tl viseme.Timeline, frame time.Duration) error {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	cur := viseme.NewCursor(tl)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	start := time.Now()
	for !cur.Done() {
		if kf, ok := cur.Advance(time.Since(start)); ok {
			fmt.Fprintln(w, keyframeLine(text, kf, cur.Position(), len(tl)))
		}
		if cur.Done() {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func keyframeLine(text viseme.Text, kf viseme.Keyframe, pos, total int) string {
	n := min(barWidth, max(0, int(kf.Open/barScale*barWidth+0.5)))
	bar := keyword(strings.Repeat("█", n)) + subtle(strings.Repeat("░", barWidth-n))

	char := "·"
	if kf.Index >= 0 {
		cur, _, orig := text.At(kf.Index)
		if orig == 0 {
			orig = cur
		}
		char = string(orig)
	}
	return fmt.Sprintf("%6.2fs %s %-2s %s", kf.At.Seconds(), bar, char, subtle(fmt.Sprintf("%d/%d", pos, total)))
}
