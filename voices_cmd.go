package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/engines"
	"github.com/dgnsrekt/mouthpiece/tts/voice"
	"github.com/spf13/cobra"
)

var (
	voicesGender   string
	voicesLanguage string
	voicesJSON     bool
	voicesWait     time.Duration

	voicesCmd = &cobra.Command{
		Use:     "voices",
		Short:   "List the voices of the speech engine",
		Long:    paragraph(fmt.Sprintf("\nList the voices of the configured engine and %s the one the persona would speak with.", keyword("mark"))),
		Example: paragraph("mouthpiece voices\nmouthpiece voices --persona rishi\nmouthpiece voices --gender female --language hi --json"),
		Args:    cobra.NoArgs,
		RunE:    executeVoices,
	}
)

func init() {
	voicesCmd.Flags().StringVar(&voicesGender, "gender", "", "override the persona gender (female or male)")
	voicesCmd.Flags().StringVar(&voicesLanguage, "language", "", "override the persona language")
	voicesCmd.Flags().BoolVar(&voicesJSON, "json", false, "print JSON")
	voicesCmd.Flags().DurationVar(&voicesWait, "wait", 2*time.Second, "how long to wait for the voice list to load")
}

func executeVoices(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a := &app{}
	if err := a.loadPersonas(cfg.Persona); err != nil {
		return err
	}
	p, err := a.persona(cfg.Persona.Default, "")
	if err != nil {
		return err
	}
	hint := p.Hint()
	if voicesGender != "" {
		hint.Gender = tts.ParseGender(voicesGender)
	}
	if voicesLanguage != "" {
		hint.Language = voicesLanguage
	}

	engine, err := engines.Open(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	voices := waitForVoices(ctx, engine, voicesWait)
	chosen, ok := voice.Pick(voices, hint, voice.MarkersFromConfig(cfg.Voice))

	if voicesJSON {
		out := struct {
			Engine   string        `json:"engine"`
			Persona  string        `json:"persona"`
			Hint     tts.VoiceHint `json:"hint"`
			Voices   []tts.Voice   `json:"voices"`
			Selected *tts.Voice    `json:"selected,omitempty"`
		}{
			Engine:  engine.Name(),
			Persona: p.Code,
			Hint:    hint,
			Voices:  voices,
		}
		if out.Voices == nil {
			out.Voices = []tts.Voice{}
		}
		if ok {
			out.Selected = &chosen
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out) //nolint:wrapcheck
	}

	w := cmd.OutOrStdout()
	if len(voices) == 0 {
		fmt.Fprintln(w, paragraph(fmt.Sprintf("\n%s reported no voices.\n", engine.Name())))
		return nil
	}
	fmt.Fprintln(w, voicesTable(voices, chosen, ok))
	if ok {
		fmt.Fprintln(w, paragraph(fmt.Sprintf("%s speaks with %s", p.DisplayName(), keyword(chosen.Name))))
	} else {
		fmt.Fprintln(w, paragraph(subtle("No voice matches "+p.DisplayName())))
	}
	return nil
}

// waitForVoices returns the engine catalog, waiting up to d for an engine
// that loads its voices in the background.
func waitForVoices(ctx context.Context, engine tts.Engine, d time.Duration) []tts.Voice {
	if v := engine.Voices(); len(v) > 0 {
		return v
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return engine.Voices()
		case <-timer.C:
			return engine.Voices()
		case ev, ok := <-engine.Events():
			if !ok {
				return engine.Voices()
			}
			if ev.Kind == tts.EventVoicesChanged {
				if v := engine.Voices(); len(v) > 0 {
					return v
				}
			}
		}
	}
}

func voicesTable(voices []tts.Voice, chosen tts.Voice, ok bool) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	picked := cell.Foreground(lipgloss.Color("#04B575"))

	rows := make([][]string, 0, len(voices))
	for _, v := range voices {
		mark := ""
		if ok && v == chosen {
			mark = "●"
		}
		if v.Default {
			mark = strings.TrimSpace(mark + " default")
		}
		rows = append(rows, []string{v.Name, v.Language, v.Gender.String(), v.ID, mark})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DDDADA", Dark: "#3C3C3C"})).
		Headers("NAME", "LANGUAGE", "GENDER", "ID", "").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case ok && row >= 0 && row < len(voices) && voices[row] == chosen:
				return picked
			default:
				return cell
			}
		}).
		String()
}
