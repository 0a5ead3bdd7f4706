package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/textprep"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/sync"
	"github.com/dgnsrekt/mouthpiece/ui"
	"github.com/dgnsrekt/mouthpiece/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	mouse         bool
	headless      bool
	fromClipboard bool
	raw           bool

	speakCmd = &cobra.Command{
		Use:     "speak [TEXT|FILE]",
		Short:   "Speak text with the face",
		Long:    paragraph(fmt.Sprintf("\n%s text, a markdown file, stdin or the clipboard. With no input the persona greets you.", keyword("Speak"))),
		Example: paragraph("mouthpiece speak \"नमस्ते दुनिया\"\nmouthpiece speak reply.md --persona rishi\necho hello | mouthpiece speak --headless"),
		Args:    cobra.ArbitraryArgs,
		RunE:    executeSpeak,
	}
)

func addSpeakFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse support")
	_ = cmd.Flags().MarkHidden("mouse")
	cmd.Flags().BoolVar(&headless, "headless", false, "speak without drawing the face")
	cmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "speak the clipboard contents")
	cmd.Flags().BoolVar(&raw, "raw", false, "speak the input as is, without markdown processing")
}

func init() {
	addSpeakFlags(speakCmd)
}

// input is text to speak and whether it may contain markdown.
type input struct {
	text     string
	markdown bool
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput picks the input source in order: clipboard, stdin, a file
// argument, then the arguments as text.
func readInput(args []string) (input, error) {
	if fromClipboard {
		s, err := clipboard.ReadAll()
		if err != nil {
			return input{}, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return input{text: s, markdown: true}, nil
	}

	if yes, err := stdinIsPipe(); err != nil {
		return input{}, err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return input{}, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return input{text: string(b), markdown: true}, nil
	}

	if len(args) == 1 {
		path := utils.ExpandPath(args[0])
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			b, err := os.ReadFile(path)
			if err != nil {
				return input{}, fmt.Errorf("unable to open file: %w", err)
			}
			return input{text: string(b), markdown: utils.IsMarkdownFile(path)}, nil
		}
	}

	return input{text: strings.Join(args, " "), markdown: true}, nil
}

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func executeSpeak(cmd *cobra.Command, args []string) error {
	in, err := readInput(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	p, err := a.persona(cfg.Persona.Default, "")
	if err != nil {
		return err
	}

	if strings.TrimSpace(in.text) == "" {
		in = input{text: p.Greeting}
	}
	speakable := in.text
	if in.markdown && !raw {
		speakable = textprep.Speakable(in.text)
	}
	if strings.TrimSpace(speakable) == "" {
		return tts.ErrInvalidRequest
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := a.runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Controller stopped", "error", err)
		}
	}()

	if headless || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(ctx, a.runner, speakable, p.Hint(), cmd.OutOrStdout())
	}

	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	if err := validateStyle(uiCfg.GlamourStyle); err != nil {
		log.Warn("Ignoring glamour style", "style", uiCfg.GlamourStyle, "error", err)
		uiCfg.GlamourStyle = styles.AutoStyle
	}
	uiCfg.EnableMouse = mouse

	session := ui.Session{
		Speaker:   a.runner,
		Reply:     in.text,
		Speakable: speakable,
		Persona:   p.DisplayName(),
		Hint:      p.Hint(),
		Prosody:   cfg.Speech,
		Mouth:     cfg.Mouth,
	}
	if _, err := ui.NewProgram(uiCfg, session).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// runHeadless speaks text and reports state changes to w until the
// utterance finishes or ctx is cancelled.
func runHeadless(ctx context.Context, r *sync.Runner, text string, hint tts.VoiceHint, w io.Writer) error {
	frames, unsub := r.Subscribe()
	defer unsub()

	id, err := r.Speak(ctx, text, cfg.Speech, hint)
	if err != nil {
		return err
	}
	if v, ok := r.Selector().Pinned(); ok {
		fmt.Fprintln(w, subtle(fmt.Sprintf("%s (%s)", v.Name, v.Language)))
	}

	started := time.Now()
	last := tts.StateIdle
	active := false
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = r.Stop(stopCtx)
			cancel()
			return nil

		case f, ok := <-frames:
			if !ok {
				return tts.ErrControllerDisposed
			}
			// The closing frames no longer carry the utterance id.
			if f.Utterance != id && !active {
				continue
			}
			if f.State != last {
				log.Debug("State changed", "utterance", id, "from", last, "to", f.State, "mode", f.Mode)
				if f.State == tts.StatePaused {
					fmt.Fprintln(w, subtle("paused"))
				}
				last = f.State
			}
			if f.State.IsActive() {
				active = true
				continue
			}
			if active {
				fmt.Fprintln(w, text)
				fmt.Fprintln(w, subtle(fmt.Sprintf("spoke in %s · %s", time.Since(started).Round(10*time.Millisecond), f.Mode)))
				return nil
			}
		}
	}
}
