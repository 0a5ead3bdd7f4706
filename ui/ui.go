// Package ui provides the talking face for the speak command.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/sync"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "rate 1.2x"
	commandTimeout       = 2 * time.Second
	ellipsis             = "…"
	rateStep             = 0.1

	// Rows above and below the reply viewport: face, persona, spacing
	// and the status bar.
	reservedRows = 15
)

// Speaker is the controller surface the face drives. *sync.Runner
// implements it.
type Speaker interface {
	Speak(ctx context.Context, text string, p tts.Prosody, hint tts.VoiceHint) (uint64, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Request(ctx context.Context) (tts.SpeechRequest, bool, error)
	Subscribe() (<-chan sync.Frame, func())
}

// Session is what the face says and how.
type Session struct {
	Speaker Speaker

	// Reply is the text as received, possibly markdown. Speakable is what
	// is handed to the controller.
	Reply     string
	Speakable string

	Persona string
	Hint    tts.VoiceHint
	Prosody tts.Prosody
	Mouth   tts.MouthConfig
}

type (
	frameMsg         sync.Frame
	framesClosedMsg  struct{}
	replyRenderedMsg string
	statusTimeoutMsg struct{}

	spokeMsg struct {
		id  uint64
		err error
	}
	requestMsg struct {
		id   uint64
		text string
	}
	controlMsg struct {
		action string
		err    error
	}
)

type model struct {
	cfg     Config
	speaker Speaker
	frames  <-chan sync.Frame
	unsub   func()

	reply     string
	speakable string
	rendered  string
	persona   string
	hint      tts.VoiceHint
	prosody   tts.Prosody
	mouth     tts.MouthConfig

	viewport viewport.Model

	frame    sync.Frame
	spoken   string // Normalized text of the utterance on screen
	spokenID uint64
	total    int

	width         int
	height        int
	showHelp      bool
	showReply     bool
	statusMessage string
	statusTimer   *time.Timer
	err           error
}

// NewProgram returns a new Tea program that speaks the session on start.
func NewProgram(cfg Config, s Session) *tea.Program {
	log.Debug(
		"Starting face",
		"persona", s.Persona,
		"glamour", cfg.GlamourEnabled,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, s), opts...)
}

func newModel(cfg Config, s Session) model {
	if cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}
	if s.Speakable == "" {
		s.Speakable = s.Reply
	}
	if s.Prosody == (tts.Prosody{}) {
		s.Prosody = tts.DefaultProsody()
	}
	if s.Mouth == (tts.MouthConfig{}) {
		s.Mouth = tts.DefaultMouthConfig()
	}

	frames, unsub := s.Speaker.Subscribe()
	return model{
		cfg:       cfg,
		speaker:   s.Speaker,
		frames:    frames,
		unsub:     unsub,
		reply:     s.Reply,
		speakable: s.Speakable,
		persona:   s.Persona,
		hint:      s.Hint,
		prosody:   s.Prosody,
		mouth:     s.Mouth,
		showReply: cfg.ShowReply,
		viewport:  viewport.New(0, 0),
		frame:     sync.Frame{Mouth: s.Mouth.Rest, Cursor: -1},
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForFrame(m.frames),
		speakCmd(m.speaker, m.speakable, m.prosody, m.hint),
	}
	if m.cfg.GlamourEnabled && m.reply != "" {
		cmds = append(cmds, renderReply(m.cfg, m.reply, 0))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.showReply {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(m.width-4, 0)
		m.viewport.Height = max(m.height-reservedRows, 1)
		if m.cfg.GlamourEnabled && m.reply != "" {
			return m, renderReply(m.cfg, m.reply, m.width)
		}

	case frameMsg:
		m.frame = sync.Frame(msg)
		cmds := []tea.Cmd{waitForFrame(m.frames)}
		if m.frame.Utterance != 0 && m.frame.Utterance != m.spokenID {
			m.spokenID = m.frame.Utterance
			cmds = append(cmds, requestCmd(m.speaker))
		}
		return m, tea.Batch(cmds...)

	case framesClosedMsg:
		log.Debug("Frame stream closed")
		return m, tea.Quit

	case spokeMsg:
		if msg.err != nil {
			log.Error("Speak failed", "error", msg.err)
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		log.Debug("Speaking", "utterance", msg.id)

	case requestMsg:
		if msg.id == m.spokenID {
			m.spoken = msg.text
			m.total = len([]rune(msg.text))
		}

	case controlMsg:
		if msg.err != nil && !errors.Is(msg.err, tts.ErrInvalidState) {
			log.Warn("Control failed", "action", msg.action, "error", msg.err)
			return m, m.showStatusMessage(msg.action + " failed: " + msg.err.Error())
		}

	case replyRenderedMsg:
		m.rendered = string(msg)
		m.viewport.SetContent(m.rendered)

	case statusTimeoutMsg:
		m.statusMessage = ""
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.unsub()
		return m, tea.Sequence(controlCmd(m.speaker, "stop", m.speaker.Stop), tea.Quit)
	}

	// Any other key dismisses an error.
	if m.err != nil {
		m.err = nil
		return m, nil
	}

	switch msg.String() {

	case "?":
		m.showHelp = !m.showHelp

	case "m":
		m.showReply = !m.showReply
		m.viewport.GotoTop()

	case " ":
		switch m.frame.State {
		case tts.StateSpeaking:
			return m, controlCmd(m.speaker, "pause", m.speaker.Pause)
		case tts.StatePaused:
			return m, controlCmd(m.speaker, "resume", m.speaker.Resume)
		default:
			return m, speakCmd(m.speaker, m.speakable, m.prosody, m.hint)
		}

	case "s":
		return m, controlCmd(m.speaker, "stop", m.speaker.Stop)

	case "r":
		return m, speakCmd(m.speaker, m.speakable, m.prosody, m.hint)

	case "+", "=":
		return m, m.changeRate(rateStep)

	case "-", "_":
		return m, m.changeRate(-rateStep)

	case "ctrl+z":
		return m, tea.Suspend

	default:
		if m.showReply {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// changeRate adjusts the rate for the next utterance.
func (m *model) changeRate(delta float64) tea.Cmd {
	rate := m.prosody.Rate + delta
	rate = float64(int(rate*10+0.5)) / 10
	rate = max(0.5, min(rate, 3.0))
	m.prosody.Rate = rate
	return m.showStatusMessage(fmt.Sprintf("Rate %.1fx (next utterance)", rate))
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusMessage = s
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusTimer)
}

func (m model) View() string {
	var b strings.Builder

	face := lipgloss.JoinVertical(lipgloss.Center,
		faceView(m.frame.Mouth, m.frame.Blink, m.frame.State, m.mouth),
		personaStyle.Render(m.persona),
	)

	var body string
	width := min(max(m.width-4, 0), 100)
	switch {
	case m.err != nil:
		body = errorView(m.err)
	case m.showReply && m.rendered != "":
		body = m.viewport.View()
	default:
		text := m.spoken
		if text == "" {
			text = m.speakable
		}
		body = textView(text, m.frame.Cursor, width)
	}

	content := lipgloss.JoinVertical(lipgloss.Center, face, "", body)
	if m.width > 0 {
		content = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, content)
	}
	fmt.Fprint(&b, "\n"+content+"\n")

	// Footer
	if m.height > 0 {
		used := strings.Count(b.String(), "\n") + 1
		if m.showHelp {
			used += 4
		}
		if gap := m.height - used; gap > 0 {
			b.WriteString(strings.Repeat("\n", gap))
		}
	}
	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}

	return b.String()
}

// COMMANDS

func waitForFrame(ch <-chan sync.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return framesClosedMsg{}
		}
		return frameMsg(f)
	}
}

func speakCmd(s Speaker, text string, p tts.Prosody, hint tts.VoiceHint) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		id, err := s.Speak(ctx, text, p, hint)
		return spokeMsg{id: id, err: err}
	}
}

func requestCmd(s Speaker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		req, ok, err := s.Request(ctx)
		if err != nil || !ok {
			return nil
		}
		return requestMsg{id: req.ID, text: req.NormalizedText}
	}
}

func controlCmd(s Speaker, action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return controlMsg{action: action, err: fn(ctx)}
	}
}

func renderReply(cfg Config, markdown string, width int) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(cfg, markdown, width)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return replyRenderedMsg(markdown)
		}
		return replyRenderedMsg(s)
	}
}

func glamourRender(cfg Config, markdown string, width int) (string, error) {
	width = max(0, min(int(cfg.GlamourMaxWidth), width)) //nolint:gosec
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(cfg.GlamourStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusTimeoutMsg{}
	}
}

// ETC

func errorView(err error) string {
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render("press any key to return"),
	)
	return "\n" + indent(s, 3)
}

func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
