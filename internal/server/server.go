// Package server exposes a speaking face over HTTP. Frames stream over a
// websocket; everything else is plain JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/cache"
	"github.com/dgnsrekt/mouthpiece/internal/persona"
	"github.com/dgnsrekt/mouthpiece/internal/stream"
	"github.com/dgnsrekt/mouthpiece/internal/textprep"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/sync"
	"github.com/dgnsrekt/mouthpiece/tts/voice"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const requestTimeout = 5 * time.Second

// Controller is the part of sync.Runner the server drives.
type Controller interface {
	Speak(ctx context.Context, text string, p tts.Prosody, hint tts.VoiceHint) (uint64, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Snapshot() sync.Frame
	Selector() *voice.Selector
}

// Options wires a Server.
type Options struct {
	Config   tts.Config
	Runner   Controller
	Engine   tts.Engine
	Personas func() *persona.Catalog
	Hub      *stream.Hub
	Store    *cache.Store // may be nil
	Version  string
}

// Server handles the HTTP API.
type Server struct {
	opts    Options
	prep    *textprep.Processor
	started time.Time
	log     *log.Logger
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Personas == nil {
		builtin := persona.Builtin()
		opts.Personas = func() *persona.Catalog { return builtin }
	}
	return &Server{
		opts:    opts,
		prep:    textprep.New(textprep.Options{}),
		started: time.Now(),
		log:     log.WithPrefix("server"),
	}
}

// Handler returns the routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	if s.opts.Hub != nil {
		r.Handle("/ws", s.opts.Hub).Methods(http.MethodGet)
	}
	r.HandleFunc("/speak", s.handleSpeak).Methods(http.MethodPost)
	r.HandleFunc("/pause", s.control(Controller.Pause)).Methods(http.MethodPost)
	r.HandleFunc("/resume", s.control(Controller.Resume)).Methods(http.MethodPost)
	r.HandleFunc("/stop", s.control(Controller.Stop)).Methods(http.MethodPost)
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/voices", s.handleVoices).Methods(http.MethodGet)
	r.HandleFunc("/personas", s.handlePersonas).Methods(http.MethodGet)
	r.HandleFunc("/timeline", s.handleTimeline).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// SpeakRequest is the body of POST /speak. Unset prosody fields use the
// configured defaults.
type SpeakRequest struct {
	Text     string   `json:"text"`
	Markdown bool     `json:"markdown,omitempty"`
	Persona  string   `json:"persona,omitempty"`
	Rate     *float64 `json:"rate,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
}

// SpeakResponse is returned for an accepted utterance.
type SpeakResponse struct {
	Utterance uint64    `json:"utterance"`
	Persona   string    `json:"persona,omitempty"`
	Voice     tts.Voice `json:"voice"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p := s.opts.Config.Speech
	if req.Rate != nil {
		p.Rate = *req.Rate
	}
	if req.Pitch != nil {
		p.Pitch = *req.Pitch
	}
	if req.Volume != nil {
		p.Volume = *req.Volume
	}

	pers, ok := s.opts.Personas().Default(s.opts.Config.Persona.Default)
	if req.Persona != "" {
		var err error
		if pers, err = s.opts.Personas().Get(req.Persona); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		ok = true
	}
	var hint tts.VoiceHint
	if ok {
		hint = pers.Hint()
	}

	text := req.Text
	if req.Markdown {
		text = s.prep.Speakable(text)
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	id, err := s.opts.Runner.Speak(ctx, text, p, hint)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	voice, _ := s.opts.Runner.Selector().Pinned()
	s.log.Debug("Speaking", "utterance", id, "persona", pers.Code, "voice", voice.Name)
	writeJSON(w, http.StatusAccepted, SpeakResponse{Utterance: id, Persona: pers.Code, Voice: voice})
}

func (s *Server) control(fn func(Controller, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := fn(s.opts.Runner, ctx); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, s.opts.Runner.Snapshot())
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Runner.Snapshot())
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	sel := s.opts.Runner.Selector()
	pinned, ok := sel.Pinned()
	resp := struct {
		Voices   []tts.Voice   `json:"voices"`
		Selected *tts.Voice    `json:"selected,omitempty"`
		Hint     tts.VoiceHint `json:"hint"`
	}{
		Voices: sel.Voices(),
		Hint:   sel.Hint(),
	}
	if resp.Voices == nil {
		resp.Voices = []tts.Voice{}
	}
	if ok {
		resp.Selected = &pinned
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	c := s.opts.Personas()
	def, _ := c.Default(s.opts.Config.Persona.Default)
	writeJSON(w, http.StatusOK, struct {
		Default  string                       `json:"default"`
		Personas []persona.Persona            `json:"personas"`
		Grouped  map[string][]persona.Persona `json:"grouped"`
	}{
		Default:  def.Code,
		Personas: c.List(),
		Grouped:  c.Grouped(),
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rate := 1.0
	if v := q.Get("rate"); v != "" {
		var err error
		if rate, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	text := q.Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, tts.ErrInvalidRequest)
		return
	}
	writeJSON(w, http.StatusOK, BuildTimeline(text, rate, s.opts.Config.Voice.PauseRune()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status  string `json:"status"`
		Version string `json:"version,omitempty"`
		Engine  string `json:"engine"`
		Detail  string `json:"engine_status,omitempty"`
		Started string `json:"started"`
		Clients int    `json:"clients"`
		Cache   string `json:"cache,omitempty"`
	}{
		Status:  "ok",
		Version: s.opts.Version,
		Started: humanize.Time(s.started),
	}

	status := http.StatusOK
	if e := s.opts.Engine; e != nil {
		resp.Engine = e.Name()
		if st, ok := e.(interface{ Status() string }); ok {
			resp.Detail = st.Status()
		}
		if !e.Available() {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if s.opts.Hub != nil {
		resp.Clients = s.opts.Hub.Clients()
	}
	if s.opts.Store != nil {
		resp.Cache = s.opts.Store.Stats().Disk.String()
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tts.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, tts.ErrInvalidState), errors.Is(err, tts.ErrNotSpeaking):
		return http.StatusConflict
	case errors.Is(err, tts.ErrVoiceUnavailable),
		errors.Is(err, tts.ErrEngineUnavailable),
		errors.Is(err, tts.ErrControllerDisposed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
