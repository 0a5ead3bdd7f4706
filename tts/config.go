package tts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Config contains all speech and animation configuration options.
type Config struct {
	// Engine selection. Fallbacks are tried in order when the engine is
	// unavailable on this host.
	Engine    string   `yaml:"engine" env:"MOUTHPIECE_ENGINE" envDefault:"espeak"`
	Fallbacks []string `yaml:"fallbacks" env:"MOUTHPIECE_FALLBACKS" envDefault:"mock"`

	// Default prosody for speak requests
	Speech Prosody `yaml:"speech"`

	Sync    SyncConfig    `yaml:"sync"`
	Mouth   MouthConfig   `yaml:"mouth"`
	Voice   VoiceConfig   `yaml:"voice"`
	Persona PersonaConfig `yaml:"persona"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`

	// Engine-specific configurations
	Espeak EspeakConfig `yaml:"espeak"`
	Google GoogleConfig `yaml:"google"`
	Mock   MockConfig   `yaml:"mock"`
}

// SyncConfig holds the controller's timing heuristics.
type SyncConfig struct {
	GraceWindow      time.Duration `yaml:"grace_window" env:"MOUTHPIECE_SYNC_GRACE_WINDOW" envDefault:"450ms"`
	CoalesceWindow   time.Duration `yaml:"coalesce_window" env:"MOUTHPIECE_SYNC_COALESCE_WINDOW" envDefault:"90ms"`
	FrameInterval    time.Duration `yaml:"frame_interval" env:"MOUTHPIECE_SYNC_FRAME_INTERVAL" envDefault:"16ms"`
	MaxBoundaryTween time.Duration `yaml:"max_boundary_tween" env:"MOUTHPIECE_SYNC_MAX_BOUNDARY_TWEEN" envDefault:"220ms"`
	SimulatedSlack   time.Duration `yaml:"simulated_slack" env:"MOUTHPIECE_SYNC_SIMULATED_SLACK" envDefault:"25ms"`
	RestTween        time.Duration `yaml:"rest_tween" env:"MOUTHPIECE_SYNC_REST_TWEEN" envDefault:"160ms"`
	CeilingMargin    time.Duration `yaml:"ceiling_margin" env:"MOUTHPIECE_SYNC_CEILING_MARGIN" envDefault:"2s"`
	CeilingFactor    float64       `yaml:"ceiling_factor" env:"MOUTHPIECE_SYNC_CEILING_FACTOR" envDefault:"2.0"`
	BoundaryBoost    float64       `yaml:"boundary_boost" env:"MOUTHPIECE_SYNC_BOUNDARY_BOOST" envDefault:"1.15"`
	BlendCurrent     float64       `yaml:"blend_current" env:"MOUTHPIECE_SYNC_BLEND_CURRENT" envDefault:"0.25"`
	CloseAt          float64       `yaml:"close_at" env:"MOUTHPIECE_SYNC_CLOSE_AT" envDefault:"0.6"`
	BlinkEvery       int           `yaml:"blink_every" env:"MOUTHPIECE_SYNC_BLINK_EVERY" envDefault:"22"`
}

// MouthConfig describes the mouth-openness range and its resting points.
type MouthConfig struct {
	Min         float64       `yaml:"min" env:"MOUTHPIECE_MOUTH_MIN" envDefault:"0.12"`
	Max         float64       `yaml:"max" env:"MOUTHPIECE_MOUTH_MAX" envDefault:"1.6"`
	Rest        float64       `yaml:"rest" env:"MOUTHPIECE_MOUTH_REST" envDefault:"0.30"`
	Start       float64       `yaml:"start" env:"MOUTHPIECE_MOUTH_START" envDefault:"0.40"`
	Neutral     float64       `yaml:"neutral" env:"MOUTHPIECE_MOUTH_NEUTRAL" envDefault:"0.45"`
	Paused      float64       `yaml:"paused" env:"MOUTHPIECE_MOUTH_PAUSED" envDefault:"0.20"`
	MinDuration time.Duration `yaml:"min_duration" env:"MOUTHPIECE_MOUTH_MIN_DURATION" envDefault:"90ms"`
}

// VoiceConfig holds the markers used by voice selection.
type VoiceConfig struct {
	Language      string   `yaml:"language" env:"MOUTHPIECE_VOICE_LANGUAGE" envDefault:"hi"`
	LanguageNames []string `yaml:"language_names" env:"MOUTHPIECE_VOICE_LANGUAGE_NAMES" envDefault:"hindi"`
	Female        []string `yaml:"female" env:"MOUTHPIECE_VOICE_FEMALE" envDefault:"lekha"`
	Male          []string `yaml:"male" env:"MOUTHPIECE_VOICE_MALE" envDefault:"rishi"`
	PauseMarker   string   `yaml:"pause_marker" env:"MOUTHPIECE_VOICE_PAUSE_MARKER" envDefault:"।"`
}

// PersonaConfig locates the persona catalog.
type PersonaConfig struct {
	File    string `yaml:"file" env:"MOUTHPIECE_PERSONA_FILE"`
	Default string `yaml:"default" env:"MOUTHPIECE_PERSONA_DEFAULT"`
	Watch   bool   `yaml:"watch" env:"MOUTHPIECE_PERSONA_WATCH" envDefault:"true"`
}

// ServerConfig contains settings for the serve command.
type ServerConfig struct {
	Addr           string   `yaml:"addr" env:"MOUTHPIECE_SERVER_ADDR" envDefault:":8088"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"MOUTHPIECE_SERVER_ALLOWED_ORIGINS" envDefault:"*"`
	FrameBuffer    int      `yaml:"frame_buffer" env:"MOUTHPIECE_SERVER_FRAME_BUFFER" envDefault:"64"`
}

// CacheConfig contains settings for the synthesized audio cache.
type CacheConfig struct {
	Dir              string `yaml:"dir" env:"MOUTHPIECE_CACHE_DIR"`
	MaxSizeMB        int    `yaml:"max_size" env:"MOUTHPIECE_CACHE_MAX_SIZE" envDefault:"100"`
	CompressionLevel int    `yaml:"compression_level" env:"MOUTHPIECE_CACHE_COMPRESSION_LEVEL" envDefault:"3"`
}

// EspeakConfig contains espeak-ng engine specific settings.
type EspeakConfig struct {
	Binary  string        `yaml:"binary" env:"MOUTHPIECE_ESPEAK_BINARY" envDefault:"espeak-ng"`
	Timeout time.Duration `yaml:"timeout" env:"MOUTHPIECE_ESPEAK_TIMEOUT" envDefault:"5s"`
}

// GoogleConfig contains Google Cloud TTS engine specific settings.
type GoogleConfig struct {
	CredentialsFile string        `yaml:"credentials_file" env:"MOUTHPIECE_GOOGLE_CREDENTIALS_FILE"`
	LanguageCode    string        `yaml:"language_code" env:"MOUTHPIECE_GOOGLE_LANGUAGE_CODE" envDefault:"hi-IN"`
	SampleRate      int           `yaml:"sample_rate" env:"MOUTHPIECE_GOOGLE_SAMPLE_RATE" envDefault:"24000"`
	Timeout         time.Duration `yaml:"timeout" env:"MOUTHPIECE_GOOGLE_TIMEOUT" envDefault:"10s"`
}

// MockConfig contains mock engine settings.
type MockConfig struct {
	Boundaries   string        `yaml:"boundaries" env:"MOUTHPIECE_MOCK_BOUNDARIES" envDefault:"word"`
	CharInterval time.Duration `yaml:"char_interval" env:"MOUTHPIECE_MOCK_CHAR_INTERVAL" envDefault:"70ms"`
	LoadDelay    time.Duration `yaml:"load_delay" env:"MOUTHPIECE_MOCK_LOAD_DELAY" envDefault:"50ms"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:    "espeak",
		Fallbacks: []string{"mock"},
		Speech:    DefaultProsody(),
		Sync:      DefaultSyncConfig(),
		Mouth:     DefaultMouthConfig(),
		Voice:     DefaultVoiceConfig(),
		Persona:   PersonaConfig{Watch: true},
		Server: ServerConfig{
			Addr:           ":8088",
			AllowedOrigins: []string{"*"},
			FrameBuffer:    64,
		},
		Cache: CacheConfig{
			MaxSizeMB:        100,
			CompressionLevel: 3,
		},
		Espeak: EspeakConfig{
			Binary:  "espeak-ng",
			Timeout: 5 * time.Second,
		},
		Google: GoogleConfig{
			LanguageCode: "hi-IN",
			SampleRate:   24000,
			Timeout:      10 * time.Second,
		},
		Mock: MockConfig{
			Boundaries:   "word",
			CharInterval: 70 * time.Millisecond,
			LoadDelay:    50 * time.Millisecond,
		},
	}
}

// DefaultSyncConfig returns the default controller timings.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		GraceWindow:      450 * time.Millisecond,
		CoalesceWindow:   90 * time.Millisecond,
		FrameInterval:    time.Second / 60,
		MaxBoundaryTween: 220 * time.Millisecond,
		SimulatedSlack:   25 * time.Millisecond,
		RestTween:        160 * time.Millisecond,
		CeilingMargin:    2 * time.Second,
		CeilingFactor:    2.0,
		BoundaryBoost:    1.15,
		BlendCurrent:     0.25,
		CloseAt:          0.6,
		BlinkEvery:       22,
	}
}

// DefaultMouthConfig returns the default mouth range.
func DefaultMouthConfig() MouthConfig {
	return MouthConfig{
		Min:         0.12,
		Max:         1.6,
		Rest:        0.30,
		Start:       0.40,
		Neutral:     0.45,
		Paused:      0.20,
		MinDuration: 90 * time.Millisecond,
	}
}

// DefaultVoiceConfig returns markers for Hindi voices.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		Language:      "hi",
		LanguageNames: []string{"hindi"},
		Female:        []string{"lekha"},
		Male:          []string{"rishi"},
		PauseMarker:   "।",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validEngines := []string{"espeak", "google", "mock"}
	normalize := func(name string) (string, error) {
		for _, e := range validEngines {
			if strings.EqualFold(name, e) {
				return e, nil
			}
		}
		return "", fmt.Errorf("invalid engine '%s': must be one of %v", name, validEngines)
	}

	engine, err := normalize(c.Engine)
	if err != nil {
		return err
	}
	c.Engine = engine
	for i, name := range c.Fallbacks {
		if c.Fallbacks[i], err = normalize(name); err != nil {
			return fmt.Errorf("fallbacks: %w", err)
		}
	}

	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}
	if err := c.Mouth.Validate(); err != nil {
		return fmt.Errorf("mouth config: %w", err)
	}
	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice config: %w", err)
	}

	if c.Server.FrameBuffer < 1 || c.Server.FrameBuffer > 4096 {
		return fmt.Errorf("server frame_buffer must be between 1 and 4096, got %d", c.Server.FrameBuffer)
	}
	if c.Cache.MaxSizeMB < 0 || c.Cache.MaxSizeMB > 10000 {
		return fmt.Errorf("cache max_size must be between 0 and 10000 MB, got %d", c.Cache.MaxSizeMB)
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
		return fmt.Errorf("cache compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel)
	}

	if err := c.Mock.Validate(); err != nil {
		return fmt.Errorf("mock config: %w", err)
	}
	if c.Google.SampleRate != 24000 && c.Google.SampleRate != 44100 && c.Google.SampleRate != 48000 {
		return fmt.Errorf("google sample_rate must be 24000, 44100 or 48000, got %d", c.Google.SampleRate)
	}
	if c.Espeak.Binary == "" {
		return fmt.Errorf("espeak binary path cannot be empty")
	}

	return nil
}

// Validate checks if the sync configuration is valid.
func (c *SyncConfig) Validate() error {
	if c.GraceWindow <= 0 {
		return fmt.Errorf("grace_window must be positive, got %v", c.GraceWindow)
	}
	if c.CoalesceWindow < 0 {
		return fmt.Errorf("coalesce_window cannot be negative, got %v", c.CoalesceWindow)
	}
	if c.FrameInterval < time.Millisecond || c.FrameInterval > 100*time.Millisecond {
		return fmt.Errorf("frame_interval must be between 1ms and 100ms, got %v", c.FrameInterval)
	}
	if c.MaxBoundaryTween <= 0 {
		return fmt.Errorf("max_boundary_tween must be positive, got %v", c.MaxBoundaryTween)
	}
	if c.CeilingFactor < 1.0 {
		return fmt.Errorf("ceiling_factor must be at least 1.0, got %f", c.CeilingFactor)
	}
	if c.BlendCurrent < 0.0 || c.BlendCurrent >= 1.0 {
		return fmt.Errorf("blend_current must be in [0.0, 1.0), got %f", c.BlendCurrent)
	}
	if c.CloseAt <= 0.0 || c.CloseAt >= 1.0 {
		return fmt.Errorf("close_at must be in (0.0, 1.0), got %f", c.CloseAt)
	}
	if c.BlinkEvery < 0 {
		return fmt.Errorf("blink_every cannot be negative, got %d", c.BlinkEvery)
	}
	return nil
}

// Validate checks if the mouth range is consistent.
func (c *MouthConfig) Validate() error {
	if c.Min < 0 || c.Min >= c.Max {
		return fmt.Errorf("mouth range [%f, %f] is empty", c.Min, c.Max)
	}
	for name, v := range map[string]float64{
		"rest":    c.Rest,
		"start":   c.Start,
		"neutral": c.Neutral,
		"paused":  c.Paused,
	} {
		if v < c.Min || v > c.Max {
			return fmt.Errorf("%s must be between %f and %f, got %f", name, c.Min, c.Max, v)
		}
	}
	if c.MinDuration <= 0 {
		return fmt.Errorf("min_duration must be positive, got %v", c.MinDuration)
	}
	return nil
}

// Validate checks if the voice markers are usable.
func (c *VoiceConfig) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if utf8.RuneCountInString(c.PauseMarker) != 1 {
		return fmt.Errorf("pause_marker must be a single character, got %q", c.PauseMarker)
	}
	return nil
}

// PauseRune returns the pause marker as a rune.
func (c *VoiceConfig) PauseRune() rune {
	r, _ := utf8.DecodeRuneInString(c.PauseMarker)
	return r
}

// Validate checks if the mock configuration is valid.
func (c *MockConfig) Validate() error {
	switch c.Boundaries {
	case "word", "char", "none", "burst":
	default:
		return fmt.Errorf("boundaries must be one of word, char, none, burst, got %q", c.Boundaries)
	}
	if c.CharInterval < time.Millisecond {
		return fmt.Errorf("char_interval must be at least 1ms, got %v", c.CharInterval)
	}
	return nil
}
