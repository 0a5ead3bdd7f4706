package tts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads configuration from Viper on top of the defaults.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	loadString("engine", &cfg.Engine)
	loadStrings("fallbacks", &cfg.Fallbacks)

	// Default prosody
	loadFloat("speech.rate", &cfg.Speech.Rate)
	loadFloat("speech.pitch", &cfg.Speech.Pitch)
	loadFloat("speech.volume", &cfg.Speech.Volume)

	cfg.Sync = loadSyncConfig()
	cfg.Mouth = loadMouthConfig()
	cfg.Voice = loadVoiceConfig()

	// Persona catalog
	loadString("persona.file", &cfg.Persona.File)
	loadString("persona.default", &cfg.Persona.Default)
	loadBool("persona.watch", &cfg.Persona.Watch)

	// Server
	loadString("server.addr", &cfg.Server.Addr)
	loadStrings("server.allowed_origins", &cfg.Server.AllowedOrigins)
	loadInt("server.frame_buffer", &cfg.Server.FrameBuffer)

	// Cache
	loadString("cache.dir", &cfg.Cache.Dir)
	loadInt("cache.max_size", &cfg.Cache.MaxSizeMB)
	loadInt("cache.compression_level", &cfg.Cache.CompressionLevel)

	// Engines
	loadString("espeak.binary", &cfg.Espeak.Binary)
	loadDuration("espeak.timeout", &cfg.Espeak.Timeout)
	loadString("google.credentials_file", &cfg.Google.CredentialsFile)
	loadString("google.language_code", &cfg.Google.LanguageCode)
	loadInt("google.sample_rate", &cfg.Google.SampleRate)
	loadDuration("google.timeout", &cfg.Google.Timeout)
	loadString("mock.boundaries", &cfg.Mock.Boundaries)
	loadDuration("mock.char_interval", &cfg.Mock.CharInterval)
	loadDuration("mock.load_delay", &cfg.Mock.LoadDelay)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadSyncConfig loads controller timings from Viper.
func loadSyncConfig() SyncConfig {
	cfg := DefaultSyncConfig()

	loadDuration("sync.grace_window", &cfg.GraceWindow)
	loadDuration("sync.coalesce_window", &cfg.CoalesceWindow)
	loadDuration("sync.frame_interval", &cfg.FrameInterval)
	loadDuration("sync.max_boundary_tween", &cfg.MaxBoundaryTween)
	loadDuration("sync.simulated_slack", &cfg.SimulatedSlack)
	loadDuration("sync.rest_tween", &cfg.RestTween)
	loadDuration("sync.ceiling_margin", &cfg.CeilingMargin)
	loadFloat("sync.ceiling_factor", &cfg.CeilingFactor)
	loadFloat("sync.boundary_boost", &cfg.BoundaryBoost)
	loadFloat("sync.blend_current", &cfg.BlendCurrent)
	loadFloat("sync.close_at", &cfg.CloseAt)
	loadInt("sync.blink_every", &cfg.BlinkEvery)

	return cfg
}

// loadMouthConfig loads the mouth range from Viper.
func loadMouthConfig() MouthConfig {
	cfg := DefaultMouthConfig()

	loadFloat("mouth.min", &cfg.Min)
	loadFloat("mouth.max", &cfg.Max)
	loadFloat("mouth.rest", &cfg.Rest)
	loadFloat("mouth.start", &cfg.Start)
	loadFloat("mouth.neutral", &cfg.Neutral)
	loadFloat("mouth.paused", &cfg.Paused)
	loadDuration("mouth.min_duration", &cfg.MinDuration)

	return cfg
}

// loadVoiceConfig loads voice markers from Viper.
func loadVoiceConfig() VoiceConfig {
	cfg := DefaultVoiceConfig()

	loadString("voice.language", &cfg.Language)
	loadStrings("voice.language_names", &cfg.LanguageNames)
	loadStrings("voice.female", &cfg.Female)
	loadStrings("voice.male", &cfg.Male)
	loadString("voice.pause_marker", &cfg.PauseMarker)

	return cfg
}

func loadString(key string, dst *string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func loadStrings(key string, dst *[]string) {
	if viper.IsSet(key) {
		*dst = viper.GetStringSlice(key)
	}
}

func loadBool(key string, dst *bool) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func loadInt(key string, dst *int) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func loadFloat(key string, dst *float64) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

func loadDuration(key string, dst *time.Duration) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

// SetDefaults sets default values in Viper for the configuration.
func SetDefaults() {
	d := DefaultConfig()

	viper.SetDefault("engine", d.Engine)
	viper.SetDefault("fallbacks", d.Fallbacks)
	viper.SetDefault("speech.rate", d.Speech.Rate)
	viper.SetDefault("speech.pitch", d.Speech.Pitch)
	viper.SetDefault("speech.volume", d.Speech.Volume)
	viper.SetDefault("persona.watch", d.Persona.Watch)
	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("cache.max_size", d.Cache.MaxSizeMB)
}
