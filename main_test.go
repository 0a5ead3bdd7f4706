package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/viseme"
	"github.com/spf13/viper"
)

// TestDefaultConfigLoads tests that the generated config file is valid.
func TestDefaultConfigLoads(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		t.Fatalf("Default config does not parse: %v", err)
	}

	c, err := tts.LoadConfigFromViper()
	if err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if c.Engine != "espeak" {
		t.Errorf("Expected espeak engine, got %q", c.Engine)
	}
	if c.Sync.FrameInterval != 16*time.Millisecond {
		t.Errorf("Expected 16ms frames, got %v", c.Sync.FrameInterval)
	}
	if c.Voice.PauseRune() != '।' {
		t.Errorf("Expected danda pause marker, got %q", c.Voice.PauseRune())
	}
}

// TestEnsureConfigFile tests creating the config file and rejecting other
// extensions.
func TestEnsureConfigFile(t *testing.T) {
	saved := configFile
	t.Cleanup(func() { configFile = saved })

	configFile = filepath.Join(t.TempDir(), "nested", "mouthpiece.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("Config file was not written: %v", err)
	}
	if string(b) != defaultConfig {
		t.Error("Config file should hold the defaults")
	}

	configFile = filepath.Join(t.TempDir(), "mouthpiece.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("Expected an error for a .toml config")
	}
}

// TestRootCommands tests that every subcommand is registered.
func TestRootCommands(t *testing.T) {
	want := []string{"speak", "voices", "timeline", "serve", "config", "man"}
	for _, name := range want {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("Command %q is not registered", name)
		}
	}
}

// TestPlayTimeline tests that playback writes every keyframe that comes due
// and stops at the closing frame.
func TestPlayTimeline(t *testing.T) {
	text := viseme.Normalize("ab", 0)
	tl := viseme.Timeline{
		{At: 0, Open: 1.0, Index: 0},
		{At: 4 * time.Millisecond, Open: 0.42, Index: 1},
		{At: 8 * time.Millisecond, Open: viseme.RestOpen, Index: -1},
	}

	var buf bytes.Buffer
	if err := playTimeline(context.Background(), &buf, text, tl, time.Millisecond); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "3/3") {
		t.Errorf("Expected the closing keyframe, got:\n%s", out)
	}
	if !strings.Contains(out, " a ") {
		t.Errorf("Expected the first character, got:\n%s", out)
	}
}

// TestPlayTimelineCancelled tests that playback returns when the context ends.
func TestPlayTimelineCancelled(t *testing.T) {
	tl := viseme.Timeline{{At: time.Hour, Open: viseme.RestOpen, Index: -1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := playTimeline(ctx, &buf, viseme.Text{}, tl, time.Millisecond); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}
