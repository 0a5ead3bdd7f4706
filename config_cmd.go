package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: espeak, google or mock
engine: "espeak"
# engines to try, in order, when the engine is unavailable
fallbacks: ["mock"]

# default prosody
speech:
  rate: 1.0    # 0.1 to 4.0
  pitch: 1.0   # 0.0 to 2.0
  volume: 1.0  # 0.0 to 1.0

# persona catalog; the built-in personas are used when empty
persona:
  # file: "~/.config/mouthpiece/personas.yml"
  default: "lekha"
  # reload the catalog when the file changes
  watch: true

# voice selection markers
voice:
  language: "hi"
  language_names: ["hindi"]
  female: ["lekha"]
  male: ["rishi"]
  pause_marker: "।"

# mouth range
mouth:
  min: 0.12
  max: 1.6
  rest: 0.30
  start: 0.40
  neutral: 0.45
  paused: 0.20
  min_duration: "90ms"

# controller timings
sync:
  grace_window: "450ms"
  coalesce_window: "90ms"
  frame_interval: "16ms"
  max_boundary_tween: "220ms"
  simulated_slack: "25ms"
  rest_tween: "160ms"
  ceiling_margin: "2s"
  ceiling_factor: 2.0
  boundary_boost: 1.15
  blend_current: 0.25
  close_at: 0.6
  blink_every: 22

# serve command
server:
  addr: ":8088"
  allowed_origins: ["*"]
  frame_buffer: 64

# synthesized audio cache
cache:
  # dir: "~/.cache/mouthpiece/audio"
  max_size: 100          # MB
  compression_level: 3   # zstd, 0 disables

espeak:
  binary: "espeak-ng"
  timeout: "5s"

google:
  # credentials_file: "~/.config/gcloud/mouthpiece.json"
  language_code: "hi-IN"
  sample_rate: 24000
  timeout: "10s"

mock:
  # word, char, none or burst
  boundaries: "word"
  char_interval: "70ms"
  load_delay: "50ms"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the mouthpiece config file",
	Long:    paragraph(fmt.Sprintf("\n%s the mouthpiece config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("mouthpiece config\nmouthpiece config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		// A broken config file must stay editable.
		return nil
	},
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("mouthpiece", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
