// Package main provides the entry point for the mouthpiece CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	cfg        tts.Config

	rootCmd = &cobra.Command{
		Use:   "mouthpiece [TEXT|FILE]",
		Short: "A talking face for your terminal",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text aloud while a face %s along.", keyword("mouths")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: executeSpeak,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(utils.ExpandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = tts.LoadConfigFromViper()
	if err != nil {
		return err
	}

	cfg.Persona.File = utils.ExpandPath(cfg.Persona.File)
	if cfg.Persona.File != "" {
		if _, err := os.Stat(cfg.Persona.File); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("persona file does not exist: %s", cfg.Persona.File)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}

	cfg.Google.CredentialsFile = utils.ExpandPath(cfg.Google.CredentialsFile)

	cfg.Cache.Dir = utils.ExpandPath(cfg.Cache.Dir)
	if cfg.Cache.Dir == "" {
		dir, err := gap.NewScope(gap.User, "mouthpiece").CacheDir()
		if err != nil {
			return fmt.Errorf("unable to find cache directory: %w", err)
		}
		cfg.Cache.Dir = filepath.Join(dir, "audio")
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.StringP("engine", "e", "", fmt.Sprintf("speech engine (%s)", "espeak, google or mock"))
	flags.StringP("persona", "p", "", "persona code to speak as")
	flags.Float64("rate", 0, "speaking rate (0.1 to 4.0)")
	flags.Float64("pitch", 0, "voice pitch (0.0 to 2.0)")
	flags.Float64("volume", 0, "volume (0.0 to 1.0)")
	flags.String("personas", "", "persona catalog file")

	addSpeakFlags(rootCmd)

	// Config bindings
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("persona.default", flags.Lookup("persona"))
	_ = viper.BindPFlag("persona.file", flags.Lookup("personas"))
	_ = viper.BindPFlag("speech.rate", flags.Lookup("rate"))
	_ = viper.BindPFlag("speech.pitch", flags.Lookup("pitch"))
	_ = viper.BindPFlag("speech.volume", flags.Lookup("volume"))

	tts.SetDefaults()

	rootCmd.AddCommand(speakCmd, voicesCmd, timelineCmd, serveCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "mouthpiece")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "mouthpiece")}, dirs...)
	}

	if c := os.Getenv("MOUTHPIECE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("mouthpiece")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("mouthpiece")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "mouthpiece.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
