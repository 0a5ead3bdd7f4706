package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint   `env:"MOUTHPIECE_GLAMOUR_MAX_WIDTH" envDefault:"80"`
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse     bool

	// Show the glamour-rendered reply under the face instead of the
	// spoken text.
	ShowReply bool `env:"MOUTHPIECE_SHOW_REPLY"`

	// For debugging the UI
	GlamourEnabled bool `env:"MOUTHPIECE_ENABLE_GLAMOUR" envDefault:"true"`
}
