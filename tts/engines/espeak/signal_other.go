//go:build !unix

package espeak

import (
	"os"

	"github.com/dgnsrekt/mouthpiece/tts"
)

func suspend(*os.Process) error { return tts.ErrNotImplemented }

func resume(*os.Process) error { return tts.ErrNotImplemented }
