// Package engines builds speech engines from configuration.
package engines

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/cache"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/engines/espeak"
	"github.com/dgnsrekt/mouthpiece/tts/engines/google"
	"github.com/dgnsrekt/mouthpiece/tts/engines/mock"
)

// DefaultMaxFailures is how many failed Speak calls make Fallback move on
// to the next engine.
const DefaultMaxFailures = 2

// Names lists the engines that can be configured.
var Names = []string{"espeak", "google", "mock"}

// Open creates the configured engine followed by its fallbacks. Engines that
// cannot be created are skipped. A single engine is returned as is.
func Open(ctx context.Context, cfg tts.Config, store *cache.Store) (tts.Engine, error) {
	names := append([]string{cfg.Engine}, cfg.Fallbacks...)

	var opened []tts.Engine
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		e, err := openOne(ctx, name, cfg, store)
		if err != nil {
			log.Warn("Speech engine unavailable", "engine", name, "error", err)
			continue
		}
		opened = append(opened, e)
	}

	switch len(opened) {
	case 0:
		return nil, fmt.Errorf("%w: none of %v could be opened", tts.ErrEngineUnavailable, names)
	case 1:
		return opened[0], nil
	default:
		return NewFallback(DefaultMaxFailures, opened...), nil
	}
}

func openOne(ctx context.Context, name string, cfg tts.Config, store *cache.Store) (tts.Engine, error) {
	switch name {
	case "espeak":
		e := espeak.New(cfg.Espeak)
		if !e.Available() {
			e.Close()
			return nil, fmt.Errorf("%s not found in PATH", cfg.Espeak.Binary)
		}
		return e, nil
	case "google":
		var opts []google.Option
		if store != nil {
			opts = append(opts, google.WithCache(store))
		}
		return google.New(ctx, cfg.Google, opts...)
	case "mock":
		return mock.New(cfg.Mock), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
