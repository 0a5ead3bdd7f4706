package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/mouthpiece/internal/cache"
	"github.com/dgnsrekt/mouthpiece/internal/observe"
	"github.com/dgnsrekt/mouthpiece/internal/persona"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/engines"
	"github.com/dgnsrekt/mouthpiece/tts/sync"
)

// app holds everything a command needs to speak.
type app struct {
	store    *cache.Store
	engine   tts.Engine
	runner   *sync.Runner
	catalog  *persona.Catalog
	watcher  *persona.Watcher
	personas func() *persona.Catalog
}

// openApp opens the cache, the engine chain and the persona catalog, and
// wraps the engine in a runner. The runner is not started.
func openApp(ctx context.Context, cfg tts.Config, metrics *observe.Metrics) (*app, error) {
	a := &app{}

	store, err := cache.Open(cache.Config{
		Dir:              cfg.Cache.Dir,
		MemoryCapacity:   16 << 20,
		DiskCapacity:     int64(cfg.Cache.MaxSizeMB) << 20,
		CompressionLevel: cfg.Cache.CompressionLevel,
	})
	if err != nil {
		// Speaking works without a cache.
		log.Warn("Audio cache disabled", "dir", cfg.Cache.Dir, "error", err)
	} else {
		a.store = store
	}

	if err := a.loadPersonas(cfg.Persona); err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = engines.Open(ctx, cfg, a.store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("unable to open speech engine: %w", err)
	}
	log.Debug("Speech engine ready", "engine", a.engine.Name())

	a.runner = sync.NewRunner(a.engine, sync.Options{
		Sync:    cfg.Sync,
		Mouth:   cfg.Mouth,
		Voice:   cfg.Voice,
		Metrics: metrics,
	}, cfg.Server.FrameBuffer)

	if p, ok := a.personas().Default(cfg.Persona.Default); ok {
		a.runner.SetHint(p.Hint())
	}
	return a, nil
}

func (a *app) loadPersonas(cfg tts.PersonaConfig) error {
	if cfg.File == "" {
		a.catalog = persona.Builtin()
		a.personas = func() *persona.Catalog { return a.catalog }
		return nil
	}

	if cfg.Watch {
		w, err := persona.Watch(cfg.File, func(c *persona.Catalog) {
			if a.runner == nil {
				return
			}
			if p, ok := c.Default(cfg.Default); ok {
				v, changed := a.runner.SetHint(p.Hint())
				log.Info("Personas reloaded", "default", p.Code, "voice", v.Name, "changed", changed)
			}
		})
		if err != nil {
			return fmt.Errorf("unable to load personas: %w", err)
		}
		a.watcher = w
		a.personas = w.Current
		return nil
	}

	c, err := persona.Load(cfg.File)
	if err != nil {
		return fmt.Errorf("unable to load personas: %w", err)
	}
	a.catalog = c
	a.personas = func() *persona.Catalog { return c }
	return nil
}

// watchPersonas reloads the catalog on change until ctx is done. It
// returns at once when the catalog is not watched.
func (a *app) watchPersonas(ctx context.Context) error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Run(ctx)
}

// persona resolves code, falling back to the configured default.
func (a *app) persona(code, fallback string) (persona.Persona, error) {
	if code != "" {
		return a.personas().Get(code)
	}
	p, ok := a.personas().Default(fallback)
	if !ok {
		return persona.Persona{}, persona.ErrUnknownPersona
	}
	return p, nil
}

// Close releases the engine, the watcher and the cache.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
