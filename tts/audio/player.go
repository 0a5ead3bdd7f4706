//go:build !nocgo

package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, fixed to one format.
var (
	contextMu     sync.Mutex
	globalContext *oto.Context
	globalFormat  Format
)

func contextFor(f Format) (*oto.Context, error) {
	contextMu.Lock()
	defer contextMu.Unlock()

	if globalContext != nil {
		if f != globalFormat {
			return nil, fmt.Errorf("audio context is fixed at %d Hz x%d, clip is %d Hz x%d",
				globalFormat.SampleRate, globalFormat.Channels, f.SampleRate, f.Channels)
		}
		return globalContext, nil
	}
	if f.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", f.BitDepth)
	}

	options := &oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	switch runtime.GOOS {
	case "darwin":
		// CoreAudio wants larger buffers.
		options.BufferSize = 100 * time.Millisecond
	default:
		options.BufferSize = 50 * time.Millisecond
	}

	log.Debug("Initializing audio context",
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("audio context initialization timeout")
	}

	globalContext, globalFormat = ctx, f
	return ctx, nil
}

// Player plays one clip at a time on the shared audio context.
type Player struct {
	mu     sync.Mutex
	player *oto.Player
	reader *positionReader
	format Format
	paused bool
	volume float64
}

// NewPlayer creates a player. The audio device is opened by the first Play.
func NewPlayer() *Player {
	return &Player{volume: 1.0}
}

// SetVolume sets the volume for subsequent clips (0.0 to 1.0).
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

// Play stops the current clip and starts c.
func (p *Player) Play(c Clip) error {
	if err := c.Format.Validate(c.PCM); err != nil {
		return err
	}
	ctx, err := contextFor(c.Format)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	p.reader = newPositionReader(c.PCM)
	p.player = ctx.NewPlayer(p.reader)
	p.player.SetVolume(p.volume)
	p.format = c.Format
	p.paused = false
	p.player.Play()
	return nil
}

// Pause suspends output.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return errNotPlaying
	}
	p.player.Pause()
	p.paused = true
	return nil
}

// Resume continues output.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return errNotPlaying
	}
	p.player.Play()
	p.paused = false
	return nil
}

// Stop discards the current clip.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player, p.reader = nil, nil
	return err
}

// Position returns how much of the clip has been heard: bytes consumed by
// the device minus what is still buffered.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return 0
	}
	heard := p.reader.consumed() - int64(p.player.BufferedSize())
	return p.format.Duration(int(max(heard, 0)))
}

// Finished reports whether the clip has played to the end.
func (p *Player) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && !p.paused && !p.player.IsPlaying()
}
