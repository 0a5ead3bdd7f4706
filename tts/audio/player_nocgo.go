//go:build nocgo

package audio

import (
	"errors"
	"time"
)

var errNoAudio = errors.New("audio not available in nocgo build")

// Player is a stub for builds without CGO.
type Player struct{}

// NewPlayer returns a stub player.
func NewPlayer() *Player { return &Player{} }

func (p *Player) SetVolume(float64) {}

func (p *Player) Play(Clip) error { return errNoAudio }

func (p *Player) Pause() error { return errNotPlaying }

func (p *Player) Resume() error { return errNotPlaying }

func (p *Player) Stop() error { return nil }

func (p *Player) Position() time.Duration { return 0 }

func (p *Player) Finished() bool { return false }
