package mock

import (
	"sync"
	"time"
)

// playback is the pausable clock of one utterance. Paused time does not
// count toward progress.
type playback struct {
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	start    time.Time
	paused   bool
	pausedAt time.Time
	offset   time.Duration // Total time spent paused
	resumed  chan struct{}
}

func newPlayback() *playback {
	return &playback{
		stop:    make(chan struct{}),
		start:   time.Now(),
		resumed: make(chan struct{}),
	}
}

func (p *playback) cancel() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *playback) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.pausedAt = time.Now()
	p.resumed = make(chan struct{})
}

func (p *playback) resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	p.offset += time.Since(p.pausedAt)
	close(p.resumed)
}

// elapsed returns unpaused time since start.
func (p *playback) elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := time.Since(p.start) - p.offset
	if p.paused {
		d -= time.Since(p.pausedAt)
	}
	return d
}

// waitUntil blocks until at of unpaused playback has elapsed. It reports
// false if playback was cancelled.
func (p *playback) waitUntil(at time.Duration) bool {
	for {
		p.mu.Lock()
		paused, resumed := p.paused, p.resumed
		p.mu.Unlock()

		if paused {
			select {
			case <-p.stop:
				return false
			case <-resumed:
			}
			continue
		}

		remaining := at - p.elapsed()
		if remaining <= 0 {
			return true
		}
		t := time.NewTimer(remaining)
		select {
		case <-p.stop:
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// wait blocks for d of unpaused playback.
func (p *playback) wait(d time.Duration) bool {
	return p.waitUntil(p.elapsed() + d)
}
