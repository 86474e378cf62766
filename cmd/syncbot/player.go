package main

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// simPlayer is a headless video player whose position advances with the clock at the current rate
// while playing. Content is held in place while an ad is showing.
type simPlayer struct {
	clock clockwork.Clock

	mu       sync.Mutex
	position float64
	paused   bool
	rate     float64
	held     bool
	anchor   time.Time
}

func newSimPlayer(clock clockwork.Clock) *simPlayer {
	return &simPlayer{
		clock:  clock,
		paused: true,
		rate:   1,
		anchor: clock.Now(),
	}
}

// advance folds the time since anchor into position. Callers hold p.mu.
func (p *simPlayer) advance() {
	now := p.clock.Now()
	if !p.paused && !p.held {
		p.position += now.Sub(p.anchor).Seconds() * p.rate
	}
	p.anchor = now
}

func (p *simPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.position
}

func (p *simPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *simPlayer) Seek(position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.position = max(position, 0)
	return nil
}

func (p *simPlayer) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.rate = rate
	return nil
}

func (p *simPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.paused = false
	return nil
}

func (p *simPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.paused = true
	return nil
}

func (p *simPlayer) hold(held bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.held = held
}
