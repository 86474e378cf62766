package adprobe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Callbacks struct {
	// OnAdStart fires on the not-in-ad to in-ad edge only.
	OnAdStart func(estimatedDurationMs *int64)
	// OnAdEnd fires on the in-ad to not-in-ad edge only.
	OnAdEnd func()
}

// Probe polls an indicator and turns its level into edge events. There is no debouncing beyond
// the poll interval.
type Probe struct {
	indicator Indicator
	interval  time.Duration
	clock     clockwork.Clock
	callbacks Callbacks
	logger    *slog.Logger

	mu   sync.Mutex
	inAd bool
}

func NewProbe(indicator Indicator, interval time.Duration, clock clockwork.Clock, callbacks Callbacks, logger *slog.Logger) *Probe {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Probe{
		indicator: indicator,
		interval:  interval,
		clock:     clock,
		callbacks: callbacks,
		logger:    logger,
	}
}

func (p *Probe) InAd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.inAd
}

// Poll takes one observation. A failed observation leaves the flag unchanged.
func (p *Probe) Poll(ctx context.Context) {
	signal, err := p.indicator.Detect(ctx)
	if err != nil {
		p.logger.DebugContext(ctx, "ad detection failed", "error", err)
		return
	}

	p.mu.Lock()
	changed := signal.InAd != p.inAd
	p.inAd = signal.InAd
	p.mu.Unlock()

	if !changed {
		return
	}

	if signal.InAd {
		p.logger.InfoContext(ctx, "ad started", "estimated_duration_ms", signal.EstimatedDurationMs)
		if p.callbacks.OnAdStart != nil {
			p.callbacks.OnAdStart(signal.EstimatedDurationMs)
		}
		return
	}

	p.logger.InfoContext(ctx, "ad ended")
	if p.callbacks.OnAdEnd != nil {
		p.callbacks.OnAdEnd()
	}
}

// Run polls until ctx is done.
func (p *Probe) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.Poll(ctx)
		}
	}
}
