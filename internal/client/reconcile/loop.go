package reconcile

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Player is the local video element. Errors mean the player refused the command, e.g. autoplay
// being blocked; the loop logs them and carries on.
type Player interface {
	Position() float64
	Paused() bool
	Seek(position float64) error
	SetRate(rate float64) error
	Play() error
	Pause() error
}

// Reporter carries the loop's messages upstream.
type Reporter interface {
	ReportPlayback(isPlaying bool, position float64) error
	RequestState() error
}

type report struct {
	isPlaying bool
	position  float64
	at        time.Time
}

// Loop keeps a local player aligned with the room's authoritative playback. All methods are safe
// for concurrent use; corrections never overlap.
type Loop struct {
	mu       sync.Mutex
	player   Player
	reporter Reporter
	clock    clockwork.Clock
	cfg      *Config
	logger   *slog.Logger

	active    bool
	state     State
	remote    *RemoteState
	buffering bool
	// localAd is set while this participant's own player shows an ad.
	localAd bool
	// awaitingRelease is set when a plain sync_state should end the ad pause.
	awaitingRelease bool
	lastReported    *report
	guardUntil      time.Time

	// generation invalidates timer callbacks scheduled before the last state change.
	generation    uint64
	rateTimer     clockwork.Timer
	resumeTimer   clockwork.Timer
	guardTimer    clockwork.Timer
	stopHeartbeat context.CancelFunc
}

func NewLoop(player Player, reporter Reporter, clock clockwork.Clock, cfg *Config, logger *slog.Logger) *Loop {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		player:   player,
		reporter: reporter,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Activate starts reconciling against initial and begins the heartbeat. It is a no-op when the
// loop is already active.
func (l *Loop) Activate(ctx context.Context, initial RemoteState) {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return
	}

	l.active = true
	l.state = StateSynced
	l.remote = &initial
	l.lastReported = &report{isPlaying: initial.IsPlaying, position: initial.Position, at: initial.ObservedAt}

	hbCtx, cancel := context.WithCancel(ctx)
	l.stopHeartbeat = cancel
	l.reconcile()
	l.mu.Unlock()

	go l.heartbeat(hbCtx)
}

// Deactivate stops every timer and the heartbeat and leaves the player at normal rate.
func (l *Loop) Deactivate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	l.active = false
	l.stopHeartbeat()
	l.stopHeartbeat = nil
	l.cancelTimers()
	l.resetRate()

	l.state = StateSynced
	l.remote = nil
	l.buffering = false
	l.localAd = false
	l.awaitingRelease = false
	l.lastReported = nil
	l.guardUntil = time.Time{}
}

func (l *Loop) heartbeat(ctx context.Context) {
	ticker := l.clock.NewTicker(l.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.mu.Lock()
			if !l.active {
				l.mu.Unlock()
				return
			}
			if l.state == StatePausedForAd && !l.localAd {
				l.awaitingRelease = true
			}
			l.mu.Unlock()

			if err := l.reporter.RequestState(); err != nil {
				l.logger.Debug("failed to request state", "error", err)
			}
		}
	}
}

// ApplyRemote takes a new authoritative state. While paused for an ad it is only stored, unless
// the pause is waiting to be released.
func (l *Loop) ApplyRemote(rs RemoteState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	l.remote = &rs
	if l.state == StatePausedForAd {
		if !l.awaitingRelease || l.localAd {
			return
		}
		l.awaitingRelease = false
		l.state = StateSynced
		l.logger.Info("ad pause released by sync state")
	}

	if l.buffering {
		return
	}

	l.reconcile()
}

// SetBuffering reports local buffering transitions. Evaluation resumes shortly after buffering
// ends, against the latest remote state.
func (l *Loop) SetBuffering(buffering bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active || l.buffering == buffering {
		return
	}

	l.buffering = buffering
	if l.state == StatePausedForAd {
		return
	}

	if buffering {
		l.cancelTimers()
		l.resetRate()
		l.state = StateBuffering
		return
	}

	gen := l.bump()
	l.resumeTimer = l.clock.AfterFunc(l.cfg.BufferingResumeDelay, func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if gen != l.generation || !l.active || l.buffering || l.state != StateBuffering {
			return
		}

		l.state = StateSynced
		l.reconcile()
	})
}

// OnLocalEvent reports a local play/pause/seek upstream unless the loop caused it or it does not
// differ enough from what was last reported.
func (l *Loop) OnLocalEvent(isPlaying bool, position float64) {
	l.mu.Lock()

	if !l.active || l.state == StatePausedForAd {
		l.mu.Unlock()
		return
	}

	now := l.clock.Now()
	if now.Before(l.guardUntil) {
		l.mu.Unlock()
		l.logger.Debug("local event suppressed by guard", "is_playing", isPlaying, "position", position)
		return
	}

	if last := l.lastReported; last != nil && last.isPlaying == isPlaying {
		expected := RemoteState{IsPlaying: last.isPlaying, Position: last.position, ObservedAt: last.at}.ExpectedPosition(now)
		if math.Abs(position-expected) <= l.cfg.Tolerance {
			l.mu.Unlock()
			return
		}
	}

	l.lastReported = &report{isPlaying: isPlaying, position: position, at: now}
	// the server does not echo our own update back
	l.remote = &RemoteState{IsPlaying: isPlaying, Position: position, ObservedAt: now}
	l.cancelRateAdjustment()
	if l.state == StateAdjusting {
		l.state = StateSynced
	}
	l.mu.Unlock()

	if err := l.reporter.ReportPlayback(isPlaying, position); err != nil {
		l.logger.Warn("failed to report playback", "error", err)
	}
}

// PauseForAd pauses the player until ResumeAll.
func (l *Loop) PauseForAd() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	l.cancelTimers()
	l.resetRate()
	l.state = StatePausedForAd
	l.awaitingRelease = false
	if l.localAd {
		return
	}

	if !l.player.Paused() {
		l.arm()
		if err := l.player.Pause(); err != nil {
			l.logger.Warn("player rejected pause", "error", err)
		}
	}
}

// LocalAdStarted suspends reconciliation while this participant's own player shows an ad.
func (l *Loop) LocalAdStarted() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	l.cancelTimers()
	l.resetRate()
	l.localAd = true
	l.awaitingRelease = false
	l.state = StatePausedForAd
}

// LocalAdEnded keeps the loop paused until the room answers with pause_for_ad, resume_all or a
// plain sync_state.
func (l *Loop) LocalAdEnded() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active || !l.localAd {
		return
	}

	l.localAd = false
	l.awaitingRelease = true
	if !l.player.Paused() {
		l.arm()
		if err := l.player.Pause(); err != nil {
			l.logger.Warn("player rejected pause", "error", err)
		}
	}
}

// ResumeAll seeks to the room's frozen resume point and applies its play state.
func (l *Loop) ResumeAll(timestamp float64, isPlaying bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	l.cancelTimers()
	l.resetRate()
	l.localAd = false
	l.awaitingRelease = false

	now := l.clock.Now()
	l.remote = &RemoteState{IsPlaying: isPlaying, Position: timestamp, ObservedAt: now}
	l.lastReported = &report{isPlaying: isPlaying, position: timestamp, at: now}

	l.arm()
	if err := l.player.Seek(timestamp); err != nil {
		l.logger.Warn("player rejected seek", "error", err)
	}
	l.alignPlayState(isPlaying)

	if l.buffering {
		l.state = StateBuffering
	} else {
		l.state = StateSynced
	}
}

// reconcile applies one correction against the stored remote state. Callers hold l.mu.
// reconcile applies at most one correction at a time. While a seek is in flight the latest remote
// state is only kept; the guard release evaluates it.
func (l *Loop) reconcile() {
	if l.remote == nil || l.state == StateSeeking {
		return
	}

	l.alignPlayState(l.remote.IsPlaying)

	now := l.clock.Now()
	c := Decide(l.cfg, *l.remote, l.player.Position(), now)
	switch c.Action {
	case ActionNone:
		l.cancelRateAdjustment()
		l.state = StateSynced
	case ActionAdjustRate:
		if l.state == StateAdjusting {
			return
		}
		l.logger.Debug("adjusting rate", "drift", c.Drift, "rate", c.Rate)
		if err := l.player.SetRate(c.Rate); err != nil {
			l.logger.Warn("player rejected rate", "error", err)
			return
		}

		l.state = StateAdjusting
		gen := l.bump()
		l.rateTimer = l.clock.AfterFunc(l.cfg.RateDuration, func() {
			l.mu.Lock()
			defer l.mu.Unlock()

			if gen != l.generation || !l.active || l.state != StateAdjusting {
				return
			}

			l.resetRate()
			l.state = StateSynced
			if !l.buffering {
				l.reconcile()
			}
		})
	case ActionSeek:
		l.logger.Debug("seeking", "drift", c.Drift, "expected", c.Expected)
		l.cancelRateAdjustment()
		l.resetRate()
		l.arm()
		if err := l.player.Seek(c.Expected); err != nil {
			l.logger.Warn("player rejected seek", "error", err)
			return
		}
		l.state = StateSeeking
	}
}

func (l *Loop) alignPlayState(isPlaying bool) {
	paused := l.player.Paused()
	switch {
	case isPlaying && paused:
		l.arm()
		if err := l.player.Play(); err != nil {
			l.logger.Warn("player rejected play", "error", err)
		}
	case !isPlaying && !paused:
		l.arm()
		if err := l.player.Pause(); err != nil {
			l.logger.Warn("player rejected pause", "error", err)
		}
	}
}

// arm raises the re-entrancy guard for GuardDuration. A seek in flight settles into Synced when
// the guard drops and the latest remote state is evaluated again.
func (l *Loop) arm() {
	l.guardUntil = l.clock.Now().Add(l.cfg.GuardDuration)
	if l.guardTimer != nil {
		l.guardTimer.Stop()
	}

	l.guardTimer = l.clock.AfterFunc(l.cfg.GuardDuration, func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if !l.active || l.state != StateSeeking || l.clock.Now().Before(l.guardUntil) {
			return
		}

		l.state = StateSynced
		if !l.buffering {
			l.reconcile()
		}
	})
}

func (l *Loop) bump() uint64 {
	l.generation++
	return l.generation
}

func (l *Loop) cancelRateAdjustment() {
	if l.rateTimer != nil {
		l.rateTimer.Stop()
		l.rateTimer = nil
	}
	if l.state == StateAdjusting {
		l.resetRate()
	}
}

func (l *Loop) cancelTimers() {
	l.bump()
	for _, t := range []clockwork.Timer{l.rateTimer, l.resumeTimer, l.guardTimer} {
		if t != nil {
			t.Stop()
		}
	}
	l.rateTimer, l.resumeTimer, l.guardTimer = nil, nil, nil
}

func (l *Loop) resetRate() {
	if err := l.player.SetRate(1); err != nil {
		l.logger.Warn("player rejected rate reset", "error", err)
	}
}
