package follower

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncwatch/internal/domain"
)

type CorrectorConfig struct {
	// HardSeekThreshold is the drift in seconds above which the widget is seeked.
	HardSeekThreshold float64
	// NudgeThreshold is the drift in seconds above which the rate is nudged.
	NudgeThreshold float64
	NudgeFactor    float64
	NudgeDuration  time.Duration
	SeekCooldown   time.Duration
	IgnoreWindow   time.Duration
}

func DefaultCorrectorConfig() CorrectorConfig {
	return CorrectorConfig{
		HardSeekThreshold: 1.75,
		NudgeThreshold:    0.25,
		NudgeFactor:       0.02,
		NudgeDuration:     1500 * time.Millisecond,
		SeekCooldown:      4 * time.Second,
		IgnoreWindow:      500 * time.Millisecond,
	}
}

type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipHost         SkipReason = "host"
	SkipIgnoreWindow SkipReason = "ignore_window"
	SkipDuplicate    SkipReason = "duplicate"
)

type Correction string

const (
	CorrectionNone     Correction = "none"
	CorrectionHardSeek Correction = "hard_seek"
	CorrectionNudge    Correction = "nudge"
)

// Decision describes what a reconciliation did.
type Decision struct {
	Skipped    SkipReason
	Correction Correction
	Expected   float64
	// Drift is expected minus actual position, zero when the widget position was unknown.
	Drift float64
	Rate  float64
}

type ServerClock interface {
	ServerNowMs() int64
}

// DriftCorrector reconciles a widget against server snapshots.
type DriftCorrector struct {
	mu        sync.Mutex
	cfg       CorrectorConfig
	widget    Widget
	serverNow ServerClock
	clock     clockwork.Clock
	logger    *slog.Logger

	isHost      bool
	ignoreUntil time.Time
	last        domain.PlaybackSnapshot
	hasLast     bool
	lastSeek    time.Time
	hasSeeked   bool

	nudgeTimer clockwork.Timer
	generation uint64
}

func NewDriftCorrector(widget Widget, serverNow ServerClock, cfg CorrectorConfig, clock clockwork.Clock, logger *slog.Logger) *DriftCorrector {
	return &DriftCorrector{
		cfg:       cfg,
		widget:    widget,
		serverNow: serverNow,
		clock:     clock,
		logger:    logger,
	}
}

func (c *DriftCorrector) SetHost(isHost bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isHost = isHost
}

// MarkLocalAction opens the ignore window after the follower issued its own control.
func (c *DriftCorrector) MarkLocalAction() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ignoreUntil = c.clock.Now().Add(c.cfg.IgnoreWindow)
}

// Reset forgets the last processed snapshot and any pending nudge. The seek cooldown survives.
func (c *DriftCorrector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hasLast = false
	c.cancelNudgeLocked()
}

func (c *DriftCorrector) Reconcile(s domain.PlaybackSnapshot) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	switch {
	case c.isHost:
		return Decision{Skipped: SkipHost}
	case now.Before(c.ignoreUntil):
		return Decision{Skipped: SkipIgnoreWindow}
	case c.hasLast && s.SameAs(c.last):
		return Decision{Skipped: SkipDuplicate}
	}
	c.last, c.hasLast = s, true

	decision := Decision{
		Correction: CorrectionNone,
		Expected:   s.ExpectedPosition(c.serverNow.ServerNowMs()),
		Rate:       s.Rate,
	}

	c.alignPlaying(s.IsPlaying)

	actual, err := c.widget.CurrentTime()
	if err != nil {
		c.logger.Debug("failed to read widget position", "error", err)
		c.cancelNudgeLocked()
		c.ensureRate(s.Rate)
		return decision
	}

	decision.Drift = decision.Expected - actual
	absDrift := math.Abs(decision.Drift)
	switch {
	case absDrift > c.cfg.HardSeekThreshold && c.seekAllowed(now):
		c.cancelNudgeLocked()
		if err := c.widget.SeekTo(decision.Expected); err != nil {
			c.logger.Debug("failed to seek widget", "error", err)
		}
		c.setRate(s.Rate)
		c.lastSeek, c.hasSeeked = now, true

		decision.Correction = CorrectionHardSeek
		c.logger.Debug("hard seek", "expected", decision.Expected, "drift", decision.Drift)
	case absDrift > c.cfg.NudgeThreshold && s.IsPlaying:
		factor := 1 + c.cfg.NudgeFactor
		if decision.Drift < 0 {
			factor = 1 - c.cfg.NudgeFactor
		}
		decision.Rate = s.Rate * factor
		c.nudge(decision.Rate, s.Rate)

		decision.Correction = CorrectionNudge
		c.logger.Debug("rate nudge", "rate", decision.Rate, "drift", decision.Drift)
	default:
		c.cancelNudgeLocked()
		c.ensureRate(s.Rate)
	}

	return decision
}

func (c *DriftCorrector) seekAllowed(now time.Time) bool {
	return !c.hasSeeked || now.Sub(c.lastSeek) >= c.cfg.SeekCooldown
}

func (c *DriftCorrector) alignPlaying(playing bool) {
	current, err := c.widget.IsPlaying()
	if err == nil && current == playing {
		return
	}

	if playing {
		err = c.widget.Play()
	} else {
		err = c.widget.Pause()
	}
	if err != nil {
		c.logger.Debug("failed to set widget play state", "playing", playing, "error", err)
	}
}

func (c *DriftCorrector) ensureRate(rate float64) {
	current, err := c.widget.PlaybackRate()
	if err == nil && current == rate {
		return
	}

	c.setRate(rate)
}

func (c *DriftCorrector) setRate(rate float64) {
	if err := c.widget.SetPlaybackRate(rate); err != nil {
		c.logger.Debug("failed to set widget rate", "rate", rate, "error", err)
	}
}

// nudge sets a temporary rate and schedules the restore of target, replacing any pending restore.
func (c *DriftCorrector) nudge(rate, target float64) {
	c.cancelNudgeLocked()
	c.setRate(rate)

	generation := c.generation
	c.nudgeTimer = c.clock.AfterFunc(c.cfg.NudgeDuration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if generation != c.generation {
			return
		}
		c.nudgeTimer = nil
		c.setRate(target)
	})
}

func (c *DriftCorrector) cancelNudgeLocked() {
	c.generation++
	if c.nudgeTimer != nil {
		c.nudgeTimer.Stop()
		c.nudgeTimer = nil
	}
}
