package follower

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotReady = errors.New("player not ready")

// fakeWidget reports a fixed position and records every mutating call.
type fakeWidget struct {
	mu       sync.Mutex
	position float64
	playing  bool
	rate     float64
	failRead bool
	calls    []string
}

func newFakeWidget(position float64, playing bool) *fakeWidget {
	return &fakeWidget{position: position, playing: playing, rate: 1}
}

func (w *fakeWidget) record(format string, args ...any) {
	w.calls = append(w.calls, fmt.Sprintf(format, args...))
}

func (w *fakeWidget) CurrentTime() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRead {
		return 0, errNotReady
	}
	return w.position, nil
}

func (w *fakeWidget) SeekTo(seconds float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("seek:%.3f", seconds)
	w.position = seconds
	return nil
}

func (w *fakeWidget) Play() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("play")
	w.playing = true
	return nil
}

func (w *fakeWidget) Pause() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("pause")
	w.playing = false
	return nil
}

func (w *fakeWidget) IsPlaying() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRead {
		return false, errNotReady
	}
	return w.playing, nil
}

func (w *fakeWidget) PlaybackRate() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRead {
		return 0, errNotReady
	}
	return w.rate, nil
}

func (w *fakeWidget) SetPlaybackRate(rate float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("rate:%.2f", rate)
	w.rate = rate
	return nil
}

func (w *fakeWidget) setPosition(p float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.position = p
}

func (w *fakeWidget) getRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rate
}

func (w *fakeWidget) takeCalls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	calls := w.calls
	w.calls = nil
	return calls
}

func (w *fakeWidget) count(prefix string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// clockServer reports the fake clock as server time, i.e. a zero offset.
type clockServer struct {
	clock clockwork.Clock
}

func (s clockServer) ServerNowMs() int64 {
	return s.clock.Now().UnixMilli()
}

func newTestCorrector(w Widget) (*DriftCorrector, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDriftCorrector(w, clockServer{clock}, DefaultCorrectorConfig(), clock, logger), clock
}

func playingAt(clock clockwork.Clock, position float64) domain.PlaybackSnapshot {
	return domain.PlaybackSnapshot{
		IsPlaying:         true,
		PositionSeconds:   position,
		UpdatedAtServerMs: clock.Now().UnixMilli(),
		Rate:              1,
	}
}

func TestReconcile_HardSeekCooldown(t *testing.T) {
	w := newFakeWidget(10, true)
	c, clock := newTestCorrector(w)

	d := c.Reconcile(playingAt(clock, 13))
	assert.Equal(t, CorrectionHardSeek, d.Correction)
	assert.InDelta(t, 3.0, d.Drift, 1e-9)

	clock.Advance(time.Second)
	w.setPosition(10.5)
	d = c.Reconcile(playingAt(clock, 13))
	assert.InDelta(t, 2.5, d.Drift, 1e-9)
	assert.NotEqual(t, CorrectionHardSeek, d.Correction)

	assert.Equal(t, 1, w.count("seek:"))
}

func TestReconcile_HardSeekAfterCooldown(t *testing.T) {
	w := newFakeWidget(0, false)
	c, clock := newTestCorrector(w)

	paused := func(pos float64) domain.PlaybackSnapshot {
		return domain.PlaybackSnapshot{PositionSeconds: pos, UpdatedAtServerMs: clock.Now().UnixMilli(), Rate: 1}
	}

	assert.Equal(t, CorrectionHardSeek, c.Reconcile(paused(30)).Correction)
	assert.Equal(t, []string{"seek:30.000", "rate:1.00"}, w.takeCalls())

	w.setPosition(0)
	clock.Advance(4 * time.Second)
	assert.Equal(t, CorrectionHardSeek, c.Reconcile(paused(60)).Correction)
	assert.Equal(t, 1, w.count("seek:60"))
}

func TestReconcile_NudgeConvergence(t *testing.T) {
	w := newFakeWidget(9.5, true)
	c, clock := newTestCorrector(w)

	d := c.Reconcile(playingAt(clock, 10))
	require.Equal(t, CorrectionNudge, d.Correction)
	assert.InDelta(t, 1.02, d.Rate, 1e-9)
	assert.InDelta(t, 1.02, w.getRate(), 1e-9)

	clock.Advance(1499 * time.Millisecond)
	assert.InDelta(t, 1.02, w.getRate(), 1e-9)

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return w.getRate() == 1 }, time.Second, 5*time.Millisecond)
}

func TestReconcile_NudgeSlowsLeadingFollower(t *testing.T) {
	w := newFakeWidget(10.5, true)
	c, clock := newTestCorrector(w)

	d := c.Reconcile(playingAt(clock, 10))
	require.Equal(t, CorrectionNudge, d.Correction)
	assert.InDelta(t, 0.98, w.getRate(), 1e-9)
}

func TestReconcile_NewDecisionCancelsPendingRestore(t *testing.T) {
	w := newFakeWidget(9.5, true)
	c, clock := newTestCorrector(w)

	require.Equal(t, CorrectionNudge, c.Reconcile(playingAt(clock, 10)).Correction)

	clock.Advance(time.Second)
	w.setPosition(11.5)
	// back in sync with a faster target rate
	s := playingAt(clock, 11.5)
	s.Rate = 1.5
	assert.Equal(t, CorrectionNone, c.Reconcile(s).Correction)
	assert.Equal(t, 1.5, w.getRate())

	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1.5, w.getRate())
}

func TestReconcile_Idempotent(t *testing.T) {
	w := newFakeWidget(0, false)
	c, clock := newTestCorrector(w)

	s := playingAt(clock, 42)
	first := c.Reconcile(s)
	assert.Equal(t, SkipNone, first.Skipped)
	assert.NotEmpty(t, w.takeCalls())

	second := c.Reconcile(s)
	assert.Equal(t, SkipDuplicate, second.Skipped)
	assert.Empty(t, w.takeCalls())
}

func TestReconcile_AlignsPlayStateAndRate(t *testing.T) {
	w := newFakeWidget(5, true)
	c, clock := newTestCorrector(w)

	s := domain.PlaybackSnapshot{PositionSeconds: 5, UpdatedAtServerMs: clock.Now().UnixMilli(), Rate: 1.25}
	d := c.Reconcile(s)
	assert.Equal(t, CorrectionNone, d.Correction)
	assert.Equal(t, []string{"pause", "rate:1.25"}, w.takeCalls())
}

func TestReconcile_SelfSuppression(t *testing.T) {
	w := newFakeWidget(0, false)
	c, clock := newTestCorrector(w)

	c.SetHost(true)
	assert.Equal(t, SkipHost, c.Reconcile(playingAt(clock, 100)).Skipped)
	c.SetHost(false)

	c.MarkLocalAction()
	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, SkipIgnoreWindow, c.Reconcile(playingAt(clock, 100)).Skipped)
	assert.Empty(t, w.takeCalls())

	clock.Advance(time.Millisecond)
	assert.Equal(t, SkipNone, c.Reconcile(playingAt(clock, 100)).Skipped)
	assert.NotEmpty(t, w.takeCalls())
}

func TestReconcile_WidgetNotReady(t *testing.T) {
	w := newFakeWidget(0, false)
	w.failRead = true
	c, clock := newTestCorrector(w)

	d := c.Reconcile(playingAt(clock, 100))
	assert.Equal(t, CorrectionNone, d.Correction)
	assert.Equal(t, []string{"play", "rate:1.00"}, w.takeCalls())
}

func TestReconcile_ResetKeepsCooldown(t *testing.T) {
	w := newFakeWidget(0, false)
	c, clock := newTestCorrector(w)

	s := domain.PlaybackSnapshot{PositionSeconds: 20, UpdatedAtServerMs: clock.Now().UnixMilli(), Rate: 1}
	assert.Equal(t, CorrectionHardSeek, c.Reconcile(s).Correction)

	c.Reset()
	w.setPosition(0)
	clock.Advance(time.Second)
	// same snapshot is no longer a duplicate, but the seek is still cooling down
	d := c.Reconcile(s)
	assert.Equal(t, SkipNone, d.Skipped)
	assert.Equal(t, CorrectionNone, d.Correction)
}
