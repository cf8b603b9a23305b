package follower

import (
	"math"
	"sync"

	"github.com/jonboulle/clockwork"
)

const (
	sampleCapacity = 10
	smoothing      = 0.3
)

type ClockSample struct {
	RoundTripMs int64
	OffsetMs    int64
}

// ClockOffsetEstimator tracks the offset between the local clock and the server clock
// from time:ping round trips.
type ClockOffsetEstimator struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	samples  [sampleCapacity]ClockSample
	count    int
	next     int
	offsetMs float64
	rttMs    float64
	seeded   bool
}

func NewClockOffsetEstimator(clock clockwork.Clock) *ClockOffsetEstimator {
	return &ClockOffsetEstimator{clock: clock}
}

func (e *ClockOffsetEstimator) LocalNowMs() int64 {
	return e.clock.Now().UnixMilli()
}

// Observe records a completed probe. Samples with a negative round trip are discarded.
func (e *ClockOffsetEstimator) Observe(serverNowMs, localSendMs, localRecvMs int64) bool {
	roundTripMs := localRecvMs - localSendMs
	if roundTripMs < 0 {
		return false
	}

	offset := float64(serverNowMs) - (float64(localSendMs) + float64(roundTripMs)/2)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples[e.next] = ClockSample{
		RoundTripMs: roundTripMs,
		OffsetMs:    int64(math.Round(offset)),
	}
	e.next = (e.next + 1) % sampleCapacity
	e.count = min(e.count+1, sampleCapacity)

	best := e.samples[0]
	for _, s := range e.samples[1:e.count] {
		if s.RoundTripMs < best.RoundTripMs {
			best = s
		}
	}

	if !e.seeded {
		e.offsetMs = float64(best.OffsetMs)
		e.rttMs = float64(best.RoundTripMs)
		e.seeded = true
		return true
	}

	e.offsetMs = (1-smoothing)*e.offsetMs + smoothing*float64(best.OffsetMs)
	e.rttMs = (1-smoothing)*e.rttMs + smoothing*float64(best.RoundTripMs)
	return true
}

// ServerNowMs is the local time shifted by the current offset estimate.
func (e *ClockOffsetEstimator) ServerNowMs() int64 {
	e.mu.Lock()
	offset := e.offsetMs
	e.mu.Unlock()

	return e.LocalNowMs() + int64(math.Round(offset))
}

func (e *ClockOffsetEstimator) OffsetMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.offsetMs
}

func (e *ClockOffsetEstimator) RoundTripMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rttMs
}

func (e *ClockOffsetEstimator) Samples() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.count
}
