package domain

import "math"

const DefaultRate = 1.0

// PlaybackSnapshot is the authoritative description of what a room is playing.
// It is only ever replaced as a whole.
type PlaybackSnapshot struct {
	IsPlaying         bool    `json:"is_playing"`
	PositionSeconds   float64 `json:"position_seconds"`
	UpdatedAtServerMs int64   `json:"updated_at_server_ms"`
	Rate              float64 `json:"rate"`
}

// NewSnapshot returns a paused snapshot at position 0 and normal rate.
func NewSnapshot(nowMs int64) PlaybackSnapshot {
	return PlaybackSnapshot{
		IsPlaying:         false,
		PositionSeconds:   0,
		UpdatedAtServerMs: nowMs,
		Rate:              DefaultRate,
	}
}

// ExpectedPosition projects the snapshot position to serverNowMs.
func (s PlaybackSnapshot) ExpectedPosition(serverNowMs int64) float64 {
	if !s.IsPlaying {
		return s.PositionSeconds
	}

	elapsed := math.Max(0, float64(serverNowMs-s.UpdatedAtServerMs)/1000)
	return s.PositionSeconds + s.Rate*elapsed
}

// SameAs reports whether two snapshots describe the same state, comparing positions
// at millisecond granularity.
func (s PlaybackSnapshot) SameAs(other PlaybackSnapshot) bool {
	return s.IsPlaying == other.IsPlaying &&
		math.Round(s.PositionSeconds*1000) == math.Round(other.PositionSeconds*1000) &&
		s.UpdatedAtServerMs == other.UpdatedAtServerMs &&
		s.Rate == other.Rate
}

func IsValidPosition(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func IsValidRate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
