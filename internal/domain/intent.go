package domain

import (
	"errors"

	"github.com/sharetube/syncwatch/pkg/optional"
)

var ErrInvalidIntent = errors.New("invalid control intent")

type ControlAction string

const (
	ActionPlay  ControlAction = "play"
	ActionPause ControlAction = "pause"
	ActionSeek  ControlAction = "seek"
	ActionRate  ControlAction = "rate"
)

func (a ControlAction) Valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionSeek, ActionRate:
		return true
	}

	return false
}

type ControlIntent struct {
	Action   ControlAction
	Position optional.Field[float64]
	Rate     optional.Field[float64]
}

func (i ControlIntent) position() (float64, bool) {
	if !i.Position.Defined || !IsValidPosition(i.Position.Value) {
		return 0, false
	}

	return i.Position.Value, true
}

// Apply returns the snapshot that results from the intent, stamped with nowMs.
func (s PlaybackSnapshot) Apply(intent ControlIntent, nowMs int64) (PlaybackSnapshot, error) {
	next := s
	switch intent.Action {
	case ActionPlay, ActionPause:
		next.IsPlaying = intent.Action == ActionPlay
		if pos, ok := intent.position(); ok {
			next.PositionSeconds = pos
		}
	case ActionSeek:
		// an unusable position keeps the current one but still restamps the snapshot
		if pos, ok := intent.position(); ok {
			next.PositionSeconds = pos
		}
	case ActionRate:
		next.Rate = DefaultRate
		if intent.Rate.Defined && IsValidRate(intent.Rate.Value) {
			next.Rate = intent.Rate.Value
		}
	default:
		return s, ErrInvalidIntent
	}

	next.UpdatedAtServerMs = nowMs
	return next, nil
}
