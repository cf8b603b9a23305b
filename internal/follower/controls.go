package follower

import (
	"context"

	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/pkg/optional"
)

type controlPayload struct {
	RoomId   string                  `json:"room_id"`
	Action   domain.ControlAction    `json:"action"`
	Position optional.Field[float64] `json:"position"`
	Rate     optional.Field[float64] `json:"rate"`
}

// Local controls act on the widget first and then send the intent. The server drops intents
// from non-hosts, in which case the next snapshot reverts the widget.

func (f *Follower) Play(ctx context.Context) error {
	if err := f.widget.Play(); err != nil {
		f.logger.DebugContext(ctx, "failed to play widget", "error", err)
	}

	return f.sendControl(domain.ActionPlay, f.widgetPosition(ctx), optional.Field[float64]{})
}

func (f *Follower) Pause(ctx context.Context) error {
	if err := f.widget.Pause(); err != nil {
		f.logger.DebugContext(ctx, "failed to pause widget", "error", err)
	}

	return f.sendControl(domain.ActionPause, f.widgetPosition(ctx), optional.Field[float64]{})
}

func (f *Follower) Seek(ctx context.Context, seconds float64) error {
	if err := f.widget.SeekTo(seconds); err != nil {
		f.logger.DebugContext(ctx, "failed to seek widget", "error", err)
	}

	return f.sendControl(domain.ActionSeek, optional.Of(seconds), optional.Field[float64]{})
}

func (f *Follower) SetRate(ctx context.Context, rate float64) error {
	if err := f.widget.SetPlaybackRate(rate); err != nil {
		f.logger.DebugContext(ctx, "failed to set widget rate", "error", err)
	}

	return f.sendControl(domain.ActionRate, optional.Field[float64]{}, optional.Of(rate))
}

func (f *Follower) LoadVideo(videoRef string) error {
	f.corrector.MarkLocalAction()
	return f.send(domain.EventLoadVideo, map[string]string{
		"room_id":   f.cfg.RoomId,
		"video_ref": videoRef,
	})
}

func (f *Follower) RequestHost() error {
	return f.send(domain.EventRequestHost, map[string]string{
		"room_id": f.cfg.RoomId,
	})
}

// OnWidgetStateChange forwards a play state change made directly on the widget.
// Only the host publishes it.
func (f *Follower) OnWidgetStateChange(ctx context.Context) error {
	if !f.Status().IsHost {
		return nil
	}

	playing, err := f.widget.IsPlaying()
	if err != nil {
		f.logger.DebugContext(ctx, "failed to read widget state", "error", err)
		return nil
	}

	action := domain.ActionPause
	if playing {
		action = domain.ActionPlay
	}

	return f.sendControl(action, f.widgetPosition(ctx), optional.Field[float64]{})
}

func (f *Follower) widgetPosition(ctx context.Context) optional.Field[float64] {
	pos, err := f.widget.CurrentTime()
	if err != nil {
		f.logger.DebugContext(ctx, "failed to read widget position", "error", err)
		return optional.Field[float64]{}
	}

	return optional.Of(pos)
}

func (f *Follower) sendControl(action domain.ControlAction, position, rate optional.Field[float64]) error {
	f.corrector.MarkLocalAction()
	return f.send(domain.EventControl, controlPayload{
		RoomId:   f.cfg.RoomId,
		Action:   action,
		Position: position,
		Rate:     rate,
	})
}
