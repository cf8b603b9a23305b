package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/service/room"
	"github.com/sharetube/syncwatch/pkg/ctxlogger"
	"github.com/sharetube/syncwatch/pkg/optional"
	"github.com/sharetube/syncwatch/pkg/wsrouter"
)

type JoinRoomInput struct {
	RoomId      string `json:"room_id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=64"`
}

func (c controller) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input JoinRoomInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	connectionId := c.getConnectionIdFromCtx(ctx)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", input.RoomId))

	client, err := c.connRepo.Get(connectionId)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}

	if current, _ := client.Room(); current != "" && current != input.RoomId {
		if err := c.leaveRoom(ctx, client); err != nil {
			c.logger.InfoContext(ctx, "failed to leave previous room", "previous_room_id", current, "error", err)
		}
	}

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnectionId: connectionId,
		RoomId:       input.RoomId,
		DisplayName:  input.DisplayName,
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	client.SetRoom(input.RoomId, input.DisplayName)

	c.logger.InfoContext(ctx, "joined room", "created", joinRoomResp.Created, "members", len(joinRoomResp.Room.Members))
	return nil
}

type LoadVideoInput struct {
	RoomId   string `json:"room_id" validate:"required,max=64"`
	VideoRef string `json:"video_ref" validate:"max=2048"`
}

func (c controller) handleLoadVideo(ctx context.Context, _ *websocket.Conn, input LoadVideoInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	if _, err := c.roomService.LoadVideo(ctx, &room.LoadVideoParams{
		ConnectionId: c.getConnectionIdFromCtx(ctx),
		RoomId:       input.RoomId,
		VideoRef:     input.VideoRef,
	}); err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	return nil
}

type ControlInput struct {
	RoomId   string                  `json:"room_id" validate:"required,max=64"`
	Action   domain.ControlAction    `json:"action" validate:"required,oneof=play pause seek rate"`
	Position optional.Field[float64] `json:"position"`
	Rate     optional.Field[float64] `json:"rate"`
}

func (c controller) handleControl(ctx context.Context, _ *websocket.Conn, input ControlInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	if _, err := c.roomService.ApplyControl(ctx, &room.ApplyControlParams{
		ConnectionId: c.getConnectionIdFromCtx(ctx),
		RoomId:       input.RoomId,
		Intent: domain.ControlIntent{
			Action:   input.Action,
			Position: input.Position,
			Rate:     input.Rate,
		},
	}); err != nil {
		return fmt.Errorf("failed to apply control: %w", err)
	}

	return nil
}

type RequestHostInput struct {
	RoomId string `json:"room_id" validate:"required,max=64"`
}

func (c controller) handleRequestHost(ctx context.Context, _ *websocket.Conn, input RequestHostInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	if err := c.roomService.RequestHost(ctx, &room.RequestHostParams{
		ConnectionId: c.getConnectionIdFromCtx(ctx),
		RoomId:       input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to request host: %w", err)
	}

	return nil
}

// handleTimePing answers a clock probe. The client timestamp is echoed back untouched.
func (c controller) handleTimePing(ctx context.Context, _ *websocket.Conn, localSendMs json.Number) error {
	if localSendMs == "" {
		return wsrouter.ErrMalformedPayload
	}

	c.metrics.TimeProbe()
	return c.connRepo.Send(ctx, []string{c.getConnectionIdFromCtx(ctx)}, &domain.Message{
		Type: domain.EventTimePong,
		Payload: domain.TimePongPayload{
			ServerNowMs: c.clock.Now().UnixMilli(),
			LocalSendMs: localSendMs,
		},
	})
}
