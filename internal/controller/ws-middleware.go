package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	roomRepo "github.com/sharetube/syncwatch/internal/repository/room"
	"github.com/sharetube/syncwatch/internal/service/room"
	"github.com/sharetube/syncwatch/pkg/ctxlogger"
	"github.com/sharetube/syncwatch/pkg/validator"
	"github.com/sharetube/syncwatch/pkg/wsrouter"
)

var errRateLimited = errors.New("message rate limit exceeded")

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.MessageType(ctx)))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, conn, payload)
			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
			)

			return err
		}
	}
}

func (c controller) rateLimitWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			if limiter := c.getMessageLimiterFromCtx(ctx); limiter != nil && !limiter.Allow() {
				return errRateLimited
			}

			return next(ctx, conn, payload)
		}
	}
}

// handleWSError logs a rejected message. Nothing is written back to the sender.
func (c controller) handleWSError(ctx context.Context, err error) {
	var validationErrs validator.Errors

	reason := "error"
	switch {
	case errors.Is(err, wsrouter.ErrMalformedMessage), errors.Is(err, wsrouter.ErrMalformedPayload):
		reason = "malformed"
	case errors.As(err, &validationErrs):
		reason = "invalid"
	case errors.Is(err, wsrouter.ErrUnknownType):
		reason = "unknown_type"
	case errors.Is(err, errRateLimited):
		reason = "rate_limited"
	case errors.Is(err, room.ErrPermissionDenied), errors.Is(err, room.ErrNotMember):
		reason = "unauthorized"
	case errors.Is(err, roomRepo.ErrRoomNotFound):
		reason = "unknown_room"
	case errors.Is(err, room.ErrInvalidIntent):
		reason = "invalid"
	case errors.Is(err, room.ErrRoomFull):
		reason = "room_full"
	}

	c.metrics.Dropped(reason)
	if reason == "error" {
		c.logger.InfoContext(ctx, "failed to handle websocket message", "error", err)
		return
	}
	c.logger.DebugContext(ctx, "websocket message dropped", "reason", reason, "error", err)
}
