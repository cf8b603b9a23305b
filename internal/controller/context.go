package controller

import (
	"context"

	"golang.org/x/time/rate"
)

type contextKey int

const (
	connectionIdCtxKey contextKey = iota
	messageLimiterCtxKey
)

func (c controller) getConnectionIdFromCtx(ctx context.Context) string {
	connectionId, ok := ctx.Value(connectionIdCtxKey).(string)
	if !ok {
		return ""
	}

	return connectionId
}

func (c controller) getMessageLimiterFromCtx(ctx context.Context) *rate.Limiter {
	limiter, _ := ctx.Value(messageLimiterCtxKey).(*rate.Limiter)
	return limiter
}
