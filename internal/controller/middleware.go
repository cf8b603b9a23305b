package controller

import (
	"log/slog"
	"net/http"

	"github.com/sharetube/syncwatch/pkg/ctxlogger"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", c.generateTimeBasedId()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

func (c controller) rateLimitMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.ipLimiters.getLimiter(clientIP(r)).Allow() {
			c.logger.DebugContext(r.Context(), "rate limit exceeded", "remote_addr", r.RemoteAddr)
			writeJSON(w, http.StatusTooManyRequests, envelope{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
