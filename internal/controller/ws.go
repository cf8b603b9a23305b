package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/connection"
	"github.com/sharetube/syncwatch/internal/service/room"
	"github.com/sharetube/syncwatch/pkg/ctxlogger"
	"golang.org/x/time/rate"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	client := connection.NewClient(uuid.NewString(), conn, c.cfg.QueueSize)
	if err := c.connRepo.Add(client); err != nil {
		c.logger.WarnContext(r.Context(), "failed to add connection", "error", err)
		conn.Close()
		return
	}
	c.metrics.ConnectionOpened()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctx = ctxlogger.AppendCtx(ctx, slog.String("connection_id", client.Id))
	ctx = context.WithValue(ctx, connectionIdCtxKey, client.Id)
	ctx = context.WithValue(ctx, messageLimiterCtxKey, rate.NewLimiter(rate.Limit(c.cfg.MessageRate), c.cfg.MessageBurst))
	defer c.disconnect(ctx, client)

	c.logger.InfoContext(ctx, "websocket connected")

	go func() {
		if err := client.WritePump(ctx, c.cfg.PingInterval, c.cfg.WriteTimeout); err != nil {
			c.logger.DebugContext(ctx, "write pump stopped", "error", err)
		}
		client.Close()
	}()

	if err := c.connRepo.Send(ctx, []string{client.Id}, &domain.Message{
		Type:    domain.EventConnected,
		Payload: domain.ConnectedPayload{ConnectionId: client.Id},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to send connected", "error", err)
		return
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

// disconnect leaves the current room and forgets the connection.
func (c controller) disconnect(ctx context.Context, client *connection.Client) {
	ctx = context.WithoutCancel(ctx)

	if err := c.leaveRoom(ctx, client); err != nil {
		c.logger.InfoContext(ctx, "failed to leave room", "error", err)
	}

	if err := c.connRepo.Remove(client.Id); err != nil {
		c.logger.InfoContext(ctx, "failed to remove connection", "error", err)
	}
	c.metrics.ConnectionClosed()

	c.logger.InfoContext(ctx, "websocket disconnected")
}

func (c controller) leaveRoom(ctx context.Context, client *connection.Client) error {
	roomId, _ := client.Room()
	if roomId == "" {
		return nil
	}
	client.SetRoom("", "")

	_, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		ConnectionId: client.Id,
		RoomId:       roomId,
	})
	return err
}
