package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncwatch/internal/app"
	"github.com/sharetube/syncwatch/internal/follower"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "FOLLOWER_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "ws://localhost/api/v1/ws",
	}
	roomId = configVar[string]{
		envKey:       "FOLLOWER_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
	}
	displayName = configVar[string]{
		envKey:       "FOLLOWER_DISPLAY_NAME",
		flagKey:      "display-name",
		defaultValue: "follower",
	}
	logLevel = configVar[string]{
		envKey:       "FOLLOWER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	statusInterval = configVar[time.Duration]{
		envKey:       "FOLLOWER_STATUS_INTERVAL",
		flagKey:      "status-interval",
		defaultValue: 10 * time.Second,
	}
)

func main() {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Websocket endpoint of the server")
	pflag.String(roomId.flagKey, roomId.defaultValue, "Room to join")
	pflag.String(displayName.flagKey, displayName.defaultValue, "Name shown to other members")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Duration(statusInterval.flagKey, statusInterval.defaultValue, "Interval between status log lines")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)
	viper.BindEnv(serverURL.flagKey, serverURL.envKey)
	viper.BindEnv(roomId.flagKey, roomId.envKey)
	viper.BindEnv(displayName.flagKey, displayName.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(statusInterval.flagKey, statusInterval.envKey)

	if viper.GetString(roomId.flagKey) == "" {
		log.Fatal("room id is required")
	}

	logger, err := app.NewLogger(viper.GetString(logLevel.flagKey))
	if err != nil {
		log.Fatal(err)
	}

	cfg := follower.DefaultConfig()
	cfg.ServerURL = viper.GetString(serverURL.flagKey)
	cfg.RoomId = viper.GetString(roomId.flagKey)
	cfg.DisplayName = viper.GetString(displayName.flagKey)

	clock := clockwork.NewRealClock()
	f := follower.New(cfg, follower.NewVirtualPlayer(clock), clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(viper.GetDuration(statusInterval.flagKey))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := f.Status()
				logger.InfoContext(ctx, "status",
					"connection_id", s.ConnectionId,
					"room_id", s.RoomId,
					"is_host", s.IsHost,
					"video_ref", s.VideoRef,
					"offset_ms", s.OffsetMs,
					"rtt_ms", s.RoundTripMs,
					"drift_s", s.Drift,
				)
			}
		}
	}()

	if err := f.Run(ctx); err != nil && ctx.Err() == nil {
		logger.ErrorContext(ctx, "follower stopped", "error", err)
		os.Exit(1)
	}
}
