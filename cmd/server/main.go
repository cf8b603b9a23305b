package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncwatch/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 50,
	}
	store = configVar[string]{
		envKey:       "SERVER_STORE",
		flagKey:      "store",
		defaultValue: app.StoreMemory,
	}
	roomTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_TTL",
		flagKey:      "room-ttl",
		defaultValue: 24 * time.Hour,
	}
	rateLimitRPS = configVar[float64]{
		envKey:       "SERVER_RATE_LIMIT_RPS",
		flagKey:      "rate-limit-rps",
		defaultValue: 2,
	}
	rateLimitBurst = configVar[int]{
		envKey:       "SERVER_RATE_LIMIT_BURST",
		flagKey:      "rate-limit-burst",
		defaultValue: 120,
	}
	trustProxy = configVar[bool]{
		envKey:       "SERVER_TRUST_PROXY",
		flagKey:      "trust-proxy",
		defaultValue: false,
	}
	messageRate = configVar[float64]{
		envKey:       "SERVER_MESSAGE_RATE",
		flagKey:      "message-rate",
		defaultValue: 20,
	}
	messageBurst = configVar[int]{
		envKey:       "SERVER_MESSAGE_BURST",
		flagKey:      "message-burst",
		defaultValue: 40,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in the room")
	pflag.String(store.flagKey, store.defaultValue, "Room store: memory or redis")
	pflag.Duration(roomTTL.flagKey, roomTTL.defaultValue, "Idle room expiration in redis")
	pflag.Float64(rateLimitRPS.flagKey, rateLimitRPS.defaultValue, "HTTP requests per second per ip")
	pflag.Int(rateLimitBurst.flagKey, rateLimitBurst.defaultValue, "HTTP request burst per ip")
	pflag.Bool(trustProxy.flagKey, trustProxy.defaultValue, "Take the client ip from X-Forwarded-For / X-Real-IP (only behind a trusted proxy)")
	pflag.Float64(messageRate.flagKey, messageRate.defaultValue, "Websocket messages per second per connection")
	pflag.Int(messageBurst.flagKey, messageBurst.defaultValue, "Websocket message burst per connection")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(port)
	bind(host)
	bind(logLevel)
	bind(membersLimit)
	bind(store)
	bind(roomTTL)
	bind(rateLimitRPS)
	bind(rateLimitBurst)
	bind(trustProxy)
	bind(messageRate)
	bind(messageBurst)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)

	return &app.AppConfig{
		Host:           viper.GetString(host.flagKey),
		Port:           viper.GetInt(port.flagKey),
		LogLevel:       viper.GetString(logLevel.flagKey),
		MembersLimit:   viper.GetInt(membersLimit.flagKey),
		Store:          viper.GetString(store.flagKey),
		RoomTTL:        viper.GetDuration(roomTTL.flagKey),
		RateLimitRPS:   viper.GetFloat64(rateLimitRPS.flagKey),
		RateLimitBurst: viper.GetInt(rateLimitBurst.flagKey),
		TrustProxy:     viper.GetBool(trustProxy.flagKey),
		MessageRate:    viper.GetFloat64(messageRate.flagKey),
		MessageBurst:   viper.GetInt(messageBurst.flagKey),
		RedisPort:      viper.GetInt(redisPort.flagKey),
		RedisHost:      viper.GetString(redisHost.flagKey),
		RedisPassword:  viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
