package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sharetube/syncwatch/internal/controller"
	"github.com/sharetube/syncwatch/internal/metrics"
	"github.com/sharetube/syncwatch/internal/repository/connection/inmemory"
	roomInmemory "github.com/sharetube/syncwatch/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/syncwatch/internal/repository/room/redis"
	"github.com/sharetube/syncwatch/internal/service/room"
	"github.com/sharetube/syncwatch/pkg/ctxlogger"
	"github.com/sharetube/syncwatch/pkg/redisclient"
	"github.com/sharetube/syncwatch/pkg/ytvideodata"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type AppConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	LogLevel       string        `json:"log_level"`
	MembersLimit   int           `json:"members_limit"`
	Store          string        `json:"store"`
	RoomTTL        time.Duration `json:"room_ttl"`
	RateLimitRPS   float64       `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	TrustProxy     bool          `json:"trust_proxy"`
	MessageRate    float64       `json:"message_rate"`
	MessageBurst   int           `json:"message_burst"`
	RedisPort      int           `json:"redis_port"`
	RedisHost      string        `json:"redis_host"`
	RedisPassword  string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.Store != StoreMemory && cfg.Store != StoreRedis {
		return fmt.Errorf("unknown store %q, expected %q or %q", cfg.Store, StoreMemory, StoreRedis)
	}
	if cfg.Store == StoreRedis && cfg.RoomTTL <= 0 {
		return fmt.Errorf("room ttl must be greater than 0")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be greater than 0")
	}
	if cfg.MessageRate <= 0 || cfg.MessageBurst < 1 {
		return fmt.Errorf("message rate must be greater than 0")
	}
	return nil
}

func NewLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type App struct {
	handler http.Handler
	closers []func() error
}

// New wires the room store, services and http handlers.
func New(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{}
	clock := clockwork.NewRealClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	var roomRepo room.RoomRepo
	switch cfg.Store {
	case StoreRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		roomRepo = roomRedis.NewRepo(rc, cfg.RoomTTL, logger)
	default:
		roomRepo = roomInmemory.NewRepo(logger)
	}

	connectionRepo := inmemory.NewRepo(logger)
	connectionRepo.OnOverflow(func(string) {
		collector.Dropped("overflow")
	})

	roomService := room.NewService(roomRepo, connectionRepo, collector, &room.Config{
		MembersLimit: cfg.MembersLimit,
	}, clock, logger)

	controllerCfg := controller.DefaultConfig()
	controllerCfg.RateLimitRPS = cfg.RateLimitRPS
	controllerCfg.RateLimitBurst = cfg.RateLimitBurst
	controllerCfg.TrustProxy = cfg.TrustProxy
	controllerCfg.MessageRate = cfg.MessageRate
	controllerCfg.MessageBurst = cfg.MessageBurst

	c := controller.NewController(
		roomService,
		connectionRepo,
		ytvideodata.New(ytvideodata.DefaultConfig()),
		collector,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		clock,
		controllerCfg,
		logger,
	)
	a.handler = c.GetMux()

	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.Handler()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
