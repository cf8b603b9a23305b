package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/internal/repository/connection"
	roomRepo "github.com/sharetube/syncwatch/internal/repository/room"
	"github.com/sharetube/syncwatch/internal/service/room"
	"github.com/sharetube/syncwatch/pkg/validator"
	"github.com/sharetube/syncwatch/pkg/wsrouter"
	"github.com/sharetube/syncwatch/pkg/ytvideodata"
)

type iRoomService interface {
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LoadVideo(context.Context, *room.LoadVideoParams) (roomRepo.Room, error)
	ApplyControl(context.Context, *room.ApplyControlParams) (domain.PlaybackSnapshot, error)
	RequestHost(context.Context, *room.RequestHostParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
}

type iConnRepo interface {
	Add(*connection.Client) error
	Remove(string) error
	Get(string) (*connection.Client, error)
	Send(ctx context.Context, ids []string, msg any) error
}

type iVideoData interface {
	Get(ctx context.Context, videoId string) (*ytvideodata.VideoData, error)
}

type iMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	TimeProbe()
	Dropped(reason string)
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	LimiterIdleTTL time.Duration
	TrustProxy     bool
	MessageRate    float64
	MessageBurst   int
	QueueSize      int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RateLimitRPS:   2,
		RateLimitBurst: 120,
		LimiterIdleTTL: 10 * time.Minute,
		MessageRate:    20,
		MessageBurst:   40,
		QueueSize:      64,
		MaxMessageSize: 8 << 10,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

type controller struct {
	roomService    iRoomService
	connRepo       iConnRepo
	videoData      iVideoData
	metrics        iMetrics
	metricsHandler http.Handler
	clock          clockwork.Clock
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	wsmux          *wsrouter.WSRouter
	ipLimiters     *rateLimiterStore
	cfg            Config
	logger         *slog.Logger
}

func NewController(
	roomService iRoomService,
	connRepo iConnRepo,
	videoData iVideoData,
	metrics iMetrics,
	metricsHandler http.Handler,
	clock clockwork.Clock,
	cfg Config,
	logger *slog.Logger,
) *controller {
	c := &controller{
		roomService:    roomService,
		connRepo:       connRepo,
		videoData:      videoData,
		metrics:        metrics,
		metricsHandler: metricsHandler,
		clock:          clock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:   validator.New(),
		ipLimiters: newRateLimiterStore(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.LimiterIdleTTL, clock),
		cfg:        cfg,
		logger:     logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
