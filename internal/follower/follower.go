package follower

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncwatch/internal/domain"
)

var ErrNotConnected = errors.New("not connected")

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost/api/v1/ws.
	ServerURL     string
	RoomId        string
	DisplayName   string
	InitialProbes int
	// ProbeSpacing separates the initial burst of probes.
	ProbeSpacing  time.Duration
	ProbeInterval time.Duration
	WriteTimeout  time.Duration
	Corrector     CorrectorConfig
}

func DefaultConfig() Config {
	return Config{
		InitialProbes: 3,
		ProbeSpacing:  100 * time.Millisecond,
		ProbeInterval: 5 * time.Second,
		WriteTimeout:  10 * time.Second,
		Corrector:     DefaultCorrectorConfig(),
	}
}

type Status struct {
	ConnectionId string
	RoomId       string
	IsHost       bool
	VideoRef     *string
	OffsetMs     float64
	RoundTripMs  float64
	// Drift is the last measured gap between expected and actual position in seconds.
	Drift float64
}

// Follower keeps a Widget in step with the playback state of one room.
type Follower struct {
	cfg       Config
	widget    Widget
	clock     clockwork.Clock
	estimator *ClockOffsetEstimator
	corrector *DriftCorrector
	logger    *slog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu           sync.RWMutex
	connectionId string
	hostId       *string
	videoRef     *string
	lastDecision Decision
}

func New(cfg Config, widget Widget, clock clockwork.Clock, logger *slog.Logger) *Follower {
	estimator := NewClockOffsetEstimator(clock)

	return &Follower{
		cfg:       cfg,
		widget:    widget,
		clock:     clock,
		estimator: estimator,
		corrector: NewDriftCorrector(widget, estimator, cfg.Corrector, clock, logger),
		logger:    logger,
	}
}

// Run connects to the server, joins the configured room and processes events until ctx is
// done or the connection fails.
func (f *Follower) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	f.writeMu.Lock()
	f.conn = conn
	f.writeMu.Unlock()
	defer func() {
		f.writeMu.Lock()
		f.conn = nil
		f.writeMu.Unlock()
	}()

	f.logger.InfoContext(ctx, "connected", "url", f.cfg.ServerURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go f.probeLoop(ctx)

	for {
		var msg domain.InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		f.handle(ctx, msg)
	}
}

func (f *Follower) probeLoop(ctx context.Context) {
	for i := 0; i < f.cfg.InitialProbes; i++ {
		f.probe(ctx)

		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(f.cfg.ProbeSpacing):
		}
	}

	ticker := f.clock.NewTicker(f.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			f.probe(ctx)
		}
	}
}

func (f *Follower) probe(ctx context.Context) {
	if err := f.send(domain.EventTimePing, f.estimator.LocalNowMs()); err != nil {
		f.logger.DebugContext(ctx, "failed to send probe", "error", err)
	}
}

func (f *Follower) send(msgType string, payload any) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if f.conn == nil {
		return ErrNotConnected
	}

	f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	return f.conn.WriteJSON(domain.Message{Type: msgType, Payload: payload})
}

func (f *Follower) handle(ctx context.Context, msg domain.InboundMessage) {
	var err error
	switch msg.Type {
	case domain.EventConnected:
		var payload domain.ConnectedPayload
		if err = json.Unmarshal(msg.Payload, &payload); err == nil {
			f.onConnected(ctx, payload)
		}
	case domain.EventRoomState:
		var payload domain.RoomStatePayload
		if err = json.Unmarshal(msg.Payload, &payload); err == nil {
			f.onRoomState(ctx, payload)
		}
	case domain.EventSync:
		var snapshot domain.PlaybackSnapshot
		if err = json.Unmarshal(msg.Payload, &snapshot); err == nil {
			f.reconcile(ctx, snapshot)
		}
	case domain.EventHostChanged:
		var payload domain.HostChangedPayload
		if err = json.Unmarshal(msg.Payload, &payload); err == nil {
			f.setHost(ctx, payload.HostId)
		}
	case domain.EventPeerJoin:
		var payload domain.PeerJoinPayload
		if err = json.Unmarshal(msg.Payload, &payload); err == nil {
			f.logger.InfoContext(ctx, "peer joined", "peer_id", payload.ConnectionId, "display_name", payload.DisplayName)
		}
	case domain.EventTimePong:
		f.onTimePong(ctx, msg.Payload)
	default:
		f.logger.DebugContext(ctx, "unknown message", "type", msg.Type)
	}

	if err != nil {
		f.logger.DebugContext(ctx, "malformed message", "type", msg.Type, "error", err)
	}
}

func (f *Follower) onConnected(ctx context.Context, payload domain.ConnectedPayload) {
	f.mu.Lock()
	f.connectionId = payload.ConnectionId
	f.mu.Unlock()

	if err := f.send(domain.EventJoinRoom, map[string]string{
		"room_id":      f.cfg.RoomId,
		"display_name": f.cfg.DisplayName,
	}); err != nil {
		f.logger.InfoContext(ctx, "failed to join room", "error", err)
	}
}

func (f *Follower) onRoomState(ctx context.Context, payload domain.RoomStatePayload) {
	f.mu.Lock()
	videoChanged := !equalRef(f.videoRef, payload.VideoRef)
	f.videoRef = payload.VideoRef
	f.mu.Unlock()

	if videoChanged {
		f.corrector.Reset()
		if loader, ok := f.widget.(VideoLoader); ok && payload.VideoRef != nil {
			if err := loader.LoadVideo(*payload.VideoRef); err != nil {
				f.logger.DebugContext(ctx, "failed to load video", "video_ref", *payload.VideoRef, "error", err)
			}
		}
		f.logger.InfoContext(ctx, "video changed", "video_ref", payload.VideoRef)
	}

	f.setHost(ctx, payload.HostId)
	f.reconcile(ctx, payload.Snapshot)
}

func (f *Follower) onTimePong(ctx context.Context, raw json.RawMessage) {
	var payload struct {
		ServerNowMs int64   `json:"server_now_ms"`
		LocalSendMs float64 `json:"local_send_ms"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		f.logger.DebugContext(ctx, "malformed time:pong", "error", err)
		return
	}

	f.estimator.Observe(payload.ServerNowMs, int64(payload.LocalSendMs), f.estimator.LocalNowMs())
}

func (f *Follower) setHost(ctx context.Context, hostId *string) {
	f.mu.Lock()
	f.hostId = hostId
	isHost := hostId != nil && *hostId == f.connectionId
	f.mu.Unlock()

	f.corrector.SetHost(isHost)
	f.logger.InfoContext(ctx, "host changed", "host_id", hostId, "is_host", isHost)
}

func (f *Follower) reconcile(ctx context.Context, snapshot domain.PlaybackSnapshot) {
	decision := f.corrector.Reconcile(snapshot)
	if decision.Skipped != SkipNone {
		f.logger.DebugContext(ctx, "snapshot skipped", "reason", decision.Skipped)
		return
	}

	f.mu.Lock()
	f.lastDecision = decision
	f.mu.Unlock()
}

func (f *Follower) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return Status{
		ConnectionId: f.connectionId,
		RoomId:       f.cfg.RoomId,
		IsHost:       f.hostId != nil && *f.hostId == f.connectionId,
		VideoRef:     f.videoRef,
		OffsetMs:     f.estimator.OffsetMs(),
		RoundTripMs:  f.estimator.RoundTripMs(),
		Drift:        f.lastDecision.Drift,
	}
}

func (f *Follower) Estimator() *ClockOffsetEstimator {
	return f.estimator
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
