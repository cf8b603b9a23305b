package follower

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrInvalidValue = errors.New("invalid value")

// VirtualPlayer is a headless Widget whose position advances with its rate on a clock.
type VirtualPlayer struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	position float64
	since    time.Time
	playing  bool
	rate     float64
	videoRef string
}

func NewVirtualPlayer(clock clockwork.Clock) *VirtualPlayer {
	return &VirtualPlayer{
		clock: clock,
		since: clock.Now(),
		rate:  1,
	}
}

// rebase folds the elapsed playback into position. Callers hold mu.
func (p *VirtualPlayer) rebase() {
	now := p.clock.Now()
	if p.playing {
		p.position += now.Sub(p.since).Seconds() * p.rate
	}
	p.since = now
}

func (p *VirtualPlayer) CurrentTime() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	return p.position, nil
}

func (p *VirtualPlayer) SeekTo(seconds float64) error {
	if seconds < 0 {
		return ErrInvalidValue
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	p.position = seconds
	return nil
}

func (p *VirtualPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	p.playing = true
	return nil
}

func (p *VirtualPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	p.playing = false
	return nil
}

func (p *VirtualPlayer) IsPlaying() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playing, nil
}

func (p *VirtualPlayer) PlaybackRate() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rate, nil
}

func (p *VirtualPlayer) SetPlaybackRate(rate float64) error {
	if rate <= 0 {
		return ErrInvalidValue
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rebase()
	p.rate = rate
	return nil
}

func (p *VirtualPlayer) LoadVideo(videoRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.videoRef = videoRef
	p.position = 0
	p.playing = false
	p.since = p.clock.Now()
	return nil
}

func (p *VirtualPlayer) VideoRef() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.videoRef
}
