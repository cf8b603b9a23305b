package follower

// Widget is the playback surface a follower drives. Any method may fail, for example
// while the underlying player is still initializing; callers absorb such errors.
type Widget interface {
	CurrentTime() (float64, error)
	SeekTo(seconds float64) error
	Play() error
	Pause() error
	IsPlaying() (bool, error)
	PlaybackRate() (float64, error)
	SetPlaybackRate(rate float64) error
}

// VideoLoader is implemented by widgets that can switch to another video.
type VideoLoader interface {
	LoadVideo(videoRef string) error
}
