package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	// ErrDeviceUnavailable is returned when the output device cannot be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrInvalidClip is returned for data that is not playable PCM.
	ErrInvalidClip = errors.New("invalid audio clip")

	// ErrPlayerClosed is returned by Play after Close.
	ErrPlayerClosed = errors.New("player is closed")
)

// AudioPlayer plays one clip to completion. Play blocks until the clip has
// drained or ctx is cancelled, in which case output stops at once.
type AudioPlayer interface {
	Play(ctx context.Context, clip Clip) error
	Close() error
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int           // 44100 or 48000 Hz only
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // device buffer; 0 lets oto choose
	Volume     float64       // 0.0 to 1.0
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
		Volume:     1.0,
	}
}

func validateConfig(config PlayerConfig) error {
	// oto only supports these rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.Volume < 0 || config.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", config.Volume)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// pollInterval is how often Play checks whether the device has drained.
const pollInterval = 10 * time.Millisecond

// Player plays clips through oto. The oto context is process-wide and can
// only be created once, so it is opened lazily on the first Play; a machine
// without an audio device fails there, not at startup.
type Player struct {
	config PlayerConfig
	format Format

	once    sync.Once
	context *oto.Context
	initErr error

	// One clip at a time.
	playMu sync.Mutex

	mu     sync.Mutex
	volume float64
	closed bool
}

// NewPlayer creates a player. The device is not touched until Play.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Player{
		config: config,
		format: Format{SampleRate: config.SampleRate, Channels: config.Channels, BitDepth: 16},
		volume: config.Volume,
	}, nil
}

// Format returns the format clips are converted to before playback.
func (p *Player) Format() Format {
	return p.format
}

func (p *Player) ensureContext() error {
	p.once.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   p.config.SampleRate,
			ChannelCount: p.config.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   p.config.BufferSize,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			p.initErr = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
			return
		}
		<-ready
		p.context = ctx
	})
	return p.initErr
}

// Play converts clip to the device format and plays it, blocking until it
// finishes or ctx is cancelled.
func (p *Player) Play(ctx context.Context, clip Clip) error {
	p.mu.Lock()
	closed := p.closed
	volume := p.volume
	p.mu.Unlock()
	if closed {
		return ErrPlayerClosed
	}

	converted, err := Convert(clip, p.format)
	if err != nil {
		return err
	}

	if err := p.ensureContext(); err != nil {
		return err
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	// Cancelled while waiting for the device.
	if err := ctx.Err(); err != nil {
		return err
	}

	// The oto player reads from data asynchronously; keep it alive until
	// the player is closed.
	data := converted.Data
	player := p.context.NewPlayer(bytes.NewReader(data))
	player.SetVolume(volume)
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			player.Close()
			runtime.KeepAlive(data)
			return ctx.Err()
		case <-ticker.C:
		}
	}

	playErr := player.Err()
	closeErr := player.Close()
	runtime.KeepAlive(data)

	if playErr != nil {
		return fmt.Errorf("playback failed: %w", playErr)
	}
	return closeErr
}

// SetVolume sets the volume for subsequent clips.
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// Close rejects further playback. oto contexts cannot be closed in v3, so
// the device stays open until the process exits.
func (p *Player) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
