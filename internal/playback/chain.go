// Package playback resolves text to audio through an ordered fallback chain
// (cache, static kana clip, live synthesis) and plays it with at most one
// session audible at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/cache"
	"github.com/yomu-app/koe/internal/observe"
	"github.com/yomu-app/koe/internal/speech"
	"github.com/yomu-app/koe/internal/voice"
)

var (
	// ErrMiss is returned by a stage that cannot produce audio for the text.
	ErrMiss = errors.New("stage miss")

	// ErrNoAudio is returned when every stage missed or failed.
	ErrNoAudio = errors.New("no audio source for text")
)

// Learner pace for live synthesis.
const (
	LiveRate  = 0.9
	LivePitch = 1.0
)

// Handle plays resolved audio. Play blocks until playback ends and returns
// ctx.Err() when cancelled.
type Handle interface {
	Play(ctx context.Context) error
}

// Stage is one step of the fallback chain.
type Stage interface {
	Name() string

	// Resolve returns a handle for text, or an error wrapping ErrMiss when
	// the stage does not apply. Other errors are failures; the chain moves
	// on either way.
	Resolve(ctx context.Context, text string) (Handle, error)
}

// Resolved is a handle together with the stage that produced it.
type Resolved struct {
	Handle Handle
	Stage  int
	Source string
}

// clipHandle plays a decoded clip.
type clipHandle struct {
	clip   audio.Clip
	player audio.AudioPlayer
}

func (h *clipHandle) Play(ctx context.Context) error {
	return h.player.Play(ctx, h.clip)
}

// utteranceHandle speaks through a device engine. Nothing is storable.
type utteranceHandle struct {
	engine  speech.Engine
	text    string
	opts    speech.Options
	metrics *observe.Metrics
}

func (h *utteranceHandle) Play(ctx context.Context) error {
	start := time.Now()
	if err := h.engine.Speak(ctx, h.text, h.opts); err != nil {
		return err
	}
	h.metrics.RecordSynthesis(ctx, h.engine.Name(), time.Since(start))
	return nil
}

// CacheStage serves previously stored clips.
type CacheStage struct {
	Store   cache.AudioStore
	Player  audio.AudioPlayer
	Metrics *observe.Metrics
}

func (s *CacheStage) Name() string { return "cache" }

func (s *CacheStage) Resolve(ctx context.Context, text string) (Handle, error) {
	metrics := s.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	blob, err := s.Store.Get(text)
	switch {
	case err == nil:
		metrics.RecordLookup(ctx, observe.OutcomeHit)
	case errors.Is(err, cache.ErrCacheMiss), errors.Is(err, cache.ErrCacheUnavailable):
		metrics.RecordLookup(ctx, observe.OutcomeMiss)
		return nil, fmt.Errorf("%w: %w", ErrMiss, err)
	default:
		metrics.RecordLookup(ctx, observe.OutcomeError)
		return nil, err
	}

	clip, err := audio.DecodeWAV(blob)
	if err != nil {
		// A damaged entry is a miss; the static stage overwrites it.
		return nil, fmt.Errorf("%w: cached clip: %w", ErrMiss, err)
	}
	return &clipHandle{clip: clip, player: s.Player}, nil
}

// StaticStage fetches bundled kana clips and writes them through to the
// store.
type StaticStage struct {
	Store   cache.AudioStore
	Fetcher assets.Fetcher
	Player  audio.AudioPlayer
	Logger  *log.Logger
}

func (s *StaticStage) Name() string { return "static" }

func (s *StaticStage) Resolve(ctx context.Context, text string) (Handle, error) {
	if !assets.IsKana(text) {
		return nil, fmt.Errorf("%w: %q is not a kana token", ErrMiss, text)
	}

	blob, err := s.Fetcher.Fetch(ctx, text)
	if err != nil {
		if errors.Is(err, assets.ErrAssetNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrMiss, err)
		}
		return nil, err
	}

	clip, err := audio.DecodeWAV(blob)
	if err != nil {
		return nil, fmt.Errorf("static clip for %q: %w", text, err)
	}

	if err := s.Store.Put(text, blob); err != nil {
		logger(s.Logger).Warn("could not cache static clip", "text", text, "error", err)
	}
	return &clipHandle{clip: clip, player: s.Player}, nil
}

// LiveStage speaks through the device engine with the best Japanese voice.
type LiveStage struct {
	Engine   speech.Engine
	Resolver *voice.Resolver // nil uses the engine default voice
	Lang     string          // target language prefix, default "ja"
	Rate     float64         // default LiveRate
	Pitch    float64         // default LivePitch
	Metrics  *observe.Metrics
}

func (s *LiveStage) Name() string { return "live" }

func (s *LiveStage) Resolve(ctx context.Context, text string) (Handle, error) {
	if s.Engine == nil {
		return nil, fmt.Errorf("%w: %w", ErrMiss, speech.ErrSynthesisUnavailable)
	}
	if _, off := s.Engine.(speech.None); off {
		return nil, fmt.Errorf("%w: %w", ErrMiss, speech.ErrSynthesisUnavailable)
	}

	opts := speech.Options{Rate: s.Rate, Pitch: s.Pitch}
	if opts.Rate == 0 {
		opts.Rate = LiveRate
	}
	if opts.Pitch == 0 {
		opts.Pitch = LivePitch
	}
	if s.Resolver != nil {
		lang := s.Lang
		if lang == "" {
			lang = "ja"
		}
		if d, ok := s.Resolver.Best(ctx, lang); ok {
			opts.Voice = &d
		}
	}

	metrics := s.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &utteranceHandle{
		engine:  s.Engine,
		text:    assets.Hiragana(text),
		opts:    opts,
		metrics: metrics,
	}, nil
}

// Chain tries its stages in order.
type Chain struct {
	stages  []Stage
	logger  *log.Logger
	metrics *observe.Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainLogger sets the chain logger.
func WithChainLogger(l *log.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithChainMetrics sets the metrics the chain records to.
func WithChainMetrics(m *observe.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// NewChain builds a chain over stages, tried in the given order.
func NewChain(stages []Stage, opts ...ChainOption) *Chain {
	c := &Chain{stages: stages}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = log.Default().WithPrefix("chain")
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Stages returns the number of stages.
func (c *Chain) Stages() int {
	return len(c.stages)
}

// Resolve walks the chain from the first stage.
func (c *Chain) Resolve(ctx context.Context, text string) (Resolved, error) {
	return c.ResolveFrom(ctx, text, 0)
}

// ResolveFrom walks the chain starting at stage index start.
func (c *Chain) ResolveFrom(ctx context.Context, text string, start int) (Resolved, error) {
	if strings.TrimSpace(text) == "" {
		return Resolved{}, ErrInvalidInput
	}

	var lastErr error
	for i := start; i < len(c.stages); i++ {
		if err := ctx.Err(); err != nil {
			return Resolved{}, err
		}

		stage := c.stages[i]
		h, err := stage.Resolve(ctx, text)
		if err == nil {
			c.metrics.RecordStage(ctx, stage.Name(), observe.OutcomeHit)
			c.logger.Debug("resolved", "text", text, "stage", stage.Name())
			return Resolved{Handle: h, Stage: i, Source: stage.Name()}, nil
		}
		if ctx.Err() != nil {
			return Resolved{}, ctx.Err()
		}

		lastErr = err
		if errors.Is(err, ErrMiss) {
			c.metrics.RecordStage(ctx, stage.Name(), observe.OutcomeMiss)
			c.logger.Debug("stage miss, trying next", "text", text, "stage", stage.Name(), "reason", err)
		} else {
			c.metrics.RecordStage(ctx, stage.Name(), observe.OutcomeError)
			c.logger.Warn("stage failed, trying next", "text", text, "stage", stage.Name(), "code", Classify(err), "error", err)
		}
	}

	c.logger.Error("no audio for text", "text", text, "error", lastErr)
	if lastErr == nil {
		return Resolved{}, ErrNoAudio
	}
	return Resolved{}, fmt.Errorf("%w: %w", ErrNoAudio, lastErr)
}

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}
