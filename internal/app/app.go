// Package app wires the audio subsystem together from a Config: store,
// static assets, speech engine, voice resolver, fallback chain, playback
// controller, preloader and cache administration.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/cache"
	"github.com/yomu-app/koe/internal/config"
	"github.com/yomu-app/koe/internal/observe"
	"github.com/yomu-app/koe/internal/playback"
	"github.com/yomu-app/koe/internal/speech"
	"github.com/yomu-app/koe/internal/voice"
)

// App is the inbound surface used by the CLI and the kana board.
type App struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *observe.Metrics

	store    cache.AudioStore
	fetcher  assets.Fetcher
	player   audio.AudioPlayer
	engine   speech.Engine
	source   voice.Source
	resolver *voice.Resolver

	chain      *playback.Chain
	controller *playback.Controller
	preloader  *playback.Preloader
	admin      *cache.Admin

	cancel context.CancelFunc

	// closers run in reverse order during Close.
	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an audio store instead of opening one from config.
func WithStore(s cache.AudioStore) Option {
	return func(a *App) { a.store = s }
}

// WithFetcher injects a static clip fetcher.
func WithFetcher(f assets.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithPlayer injects an audio player instead of opening the device.
func WithPlayer(p audio.AudioPlayer) Option {
	return func(a *App) { a.player = p }
}

// WithEngine injects a speech engine.
func WithEngine(e speech.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the app logger.
func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New builds an App. Subsystems that fail to start degrade instead of
// failing: an unusable cache becomes an always-missing store, a missing
// engine becomes speech.None, and missing assets drop the static stage.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = log.Default().WithPrefix("koe")
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	ctx, a.cancel = context.WithCancel(ctx)

	a.initStore()
	a.initFetcher()
	if err := a.initPlayer(); err != nil {
		a.cancel()
		return nil, fmt.Errorf("app: init player: %w", err)
	}
	a.initEngine()
	a.initVoices(ctx)

	stages := []playback.Stage{
		&playback.CacheStage{Store: a.store, Player: a.player, Metrics: a.metrics},
	}
	if a.fetcher != nil {
		stages = append(stages, &playback.StaticStage{
			Store:   a.store,
			Fetcher: a.fetcher,
			Player:  a.player,
			Logger:  log.Default().WithPrefix("static"),
		})
	}
	stages = append(stages, &playback.LiveStage{
		Engine:   a.engine,
		Resolver: a.resolver,
		Lang:     cfg.Language,
		Rate:     cfg.Speech.Rate,
		Pitch:    cfg.Speech.Pitch,
		Metrics:  a.metrics,
	})

	a.chain = playback.NewChain(stages, playback.WithChainMetrics(a.metrics))
	a.controller = playback.NewController(a.chain, playback.WithMetrics(a.metrics))
	a.closers = append(a.closers, a.controller.Close)

	a.preloader = &playback.Preloader{
		Store:   a.store,
		Fetcher: a.fetcher,
		Workers: cfg.Preload.Workers,
		Metrics: a.metrics,
	}
	a.admin = cache.NewAdmin(a.store, nil)

	a.logger.Debug("audio subsystem ready", "stages", a.chain.Stages(), "engine", a.engine.Name())
	return a, nil
}

func (a *App) initStore() {
	if a.store != nil {
		return
	}
	if !a.cfg.Cache.Enabled {
		a.store = cache.Unavailable{}
		return
	}

	store, err := cache.NewStore(cache.Config{
		Dir:              a.cfg.Cache.Dir,
		DiskCapacity:     int64(a.cfg.Cache.MaxSizeMB) << 20,
		MemoryCapacity:   int64(a.cfg.Cache.MemoryMB) << 20,
		CompressionLevel: a.cfg.Cache.Compression,
	}, nil)
	if err != nil {
		a.logger.Warn("audio cache unavailable, continuing without it", "dir", a.cfg.Cache.Dir, "error", err)
		if !errors.Is(err, cache.ErrCacheUnavailable) {
			err = fmt.Errorf("%w: %w", cache.ErrCacheUnavailable, err)
		}
		a.store = cache.Unavailable{Reason: err}
		return
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
}

func (a *App) initFetcher() {
	if a.fetcher != nil {
		return
	}
	f, err := assets.NewFetcher(a.cfg.Assets.Base, assets.Options{
		Pattern:           a.cfg.Assets.Pattern,
		RequestsPerSecond: a.cfg.Assets.RequestsPerSecond,
		Timeout:           time.Duration(a.cfg.Assets.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		a.logger.Warn("static kana clips unavailable", "base", a.cfg.Assets.Base, "error", err)
		return
	}
	a.fetcher = f
}

func (a *App) initPlayer() error {
	if a.player == nil {
		pc := audio.DefaultPlayerConfig()
		pc.Volume = a.cfg.Playback.Volume
		p, err := audio.NewPlayer(pc)
		if err != nil {
			return err
		}
		a.player = p
	}
	a.closers = append(a.closers, a.player.Close)
	return nil
}

func (a *App) initEngine() {
	if a.engine == nil {
		e, err := a.openEngine()
		if err != nil {
			a.logger.Warn("live synthesis unavailable", "engine", a.cfg.Speech.Engine, "error", err)
			e = speech.None{}
		}
		a.engine = e
	}
	a.closers = append(a.closers, a.engine.Close)
}

func (a *App) openEngine() (speech.Engine, error) {
	switch a.cfg.Speech.Engine {
	case "espeak":
		return speech.NewCommandEngine(speech.FlavorEspeak, a.cfg.Speech.Binary)
	case "say":
		return speech.NewCommandEngine(speech.FlavorSay, a.cfg.Speech.Binary)
	case "piper":
		e, err := speech.NewPiperEngine(speech.PiperConfig{
			Binary:   a.cfg.Speech.Piper.Binary,
			ModelDir: a.cfg.Speech.Piper.ModelDir,
			Player:   a.player,
		})
		if err != nil {
			return nil, err
		}
		if err := e.Watch(); err != nil {
			a.logger.Warn("voice models will not be rescanned", "error", err)
		}
		return e, nil
	case "none", "":
		return speech.None{}, nil
	default:
		return nil, fmt.Errorf("unknown speech engine %q", a.cfg.Speech.Engine)
	}
}

func (a *App) initVoices(ctx context.Context) {
	a.source = speech.VoiceSource(ctx, a.engine)
	a.resolver = voice.NewResolver(a.source, nil)
	go a.resolver.Run(ctx)
}

// Play starts playing text, superseding whatever is playing.
func (a *App) Play(text string) {
	a.controller.Play(text)
}

// Stop silences the current session.
func (a *App) Stop() {
	a.controller.Stop()
}

// NowPlaying returns the text of the live session.
func (a *App) NowPlaying() (string, bool) {
	return a.controller.Active()
}

// Wait blocks until playback has finished.
func (a *App) Wait() {
	a.controller.Wait()
}

// CacheStats reports entry count and total size of the store.
func (a *App) CacheStats() (cache.Stats, error) {
	return a.admin.Stats()
}

// ClearCache deletes every cached clip. Callers confirm first.
func (a *App) ClearCache() error {
	return a.admin.ClearAll()
}

// Preload stores the static clips for texts.
func (a *App) Preload(ctx context.Context, texts []string) (playback.Report, error) {
	if a.fetcher == nil {
		return playback.Report{}, errors.New("no static clip source configured")
	}
	return a.preloader.Preload(ctx, texts)
}

// Voices lists the engine's voices.
func (a *App) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	return a.engine.Voices(ctx)
}

// BestVoice returns the voice live synthesis would use now.
func (a *App) BestVoice(ctx context.Context) (voice.Descriptor, bool) {
	return a.resolver.Best(ctx, a.cfg.Language)
}

// Engine names the live synthesis engine.
func (a *App) Engine() string {
	return a.engine.Name()
}

// Close stops playback and releases every subsystem.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.cancel()
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
