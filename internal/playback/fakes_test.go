package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/cache"
	"github.com/yomu-app/koe/internal/observe"
	"github.com/yomu-app/koe/internal/speech"
	"github.com/yomu-app/koe/internal/voice"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// wavBlob returns a short silent WAV. Different lengths tell clips apart.
func wavBlob(d time.Duration) []byte {
	f := audio.DefaultFormat()
	return audio.EncodeWAV(audio.Clip{Format: f, Data: audio.Silence(d, f)})
}

// fakeEngine records what it was asked to say.
type fakeEngine struct {
	mu       sync.Mutex
	duration time.Duration
	err      error
	spoken   []string
	opts     []speech.Options
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Voices(context.Context) ([]voice.Descriptor, error) { return nil, nil }

func (e *fakeEngine) Speak(ctx context.Context, text string, opts speech.Options) error {
	e.mu.Lock()
	if e.err != nil {
		err := e.err
		e.mu.Unlock()
		return err
	}
	e.spoken = append(e.spoken, text)
	e.opts = append(e.opts, opts)
	d := e.duration
	e.mu.Unlock()

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) Spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

// fakeFetcher serves clips from a map.
type fakeFetcher struct {
	mu    sync.Mutex
	clips map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, token string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !assets.IsKana(token) {
		return nil, fmt.Errorf("%w: %q", assets.ErrNotKana, token)
	}
	blob, ok := f.clips[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", assets.ErrAssetNotFound, token)
	}
	return blob, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// spyStore counts calls into a real store.
type spyStore struct {
	cache.AudioStore
	mu    sync.Mutex
	calls int
}

func (s *spyStore) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *spyStore) Get(key string) ([]byte, error) { s.touch(); return s.AudioStore.Get(key) }
func (s *spyStore) Put(key string, b []byte) error { s.touch(); return s.AudioStore.Put(key, b) }
func (s *spyStore) Contains(key string) bool       { s.touch(); return s.AudioStore.Contains(key) }

func (s *spyStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(cache.Config{Dir: t.TempDir(), MemoryCapacity: 1 << 20}, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// rig is a full chain over fakes.
type rig struct {
	store   *spyStore
	fetcher *fakeFetcher
	engine  *fakeEngine
	player  *audio.MockPlayer
	chain   *Chain
	metrics *observe.Metrics
	reader  *sdkmetric.ManualReader
}

func newRig(t *testing.T) *rig {
	t.Helper()
	metrics, reader := newTestMetrics(t)
	r := &rig{
		store:   &spyStore{AudioStore: newTestStore(t)},
		fetcher: &fakeFetcher{clips: map[string][]byte{}},
		engine:  &fakeEngine{duration: 5 * time.Millisecond},
		player:  audio.NewMockPlayer(0),
		metrics: metrics,
		reader:  reader,
	}
	r.chain = NewChain([]Stage{
		&CacheStage{Store: r.store, Player: r.player, Metrics: metrics},
		&StaticStage{Store: r.store, Fetcher: r.fetcher, Player: r.player},
		&LiveStage{Engine: r.engine, Metrics: metrics},
	}, WithChainMetrics(metrics))
	return r
}

func (r *rig) controller() *Controller {
	return NewController(r.chain, WithMetrics(r.metrics))
}
