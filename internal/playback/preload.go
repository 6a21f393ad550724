package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/cache"
	"github.com/yomu-app/koe/internal/observe"
)

// DefaultPreloadWorkers bounds concurrent fetches.
const DefaultPreloadWorkers = 4

// Failure records one text that could not be preloaded.
type Failure struct {
	Text string
	Err  error
}

// Report summarises a preload batch.
type Report struct {
	Stored   int // fetched and written to the store
	Cached   int // already present
	Skipped  int // empty or not a kana token
	Failed   int
	Failures []Failure
}

func (r Report) String() string {
	return fmt.Sprintf("%d stored, %d cached, %d skipped, %d failed", r.Stored, r.Cached, r.Skipped, r.Failed)
}

// Preloader warms the store with static kana clips.
type Preloader struct {
	Store   cache.AudioStore
	Fetcher assets.Fetcher
	Workers int
	Logger  *log.Logger
	Metrics *observe.Metrics
}

// Preload fetches and stores every kana token in texts that is not already
// cached. Individual failures are logged and counted; they never stop the
// batch. The returned error is non-nil only when ctx ended early.
func (p *Preloader) Preload(ctx context.Context, texts []string) (Report, error) {
	l := p.Logger
	if l == nil {
		l = log.Default().WithPrefix("preload")
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultPreloadWorkers
	}

	var (
		mu     sync.Mutex
		report Report
	)
	count := func(text, outcome string, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case observe.OutcomeStored:
			report.Stored++
		case observe.OutcomeCached:
			report.Cached++
		case observe.OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
			report.Failures = append(report.Failures, Failure{Text: text, Err: err})
		}
		metrics.RecordPreload(ctx, outcome)
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	seen := make(map[string]bool, len(texts))
	for _, text := range texts {
		if seen[text] {
			continue
		}
		seen[text] = true

		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := p.preloadOne(ctx, text)
			if err != nil {
				l.Warn("preload failed", "text", text, "code", Classify(err), "error", err)
			}
			count(text, outcome, err)
			return nil
		})
	}
	_ = g.Wait()

	l.Info("preload finished", "stored", report.Stored, "cached", report.Cached,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, ctx.Err()
}

func (p *Preloader) preloadOne(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" || !assets.IsKana(text) {
		return observe.OutcomeSkipped, nil
	}
	if p.Store.Contains(text) {
		return observe.OutcomeCached, nil
	}

	blob, err := p.Fetcher.Fetch(ctx, text)
	if err != nil {
		return observe.OutcomeFailed, err
	}
	if _, err := audio.DecodeWAV(blob); err != nil {
		return observe.OutcomeFailed, fmt.Errorf("clip for %q: %w", text, err)
	}
	if err := p.Store.Put(text, blob); err != nil {
		if errors.Is(err, cache.ErrCacheUnavailable) {
			return observe.OutcomeFailed, wrap(err, "cache unavailable")
		}
		return observe.OutcomeFailed, err
	}
	return observe.OutcomeStored, nil
}
