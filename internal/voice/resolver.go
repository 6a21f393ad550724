package voice

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Resolver caches the best voice per language prefix and drops the cache
// whenever its source reports a change.
type Resolver struct {
	source Source
	logger *log.Logger

	mu       sync.Mutex
	selected map[string]Descriptor
}

// NewResolver creates a resolver over source.
func NewResolver(source Source, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default().WithPrefix("voice")
	}
	return &Resolver{
		source:   source,
		logger:   logger,
		selected: make(map[string]Descriptor),
	}
}

// Best returns the preferred voice for prefix. It never waits for the
// source to populate: with no matching voice yet it returns false and the
// caller uses the engine default.
func (r *Resolver) Best(ctx context.Context, prefix string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.selected[prefix]; ok {
		return d, true
	}

	voices, err := r.source.Voices(ctx)
	if err != nil {
		r.logger.Warn("voice list unavailable", "error", err)
		return Descriptor{}, false
	}

	d, ok := SelectBest(voices, prefix)
	if !ok {
		r.logger.Debug("no voice for language", "prefix", prefix, "voices", len(voices))
		return Descriptor{}, false
	}

	r.selected[prefix] = d
	r.logger.Debug("voice selected", "prefix", prefix, "voice", d.Name, "lang", d.Lang)
	return d, true
}

// Invalidate forgets every cached selection.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.selected = make(map[string]Descriptor)
	r.mu.Unlock()
}

// Run invalidates on every change event until ctx is done.
func (r *Resolver) Run(ctx context.Context) {
	changes := r.source.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			r.logger.Debug("voice list changed")
			r.Invalidate()
		}
	}
}
