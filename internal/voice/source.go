package voice

import (
	"context"
	"fmt"
	"sync"
)

// Descriptor identifies a voice offered by the speech runtime.
type Descriptor struct {
	Name    string
	Lang    string // BCP 47 or POSIX style, e.g. "ja-JP", "ja_JP", "ja"
	IsLocal bool   // synthesised on device, no network round trip
}

// String returns "name (lang)".
func (d Descriptor) String() string {
	if d.IsLocal {
		return fmt.Sprintf("%s (%s)", d.Name, d.Lang)
	}
	return fmt.Sprintf("%s (%s, network)", d.Name, d.Lang)
}

// Source supplies the runtime voice list.
type Source interface {
	// Voices returns the voices known right now. An empty list is valid
	// and means the runtime has not populated it yet.
	Voices(ctx context.Context) ([]Descriptor, error)

	// Changes delivers an event whenever the list may have changed.
	// A nil channel means the list never changes.
	Changes() <-chan struct{}
}

// MemorySource is a settable voice list. Set emits a change event.
type MemorySource struct {
	mu      sync.RWMutex
	voices  []Descriptor
	changes chan struct{}
}

// NewMemorySource returns a source holding voices.
func NewMemorySource(voices ...Descriptor) *MemorySource {
	return &MemorySource{
		voices:  append([]Descriptor(nil), voices...),
		changes: make(chan struct{}, 1),
	}
}

func (s *MemorySource) Voices(context.Context) ([]Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Descriptor(nil), s.voices...), nil
}

func (s *MemorySource) Changes() <-chan struct{} {
	return s.changes
}

// Set replaces the list and notifies listeners.
func (s *MemorySource) Set(voices []Descriptor) {
	s.mu.Lock()
	s.voices = append([]Descriptor(nil), voices...)
	s.mu.Unlock()
	s.Notify()
}

// Notify emits a change event without altering the list. Events coalesce:
// a pending event is not duplicated.
func (s *MemorySource) Notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// LoadFunc enumerates voices, possibly slowly.
type LoadFunc func(ctx context.Context) ([]Descriptor, error)

// AsyncSource starts empty and fills itself in the background, the way
// browser and OS speech runtimes populate their voice lists after startup.
type AsyncSource struct {
	*MemorySource
	load LoadFunc

	once sync.Once
	done chan struct{}
	err  error
}

// NewAsyncSource wraps load. Nothing runs until Start.
func NewAsyncSource(load LoadFunc) *AsyncSource {
	return &AsyncSource{
		MemorySource: NewMemorySource(),
		load:         load,
		done:         make(chan struct{}),
	}
}

// Start loads the list in a goroutine. Safe to call more than once.
func (s *AsyncSource) Start(ctx context.Context) {
	s.once.Do(func() {
		go func() {
			defer close(s.done)
			voices, err := s.load(ctx)
			if err != nil {
				s.err = err
				return
			}
			s.Set(voices)
		}()
	})
}

// Loaded is closed once the background load finishes.
func (s *AsyncSource) Loaded() <-chan struct{} {
	return s.done
}

// Err returns the load error, valid after Loaded is closed.
func (s *AsyncSource) Err() error {
	<-s.done
	return s.err
}
