package audio

import (
	"context"
	"sync"
	"time"
)

// MockPlayer implements AudioPlayer for testing purposes.
// It simulates playback without producing sound.
type MockPlayer struct {
	mu sync.Mutex

	// Simulated play time per clip; when zero the clip's own duration is
	// scaled by speed.
	duration time.Duration
	speed    float64
	err      error
	closed   bool

	started   []Clip
	completed int
	cancelled int

	active        int
	maxConcurrent int

	onPlay func(Clip)
}

// NewMockPlayer creates a mock that "plays" each clip for d.
func NewMockPlayer(d time.Duration) *MockPlayer {
	return &MockPlayer{duration: d, speed: 1.0}
}

// SetDuration changes the simulated play time.
func (m *MockPlayer) SetDuration(d time.Duration) {
	m.mu.Lock()
	m.duration = d
	m.mu.Unlock()
}

// SetError makes subsequent Play calls fail with err before any output.
func (m *MockPlayer) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// OnPlay registers a hook called when output starts.
func (m *MockPlayer) OnPlay(fn func(Clip)) {
	m.mu.Lock()
	m.onPlay = fn
	m.mu.Unlock()
}

func (m *MockPlayer) Play(ctx context.Context, clip Clip) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrPlayerClosed
	}
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return err
	}

	m.started = append(m.started, clip)
	m.active++
	if m.active > m.maxConcurrent {
		m.maxConcurrent = m.active
	}
	d := m.duration
	if d == 0 {
		d = time.Duration(float64(clip.Duration()) / m.speed)
	}
	hook := m.onPlay
	m.mu.Unlock()

	if hook != nil {
		hook(clip)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.mu.Lock()
	m.active--
	if err != nil {
		m.cancelled++
	} else {
		m.completed++
	}
	m.mu.Unlock()
	return err
}

func (m *MockPlayer) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Started returns every clip whose output began, in order.
func (m *MockPlayer) Started() []Clip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Clip(nil), m.started...)
}

// PlayCount returns how many clips started.
func (m *MockPlayer) PlayCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}

// Completed returns how many clips played to the end.
func (m *MockPlayer) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Cancelled returns how many clips were cut off.
func (m *MockPlayer) Cancelled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// MaxConcurrent returns the most clips ever playing at once.
func (m *MockPlayer) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}
