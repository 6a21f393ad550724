// Package speech drives on-device text-to-speech engines. Every engine
// speaks directly (it does not hand back storable audio) and stops the
// moment its context is cancelled.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/yomu-app/koe/internal/voice"
)

var (
	// ErrSynthesisUnavailable is returned when no engine can speak: the
	// binary is missing, no voice model is installed, or synthesis is off.
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

	// ErrSynthesisFailed is returned when the engine ran but failed.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// Options shape one utterance.
type Options struct {
	Voice *voice.Descriptor // nil uses the engine default
	Rate  float64           // 1.0 is the engine's normal speed
	Pitch float64           // 1.0 is neutral
}

func (o Options) rate() float64 {
	if o.Rate <= 0 {
		return 1.0
	}
	return o.Rate
}

func (o Options) pitch() float64 {
	if o.Pitch <= 0 {
		return 1.0
	}
	return o.Pitch
}

// Engine is a device speech synthesiser.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Voices lists the voices the engine can use.
	Voices(ctx context.Context) ([]voice.Descriptor, error)

	// Speak says text and blocks until the utterance ends. Cancelling ctx
	// stops it immediately.
	Speak(ctx context.Context, text string, opts Options) error

	// Close releases resources held by the engine.
	Close() error
}

// VoiceSource adapts e for the voice resolver. Engines that track their
// own voice list changes are used directly; for the rest the list is
// loaded once in the background.
func VoiceSource(ctx context.Context, e Engine) voice.Source {
	if src, ok := e.(voice.Source); ok {
		return src
	}
	src := voice.NewAsyncSource(e.Voices)
	src.Start(ctx)
	return src
}

// interruptGrace is how long a cancelled process gets to exit after SIGINT
// before it is killed.
const interruptGrace = 100 * time.Millisecond

// command builds a process that is interrupted, then killed, when ctx ends.
func command(ctx context.Context, binary string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace
	return cmd
}

// lookPath resolves the first available binary among names.
func lookPath(names ...string) (string, error) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if p, err := exec.LookPath(n); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v found in PATH", ErrSynthesisUnavailable, names)
}

// None is the engine used when synthesis is turned off.
type None struct{}

func (None) Name() string { return "none" }

func (None) Voices(context.Context) ([]voice.Descriptor, error) { return nil, nil }

func (None) Speak(context.Context, string, Options) error { return ErrSynthesisUnavailable }

func (None) Close() error { return nil }
