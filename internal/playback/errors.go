package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/cache"
	"github.com/yomu-app/koe/internal/speech"
)

// ErrorCode identifies a failure class of the audio subsystem.
type ErrorCode string

const (
	CodeCacheUnavailable     ErrorCode = "CACHE_UNAVAILABLE"
	CodeAssetNotFound        ErrorCode = "ASSET_NOT_FOUND"
	CodeSynthesisUnavailable ErrorCode = "SYNTHESIS_UNAVAILABLE"
	CodePlaybackFailed       ErrorCode = "PLAYBACK_FAILED"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeCanceled             ErrorCode = "CANCELED"
	CodeUnknown              ErrorCode = "UNKNOWN"
)

// ErrInvalidInput is returned for empty or whitespace-only text.
var ErrInvalidInput = errors.New("empty text")

// AudioError is an audio subsystem error with a code and context.
type AudioError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

func (e *AudioError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AudioError) Unwrap() error {
	return e.Cause
}

// NewAudioError creates an error with an empty context.
func NewAudioError(code ErrorCode, message string, cause error) *AudioError {
	return &AudioError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a key/value to the error context.
func (e *AudioError) WithContext(key string, value any) *AudioError {
	e.Context[key] = value
	return e
}

// Classify maps err to its code. A wrapped *AudioError keeps its own code.
func Classify(err error) ErrorCode {
	var ae *AudioError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return ae.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, cache.ErrCacheUnavailable), errors.Is(err, cache.ErrItemTooLarge):
		return CodeCacheUnavailable
	case errors.Is(err, assets.ErrAssetNotFound), errors.Is(err, assets.ErrNotKana):
		return CodeAssetNotFound
	case errors.Is(err, speech.ErrSynthesisUnavailable), errors.Is(err, speech.ErrSynthesisFailed):
		return CodeSynthesisUnavailable
	case errors.Is(err, audio.ErrDeviceUnavailable),
		errors.Is(err, audio.ErrInvalidClip),
		errors.Is(err, audio.ErrPlayerClosed):
		return CodePlaybackFailed
	default:
		return CodeUnknown
	}
}

// wrap attaches a code to err unless it already carries one.
func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *AudioError
	if errors.As(err, &ae) {
		return err
	}
	return NewAudioError(Classify(err), message, err)
}
