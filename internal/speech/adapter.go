// Package speech captures one spoken answer at a time and returns its transcript.
package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxDuration = 30 * time.Second

var (
	// ErrCaptureUnsupported is returned when no recognizer is wired.
	ErrCaptureUnsupported = errors.New("speech capture is not supported")
	// ErrCaptureAlreadyActive is returned by BeginCapture while a capture is running.
	ErrCaptureAlreadyActive = errors.New("speech capture already active")
)

// Recognizer is a platform speech-to-text capability.
type Recognizer interface {
	// Available returns nil when RecognizeOnce can be attempted.
	Available(ctx context.Context) error
	// RecognizeOnce listens for one utterance and returns its final transcript.
	RecognizeOnce(ctx context.Context) (string, error)
}

// Options tunes capture bounds.
type Options struct {
	MaxDuration time.Duration
}

// Adapter enforces single-capture semantics over a Recognizer.
type Adapter struct {
	logger      *slog.Logger
	recognizer  Recognizer
	maxDuration time.Duration

	mu     sync.Mutex
	active bool
}

// NewAdapter wraps recognizer. A nil recognizer makes every capture unsupported.
func NewAdapter(logger *slog.Logger, recognizer Recognizer, opts Options) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	return &Adapter{logger: logger, recognizer: recognizer, maxDuration: opts.MaxDuration}
}

// IsAvailable is a capability check; callers must not capture when it is false.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	if a.recognizer == nil {
		return false
	}
	if err := a.recognizer.Available(ctx); err != nil {
		a.logger.Debug("speech unavailable", "error", err.Error())
		return false
	}
	return true
}

// Active reports whether a capture is running.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// BeginCapture starts one capture in the background.
//
// onResult fires at most once, with a non-empty transcript. onEnd fires
// exactly once after the capture ends for any reason, and Active is already
// false when it runs. Either callback may be nil.
func (a *Adapter) BeginCapture(ctx context.Context, onResult func(text string), onEnd func()) error {
	if a.recognizer == nil {
		return ErrCaptureUnsupported
	}

	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return ErrCaptureAlreadyActive
	}
	a.active = true
	a.mu.Unlock()

	id := uuid.NewString()
	a.logger.Info("speech capture started", "capture_id", id)

	go func() {
		startedAt := time.Now()
		captureCtx, cancel := context.WithTimeout(ctx, a.maxDuration)
		text, err := a.recognizer.RecognizeOnce(captureCtx)
		cancel()
		text = normalize(text)

		attrs := []any{
			"capture_id", id,
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"chars", len(text),
		}
		switch {
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			a.logger.Warn("speech capture failed", append(attrs, "error", err.Error())...)
		case text == "":
			a.logger.Info("speech capture heard nothing", attrs...)
		default:
			a.logger.Info("speech capture finished", attrs...)
		}

		// A timeout still delivers whatever was finalized before it.
		if text != "" && (err == nil || errors.Is(err, context.DeadlineExceeded)) && onResult != nil {
			onResult(text)
		}

		a.mu.Lock()
		a.active = false
		a.mu.Unlock()
		if onEnd != nil {
			onEnd()
		}
	}()
	return nil
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
