package speech

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	availableErr error
	recognize    func(ctx context.Context) (string, error)
}

func (f *fakeRecognizer) Available(context.Context) error { return f.availableErr }

func (f *fakeRecognizer) RecognizeOnce(ctx context.Context) (string, error) {
	return f.recognize(ctx)
}

type captureOutcome struct {
	results  []string
	ends     int
	activeAt bool
}

// runCapture begins a capture and waits for onEnd.
func runCapture(t *testing.T, a *Adapter) captureOutcome {
	t.Helper()
	var out captureOutcome
	ended := make(chan struct{})
	err := a.BeginCapture(context.Background(),
		func(text string) { out.results = append(out.results, text) },
		func() {
			out.ends++
			out.activeAt = a.Active()
			close(ended)
		},
	)
	require.NoError(t, err)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("onEnd was not called")
	}
	return out
}

func TestAdapterWithoutRecognizerIsUnsupported(t *testing.T) {
	a := NewAdapter(nil, nil, Options{})
	require.False(t, a.IsAvailable(context.Background()))
	require.ErrorIs(t, a.BeginCapture(context.Background(), nil, nil), ErrCaptureUnsupported)
}

func TestAdapterIsAvailableDelegates(t *testing.T) {
	a := NewAdapter(nil, &fakeRecognizer{availableErr: errors.New("no mic")}, Options{})
	require.False(t, a.IsAvailable(context.Background()))

	a = NewAdapter(nil, &fakeRecognizer{}, Options{})
	require.True(t, a.IsAvailable(context.Background()))
}

func TestBeginCaptureDeliversNormalizedResultThenEnd(t *testing.T) {
	a := NewAdapter(nil, &fakeRecognizer{recognize: func(context.Context) (string, error) {
		return "  a  channel\n is   a pipe ", nil
	}}, Options{})

	out := runCapture(t, a)
	require.Equal(t, []string{"a channel is a pipe"}, out.results)
	require.Equal(t, 1, out.ends)
	require.False(t, out.activeAt)
}

func TestBeginCaptureSilenceSkipsResult(t *testing.T) {
	a := NewAdapter(nil, &fakeRecognizer{recognize: func(context.Context) (string, error) {
		return "   ", nil
	}}, Options{})

	out := runCapture(t, a)
	require.Empty(t, out.results)
	require.Equal(t, 1, out.ends)
}

func TestBeginCaptureErrorStillEnds(t *testing.T) {
	a := NewAdapter(nil, &fakeRecognizer{recognize: func(context.Context) (string, error) {
		return "half", errors.New("socket reset")
	}}, Options{})

	out := runCapture(t, a)
	require.Empty(t, out.results)
	require.Equal(t, 1, out.ends)
}

func TestBeginCaptureTimeoutKeepsFinalizedText(t *testing.T) {
	a := NewAdapter(nil, &fakeRecognizer{recognize: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "so far", ctx.Err()
	}}, Options{MaxDuration: 10 * time.Millisecond})

	out := runCapture(t, a)
	require.Equal(t, []string{"so far"}, out.results)
	require.Equal(t, 1, out.ends)
}

func TestBeginCaptureRejectsSecondCapture(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	a := NewAdapter(nil, &fakeRecognizer{recognize: func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "done", nil
	}}, Options{})

	ended := make(chan struct{})
	require.NoError(t, a.BeginCapture(context.Background(), nil, func() { close(ended) }))
	require.True(t, a.Active())

	require.ErrorIs(t, a.BeginCapture(context.Background(), nil, nil), ErrCaptureAlreadyActive)
	require.ErrorIs(t, a.BeginCapture(context.Background(), nil, nil), ErrCaptureAlreadyActive)

	close(release)
	<-ended
	require.False(t, a.Active())
	require.Equal(t, int32(1), calls.Load())
}

func TestBeginCaptureCanRestartFromOnEnd(t *testing.T) {
	a := NewAdapter(nil, &fakeRecognizer{recognize: func(context.Context) (string, error) {
		return "again", nil
	}}, Options{})

	restarted := make(chan error, 1)
	require.NoError(t, a.BeginCapture(context.Background(), nil, func() {
		restarted <- a.BeginCapture(context.Background(), nil, nil)
	}))
	require.NoError(t, <-restarted)
}
