package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/deepgram"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	chunks chan []byte
	once   sync.Once
}

func newFakeStream(frames int) *fakeStream {
	s := &fakeStream{chunks: make(chan []byte, frames)}
	for range frames {
		s.chunks <- make([]byte, 640)
	}
	return s
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }

func (s *fakeStream) Stop() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

type fakeMic struct {
	checkErr error
	openErr  error
	stream   *fakeStream
}

func (m *fakeMic) Check(context.Context) error { return m.checkErr }

func (m *fakeMic) Open(context.Context) (AudioStream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

type cueRecorder struct {
	mu     sync.Mutex
	played []audio.Cue
	err    error
}

func (c *cueRecorder) Play(_ context.Context, cue audio.Cue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.played = append(c.played, cue)
	return c.err
}

func (c *cueRecorder) cues() []audio.Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.Cue(nil), c.played...)
}

// deepgramAfter serves a listen endpoint that answers with replies after
// receiving frames binary messages.
func deepgramAfter(t *testing.T, frames int, replies ...string) *deepgram.Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for seen := 0; seen < frames; {
			kind, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				seen++
			}
		}
		for _, reply := range replies {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil || strings.Contains(string(payload), "CloseStream") {
				break
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)

	return deepgram.NewProvider(deepgram.Config{APIKey: "k", BaseURL: srv.URL})
}

func TestPulseDeepgramAvailable(t *testing.T) {
	withKey := deepgram.NewProvider(deepgram.Config{APIKey: "k"})

	r := NewPulseDeepgram(nil, &fakeMic{}, deepgram.NewProvider(deepgram.Config{}))
	require.ErrorIs(t, r.Available(context.Background()), deepgram.ErrMissingAPIKey)

	r = NewPulseDeepgram(nil, nil, withKey)
	require.Error(t, r.Available(context.Background()))

	r = NewPulseDeepgram(nil, &fakeMic{checkErr: errors.New("muted")}, withKey)
	require.EqualError(t, r.Available(context.Background()), "muted")

	r = NewPulseDeepgram(nil, &fakeMic{}, withKey)
	require.NoError(t, r.Available(context.Background()))
}

func TestPulseDeepgramRecognizeOnce(t *testing.T) {
	provider := deepgramAfter(t, 2,
		`{"is_final":true,"channel":{"alternatives":[{"transcript":"defer runs"}]}}`,
		`{"is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"at return"}]}}`,
	)
	mic := &fakeMic{stream: newFakeStream(2)}
	r := NewPulseDeepgram(nil, mic, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := r.RecognizeOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, "defer runs at return", text)
}

func TestPulseDeepgramRecognizeOnceThroughAdapter(t *testing.T) {
	provider := deepgramAfter(t, 1,
		`{"is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"interfaces are implicit"}]}}`,
	)
	a := NewAdapter(nil, NewPulseDeepgram(nil, &fakeMic{stream: newFakeStream(1)}, provider), Options{MaxDuration: 5 * time.Second})

	out := runCapture(t, a)
	require.Equal(t, []string{"interfaces are implicit"}, out.results)
}

func TestPulseDeepgramMicrophoneFailure(t *testing.T) {
	provider := deepgramAfter(t, 1)
	r := NewPulseDeepgram(nil, &fakeMic{openErr: errors.New("no source")}, provider)

	_, err := r.RecognizeOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "open microphone")
}

func TestPulseDeepgramNoSpeech(t *testing.T) {
	provider := deepgramAfter(t, 1)
	mic := &fakeMic{stream: newFakeStream(1)}
	r := NewPulseDeepgram(nil, mic, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		// The mic keeps running until silence; stop it like a user releasing the key.
		time.Sleep(50 * time.Millisecond)
		_ = mic.stream.Stop()
	}()

	text, err := r.RecognizeOnce(ctx)
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestPulseDeepgramPlaysCuesAroundCapture(t *testing.T) {
	provider := deepgramAfter(t, 1,
		`{"is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"goroutines"}]}}`,
	)
	cues := &cueRecorder{err: errors.New("no sink")}
	r := NewPulseDeepgram(nil, &fakeMic{stream: newFakeStream(1)}, provider).WithCues(cues)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := r.RecognizeOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, "goroutines", text)
	require.Equal(t, []audio.Cue{audio.CueListen, audio.CueDone}, cues.cues())
}

func TestPulseDeepgramNoCuesWhenMicFails(t *testing.T) {
	cues := &cueRecorder{}
	r := NewPulseDeepgram(nil, &fakeMic{openErr: errors.New("busy")}, deepgramAfter(t, 1)).WithCues(cues)

	_, err := r.RecognizeOnce(context.Background())
	require.Error(t, err)
	require.Empty(t, cues.cues())
}
