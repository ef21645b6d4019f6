// Package deepgram streams microphone PCM to Deepgram live transcription.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultBaseURL = "https://api.deepgram.com/v1"
	DefaultModel   = "nova-2"
)

var (
	// ErrMissingAPIKey is returned by Open when no API key is configured.
	ErrMissingAPIKey = errors.New("deepgram api key is not configured")
	// ErrSendClosed is returned when audio is sent after CloseSend.
	ErrSendClosed = errors.New("audio stream already closed")
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// Config holds account and recognition settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Language    string
	SmartFormat bool
	// Endpointing is the silence that ends an utterance. Zero leaves the server default.
	Endpointing time.Duration
	Dialer      *websocket.Dialer
}

// Audio describes the PCM being sent.
type Audio struct {
	Encoding   string
	SampleRate int
	Channels   int
}

// Transcript is one finalized recognition result.
type Transcript struct {
	Text string
	// SpeechFinal is set when Deepgram detected the end of the utterance.
	SpeechFinal bool
}

// Provider opens live transcription streams.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Provider{cfg: cfg}
}

// Configured reports whether an API key is present.
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

// Open dials the listen endpoint. The stream is closed when ctx ends.
func (p *Provider) Open(ctx context.Context, audio Audio) (*Stream, error) {
	if !p.Configured() {
		return nil, ErrMissingAPIKey
	}

	listenURL, err := listenURL(p.cfg, audio)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.cfg.Dialer.DialContext(ctx, listenURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect deepgram websocket: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connect deepgram websocket: %w", err)
	}

	s := &Stream{
		conn:        conn,
		transcripts: make(chan Transcript, 16),
		audio:       make(chan []byte, 32),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	s.loops.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.loops.Wait()
		close(s.transcripts)
		_ = conn.Close()
		close(s.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// Stream is one live transcription connection.
type Stream struct {
	conn *websocket.Conn

	transcripts chan Transcript
	audio       chan []byte
	closing     chan struct{}
	done        chan struct{}
	loops       sync.WaitGroup

	sendMu     sync.Mutex
	sendClosed bool
	closeOnce  sync.Once

	errMu sync.Mutex
	err   error
}

// SendAudio queues one PCM chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return ErrSendClosed
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.firstErr(); err != nil {
			return err
		}
		return errors.New("deepgram stream closed")
	}
}

// CloseSend flushes queued audio and asks Deepgram to finalize. It is idempotent.
func (s *Stream) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.audio)
	}
	return nil
}

// Transcripts yields finalized results; it is closed when the connection ends.
func (s *Stream) Transcripts() <-chan Transcript {
	return s.transcripts
}

// Wait blocks until the connection ends and returns its first error.
func (s *Stream) Wait() error {
	<-s.done
	return s.firstErr()
}

// Close tears the connection down without waiting for pending results.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.firstErr()
}

func (s *Stream) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	if err == nil {
		return
	}
	select {
	case <-s.closing:
		// Errors caused by our own Close are expected.
		return
	default:
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) writeLoop() {
	defer s.loops.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		s.setErr(fmt.Errorf("close audio stream: %w", err))
	}
}

func (s *Stream) readLoop() {
	defer s.loops.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.setErr(fmt.Errorf("read deepgram message: %w", err))
			}
			return
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if strings.EqualFold(msg.Type, "Error") {
			text := strings.TrimSpace(msg.Description)
			if text == "" {
				text = strings.TrimSpace(msg.Message)
			}
			if text == "" {
				text = "unknown error"
			}
			s.setErr(fmt.Errorf("deepgram: %s", text))
			return
		}
		if !msg.IsFinal && !msg.SpeechFinal {
			continue
		}

		t := Transcript{Text: msg.transcript(), SpeechFinal: msg.SpeechFinal}
		if t.Text == "" && !t.SpeechFinal {
			continue
		}
		select {
		case s.transcripts <- t:
		case <-s.closing:
			return
		}
	}
}

// CollectUtterance joins finalized segments until one ends the utterance or
// the channel closes. On ctx expiry it returns what was collected so far.
func CollectUtterance(ctx context.Context, transcripts <-chan Transcript) (string, error) {
	var parts []string
	for {
		select {
		case <-ctx.Done():
			return strings.Join(parts, " "), ctx.Err()
		case t, ok := <-transcripts:
			if !ok {
				return strings.Join(parts, " "), nil
			}
			if t.Text != "" {
				parts = append(parts, t.Text)
			}
			if t.SpeechFinal && len(parts) > 0 {
				return strings.Join(parts, " "), nil
			}
		}
	}
}

type alternative struct {
	Transcript string `json:"transcript"`
}

type message struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

func (m message) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

func listenURL(cfg Config, audio Audio) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid deepgram base url %q", cfg.BaseURL)
	}

	if audio.Encoding == "" {
		audio.Encoding = "linear16"
	}
	if audio.SampleRate <= 0 {
		audio.SampleRate = 16000
	}
	if audio.Channels <= 0 {
		audio.Channels = 1
	}

	q := u.Query()
	q.Set("model", cfg.Model)
	q.Set("encoding", audio.Encoding)
	q.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	q.Set("channels", strconv.Itoa(audio.Channels))
	q.Set("interim_results", "false")
	q.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	if cfg.Endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(cfg.Endpointing.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
