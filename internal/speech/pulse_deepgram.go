package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/deepgram"
)

// AudioStream is a running microphone capture.
type AudioStream interface {
	Chunks() <-chan []byte
	Stop() error
}

// Microphone opens capture streams.
type Microphone interface {
	Check(ctx context.Context) error
	Open(ctx context.Context) (AudioStream, error)
}

// PulseMicrophone records from the Pulse source chosen by input/fallback preferences.
type PulseMicrophone struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

func (m PulseMicrophone) Check(ctx context.Context) error {
	_, err := audio.SelectDevice(ctx, m.Input, m.Fallback)
	return err
}

func (m PulseMicrophone) Open(ctx context.Context) (AudioStream, error) {
	selection, err := audio.SelectDevice(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && m.Logger != nil {
		m.Logger.Warn("audio fallback", "warning", selection.Warning)
	}
	capture, err := audio.StartCapture(ctx, selection.Device)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// PulseDeepgram recognizes speech by streaming microphone PCM to Deepgram.
type PulseDeepgram struct {
	logger     *slog.Logger
	mic        Microphone
	transcribe *deepgram.Provider
	cues       CuePlayer
}

// CuePlayer plays the tones that bracket a capture.
type CuePlayer interface {
	Play(ctx context.Context, cue audio.Cue) error
}

// NewPulseDeepgram wires a microphone to a Deepgram provider.
func NewPulseDeepgram(logger *slog.Logger, mic Microphone, provider *deepgram.Provider) *PulseDeepgram {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PulseDeepgram{logger: logger, mic: mic, transcribe: provider}
}

// WithCues plays a listen cue once the microphone is open and a done cue when
// recording stops.
func (r *PulseDeepgram) WithCues(player CuePlayer) *PulseDeepgram {
	r.cues = player
	return r
}

func (r *PulseDeepgram) playCue(ctx context.Context, cue audio.Cue) {
	if r.cues == nil {
		return
	}
	if err := r.cues.Play(ctx, cue); err != nil {
		r.logger.Debug("audio cue failed", "cue", cue.String(), "error", err.Error())
	}
}

// Available requires an API key and a usable input source.
func (r *PulseDeepgram) Available(ctx context.Context) error {
	if r.transcribe == nil || !r.transcribe.Configured() {
		return deepgram.ErrMissingAPIKey
	}
	if r.mic == nil {
		return errors.New("no microphone configured")
	}
	return r.mic.Check(ctx)
}

// RecognizeOnce records until Deepgram finalizes one utterance or ctx ends.
func (r *PulseDeepgram) RecognizeOnce(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.transcribe.Open(ctx, deepgram.Audio{
		Encoding:   "linear16",
		SampleRate: audio.SampleRate,
		Channels:   1,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	mic, err := r.mic.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open microphone: %w", err)
	}
	defer mic.Stop()
	r.playCue(ctx, audio.CueListen)
	defer r.playCue(context.WithoutCancel(ctx), audio.CueDone)

	pumpErr := make(chan error, 1)
	go func() {
		defer func() { _ = stream.CloseSend() }()
		for chunk := range mic.Chunks() {
			if err := stream.SendAudio(chunk); err != nil {
				pumpErr <- err
				return
			}
		}
		pumpErr <- nil
	}()

	text, err := deepgram.CollectUtterance(ctx, stream.Transcripts())
	_ = mic.Stop()
	if err != nil || text != "" {
		return text, err
	}

	// The stream ended without speech; report why, if it failed.
	if sendErr := <-pumpErr; sendErr != nil {
		return "", sendErr
	}
	return "", stream.Wait()
}
