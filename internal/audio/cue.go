package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

// Cue identifies one short tone played around a voice capture.
type Cue int

const (
	CueListen Cue = iota + 1
	CueDone
)

func (c Cue) String() string {
	switch c {
	case CueListen:
		return "listen"
	case CueDone:
		return "done"
	default:
		return "unknown"
	}
}

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	listenCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	})
	doneCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 494, duration: 90 * time.Millisecond, volume: 0.18},
	})
)

// CuePlayer plays cues on the default Pulse sink.
type CuePlayer struct{}

// Play blocks until the cue has drained or fails.
func (CuePlayer) Play(ctx context.Context, cue Cue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(cue)
	if len(samples) == 0 {
		return fmt.Errorf("unknown cue %d", int(cue))
	}
	return playSamples(samples, cue)
}

func playSamples(samples []int16, cue Cue) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName(clientName+" "+cue.String()+" cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", cue, err)
	}
	return nil
}

func cueSamples(cue Cue) []int16 {
	switch cue {
	case CueListen:
		return listenCuePCM
	case CueDone:
		return doneCuePCM
	default:
		return nil
	}
}

// synthesizeCue joins tones with a short silent gap.
func synthesizeCue(parts []toneSpec) []int16 {
	gap := make([]int16, samplesForDuration(22*time.Millisecond))
	var pcm []int16
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(part)...)
	}
	return pcm
}

// synthesizeTone renders a sine with a linear attack and release of at most 5ms.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), SampleRate/200)

	pcm := make([]int16, n)
	for i := range n {
		envelope := min(1.0, float64(i)/float64(ramp), float64(n-i-1)/float64(ramp))
		t := float64(i) / SampleRate
		sample := math.Sin(2 * math.Pi * spec.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * spec.volume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * SampleRate))
}
