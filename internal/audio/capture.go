package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRate = 16000
	// FrameBytes is 20ms of 16 kHz mono s16le.
	FrameBytes = 640
	// tailTimeout bounds how long Stop waits for room for the final short frame.
	tailTimeout = 100 * time.Millisecond
)

// Capture records one Pulse source and emits FrameBytes-sized PCM frames.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	done   chan struct{}

	mu      sync.Mutex
	buf     chunker
	stopped bool

	writers sync.WaitGroup
	total   atomic.Int64
}

// StartCapture opens a 16 kHz mono record stream on dev. It stops when ctx ends.
func StartCapture(ctx context.Context, dev Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(dev.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", dev.ID, err)
	}

	c := newCapture(dev)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(FrameBytes),
		pulse.RecordMediaName("rehearse answer"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.done:
		}
	}()
	return c, nil
}

func newCapture(dev Device) *Capture {
	return &Capture{
		device: dev,
		frames: make(chan []byte, 128),
		done:   make(chan struct{}),
		buf:    chunker{size: FrameBytes},
	}
}

// Device returns the source being recorded.
func (c *Capture) Device() Device { return c.device }

// Chunks yields PCM frames until Stop; the final frame may be short.
func (c *Capture) Chunks() <-chan []byte { return c.frames }

// BytesCaptured is the number of PCM bytes accepted so far.
func (c *Capture) BytesCaptured() int64 { return c.total.Load() }

// Stop ends recording, flushes the partial frame and closes Chunks. It is idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.writers.Wait()

	c.mu.Lock()
	tail := c.buf.flush()
	c.mu.Unlock()
	if len(tail) > 0 {
		timer := time.NewTimer(tailTimeout)
		select {
		case c.frames <- tail:
		case <-timer.C:
			// Nobody is draining Chunks; the tail is dropped.
		}
		timer.Stop()
	}
	close(c.frames)
	return nil
}

// write is the Pulse record callback.
func (c *Capture) write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait cannot race a late writer.
	c.writers.Add(1)
	frames := c.buf.push(p)
	c.mu.Unlock()
	defer c.writers.Done()

	c.total.Add(int64(len(p)))
	for _, frame := range frames {
		select {
		case <-c.done:
			return 0, io.EOF
		case c.frames <- frame:
		}
	}
	return len(p), nil
}

// chunker splits a byte stream into fixed-size frames.
type chunker struct {
	size    int
	pending []byte
}

func (k *chunker) push(p []byte) [][]byte {
	k.pending = append(k.pending, p...)
	var out [][]byte
	for len(k.pending) >= k.size {
		frame := make([]byte, k.size)
		copy(frame, k.pending[:k.size])
		k.pending = k.pending[k.size:]
		out = append(out, frame)
	}
	return out
}

func (k *chunker) flush() []byte {
	if len(k.pending) == 0 {
		return nil
	}
	tail := append([]byte(nil), k.pending...)
	k.pending = nil
	return tail
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
