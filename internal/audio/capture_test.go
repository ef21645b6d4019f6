package audio

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChunkerSplitsAndFlushes(t *testing.T) {
	k := chunker{size: 4}

	require.Empty(t, k.push([]byte{1, 2, 3}))
	require.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}, k.push([]byte{4, 5, 6, 7, 8, 9}))
	require.Equal(t, []byte{9}, k.flush())
	require.Nil(t, k.flush())
}

func TestCaptureWriteEmitsFramesAndStopFlushesTail(t *testing.T) {
	c := newCapture(Device{ID: "mic"})

	pcm := make([]byte, FrameBytes+100)
	n, err := c.write(pcm)
	require.NoError(t, err)
	require.Equal(t, len(pcm), n)
	require.Equal(t, int64(len(pcm)), c.BytesCaptured())

	require.Len(t, <-c.Chunks(), FrameBytes)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	tail, ok := <-c.Chunks()
	require.True(t, ok)
	require.Len(t, tail, 100)

	_, ok = <-c.Chunks()
	require.False(t, ok)
}

func TestCaptureStopWaitsForRoomForTail(t *testing.T) {
	c := newCapture(Device{ID: "mic"})

	_, err := c.write(make([]byte, cap(c.frames)*FrameBytes+10))
	require.NoError(t, err)
	require.Len(t, c.frames, cap(c.frames))

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-c.Chunks()
	}()
	require.NoError(t, c.Stop())

	var last []byte
	count := 1
	for chunk := range c.Chunks() {
		last = chunk
		count++
	}
	require.Equal(t, cap(c.frames)+1, count)
	require.Len(t, last, 10)
}

func TestCaptureStopDropsTailWhenUndrained(t *testing.T) {
	c := newCapture(Device{ID: "mic"})

	_, err := c.write(make([]byte, cap(c.frames)*FrameBytes+10))
	require.NoError(t, err)

	started := time.Now()
	require.NoError(t, c.Stop())
	require.Less(t, time.Since(started), time.Second)

	count := 0
	for chunk := range c.Chunks() {
		require.Len(t, chunk, FrameBytes)
		count++
	}
	require.Equal(t, cap(c.frames), count)
}

func TestCaptureWriteAfterStopIsEOF(t *testing.T) {
	c := newCapture(Device{ID: "mic"})
	require.NoError(t, c.Stop())

	n, err := c.write([]byte{1, 2})
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, c.BytesCaptured())
	require.Equal(t, "mic", c.Device().ID)
}
