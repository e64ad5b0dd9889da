package demux

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"testing/synctest"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/internal/mp4test"
	"github.com/mengelbart/vplay/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readerOutput struct {
	init   InitResult
	err    error
	chunks []vplay.EncodedChunk
	eos    int
}

func runReader(t *testing.T, path string, commands ...vplay.Command) readerOutput {
	t.Helper()
	var out readerOutput
	synctest.Test(t, func(t *testing.T) {
		chunkTx, chunkRx := queue.New[vplay.Event[vplay.EncodedChunk]](8)
		cmdTx, cmdRx := queue.New[vplay.Command](4)
		for _, cmd := range commands {
			require.NoError(t, cmdTx.TrySend(cmd))
		}
		init := make(chan InitResult, 1)
		done := make(chan error, 1)
		r := NewReader(path, chunkTx, cmdRx, nil)
		go func() {
			done <- r.Run(t.Context(), init)
		}()
		out.init = <-init
		for {
			e, err := chunkRx.Recv(t.Context())
			if err != nil {
				require.ErrorIs(t, err, queue.ErrDisconnected)
				break
			}
			if e.EndOfStream {
				out.eos++
				continue
			}
			out.chunks = append(out.chunks, e.Data)
		}
		out.err = <-done
	})
	return out
}

func TestReaderProducesAllSamples(t *testing.T) {
	o := mp4test.Default()
	out := runReader(t, mp4test.WriteFile(t, o))

	require.NoError(t, out.init.Err)
	assert.Equal(t, uint32(300), out.init.Track.SampleCount)
	assert.NoError(t, out.err)
	assert.Equal(t, 1, out.eos)
	require.Len(t, out.chunks, 300)

	header := annexB(mp4test.SPS, mp4test.PPS)
	for i, chunk := range out.chunks {
		n := i + 1
		assert.Equal(t, uint32(n), chunk.Sample)
		assert.Equal(t, o.IsSync(n), chunk.KeyFrame)
		assert.False(t, chunk.Discontinuity)
		assert.True(t, chunk.HasDTS)

		expected := annexB(o.NALUs(n)...)
		if n == 1 {
			expected = append(header, expected...)
		}
		assert.Equal(t, expected, chunk.Data, "sample %v", n)
		if i > 0 {
			assert.Greater(t, chunk.PTS, out.chunks[i-1].PTS)
			assert.False(t, bytes.Contains(chunk.Data, header))
		}
	}
}

func TestReaderAppliesSeek(t *testing.T) {
	o := mp4test.Default()
	out := runReader(t, mp4test.WriteFile(t, o), vplay.Command{Kind: vplay.Seek, Fraction: 0.5})

	require.NoError(t, out.init.Err)
	require.NotEmpty(t, out.chunks)
	first := out.chunks[0]
	assert.Equal(t, uint32(121), first.Sample)
	assert.True(t, first.KeyFrame)
	assert.True(t, first.Discontinuity)
	assert.True(t, bytes.HasPrefix(first.Data, annexB(mp4test.SPS, mp4test.PPS)))

	assert.Len(t, out.chunks, 300-120)
	for i, chunk := range out.chunks[1:] {
		assert.Equal(t, first.Sample+uint32(i)+1, chunk.Sample)
		assert.False(t, chunk.Discontinuity)
	}
	assert.Equal(t, 1, out.eos)
}

func TestReaderOpenFailure(t *testing.T) {
	out := runReader(t, filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, out.init.Err)
	assert.Equal(t, out.init.Err, out.err)
	assert.Empty(t, out.chunks)
	assert.Zero(t, out.eos)
}

func TestReaderNoSuitableTrack(t *testing.T) {
	o := mp4test.Default()
	o.HandlerType = "soun"
	out := runReader(t, mp4test.WriteFile(t, o))
	assert.ErrorIs(t, out.init.Err, vplay.ErrNoSuitableTrack)
	assert.Empty(t, out.chunks)
}

func TestReaderStopsOnDisconnect(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		chunkTx, chunkRx := queue.New[vplay.Event[vplay.EncodedChunk]](2)
		init := make(chan InitResult, 1)
		done := make(chan error, 1)
		go func() {
			done <- NewReader(path, chunkTx, nil, nil).Run(t.Context(), init)
		}()
		require.NoError(t, (<-init).Err)

		_, err := chunkRx.Recv(t.Context())
		require.NoError(t, err)
		chunkRx.Close()

		assert.NoError(t, <-done)
	})
}

func TestReaderStopsOnCancel(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		chunkTx, chunkRx := queue.New[vplay.Event[vplay.EncodedChunk]](2)
		init := make(chan InitResult, 1)
		done := make(chan error, 1)
		go func() {
			done <- NewReader(path, chunkTx, nil, nil).Run(ctx, init)
		}()
		require.NoError(t, (<-init).Err)

		// the reader blocks on the full queue until cancelled
		synctest.Wait()
		assert.Equal(t, 2, chunkRx.Len())
		cancel()
		assert.NoError(t, <-done)

		// the sender end was closed
		for range 2 {
			_, err := chunkRx.Recv(t.Context())
			require.NoError(t, err)
		}
		_, err := chunkRx.Recv(t.Context())
		assert.ErrorIs(t, err, queue.ErrDisconnected)
	})
}
