package reassembly

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posai/scan-gateway/internal/protocol"
)

func chunkOf(msgID uint64, idx, total uint16, payload []byte) (protocol.ChunkHeader, []byte) {
	return protocol.ChunkHeader{MessageID: msgID, ChunkIndex: idx, TotalChunks: total}, payload
}

func TestReassembler_OutOfOrderCompletion(t *testing.T) {
	r := New(3*time.Second, 2*time.Second)

	original := bytes.Repeat([]byte{0xC4}, 3600)
	parts := [][]byte{original[:1200], original[1200:2400], original[2400:]}

	// Arrival order 2, 0, 1 — any permutation must yield identical output.
	h, p := chunkOf(0xDEADBEEF, 2, 3, parts[2])
	_, done := r.Add(h, p)
	assert.False(t, done)

	h, p = chunkOf(0xDEADBEEF, 0, 3, parts[0])
	_, done = r.Add(h, p)
	assert.False(t, done)

	h, p = chunkOf(0xDEADBEEF, 1, 3, parts[1])
	buf, done := r.Add(h, p)
	require.True(t, done)
	assert.Equal(t, original, buf)

	// Completion removes the partial before the buffer leaves the reassembler.
	assert.Equal(t, 0, r.Len())
}

func TestReassembler_ArrivalOrderInsensitive(t *testing.T) {
	original := make([]byte, 7000)
	rand.New(rand.NewSource(1)).Read(original)

	const total = 5
	chunkLen := (len(original) + total - 1) / total

	for trial := 0; trial < 10; trial++ {
		r := New(time.Second, time.Second)
		order := rand.New(rand.NewSource(int64(trial))).Perm(total)

		var buf []byte
		var done bool
		for _, idx := range order {
			start := idx * chunkLen
			end := start + chunkLen
			if end > len(original) {
				end = len(original)
			}
			h, p := chunkOf(99, uint16(idx), total, original[start:end])
			buf, done = r.Add(h, p)
		}
		require.True(t, done, "trial %d", trial)
		assert.Equal(t, original, buf, "trial %d", trial)
	}
}

func TestReassembler_SingleChunkMessage(t *testing.T) {
	r := New(time.Second, time.Second)
	h, p := chunkOf(5, 0, 1, []byte("whole frame"))
	buf, done := r.Add(h, p)
	require.True(t, done)
	assert.Equal(t, []byte("whole frame"), buf)
}

func TestReassembler_RejectsBadChunks(t *testing.T) {
	r := New(time.Second, time.Second)

	// Zero declared total.
	h, p := chunkOf(1, 0, 0, []byte("x"))
	_, done := r.Add(h, p)
	assert.False(t, done)
	assert.Equal(t, 0, r.Len())

	// Index outside the first-seen total.
	h, p = chunkOf(2, 0, 2, []byte("a"))
	_, done = r.Add(h, p)
	require.False(t, done)
	h, p = chunkOf(2, 7, 2, []byte("b"))
	_, done = r.Add(h, p)
	assert.False(t, done)
	assert.Equal(t, 1, r.Len())
}

func TestReassembler_EmptyCompletionDropped(t *testing.T) {
	r := New(time.Second, time.Second)
	h, p := chunkOf(3, 0, 1, nil)
	buf, done := r.Add(h, p)
	assert.False(t, done)
	assert.Nil(t, buf)
	assert.Equal(t, 0, r.Len())
}

func TestReassembler_DuplicateChunkIdempotent(t *testing.T) {
	r := New(time.Second, time.Second)

	h, p := chunkOf(4, 0, 2, []byte("aa"))
	_, done := r.Add(h, p)
	require.False(t, done)

	// Same chunk again: still incomplete, no double counting.
	_, done = r.Add(h, p)
	require.False(t, done)

	h, p = chunkOf(4, 1, 2, []byte("bb"))
	buf, done := r.Add(h, p)
	require.True(t, done)
	assert.Equal(t, []byte("aabb"), buf)
}

func TestReassembler_StalenessEviction(t *testing.T) {
	r := New(50*time.Millisecond, time.Hour)

	h, p := chunkOf(0xABCD, 0, 2, []byte("half"))
	_, done := r.Add(h, p)
	require.False(t, done)
	require.Equal(t, 1, r.Len())

	evicted := r.sweep(time.Now().Add(100 * time.Millisecond))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, r.Len())

	// A fresh partial survives the sweep.
	h, p = chunkOf(0xABCE, 0, 2, []byte("half"))
	r.Add(h, p)
	assert.Equal(t, 0, r.sweep(time.Now()))
	assert.Equal(t, 1, r.Len())
}
