package protocol

import (
	"encoding/binary"
	"errors"
)

// ============================================================================
// UDP CHUNK HEADER (12 bytes)
// ============================================================================

// ChunkHeaderSize is the fixed prefix on every UDP datagram:
// [messageId:u64 BE][chunkIndex:u16 BE][totalChunks:u16 BE].
const ChunkHeaderSize = 12

// MaxChunkPayload is the recommended payload size per datagram, chosen to
// keep each datagram under a typical 1500-byte MTU.
const MaxChunkPayload = 1400

// ErrShortDatagram is returned for datagrams shorter than the chunk header.
// Callers drop these silently.
var ErrShortDatagram = errors.New("datagram shorter than chunk header")

// ChunkHeader identifies one fragment of a chunked message.
type ChunkHeader struct {
	MessageID   uint64
	ChunkIndex  uint16
	TotalChunks uint16
}

// ParseChunk splits a datagram into its header and payload.
func ParseChunk(datagram []byte) (ChunkHeader, []byte, error) {
	if len(datagram) < ChunkHeaderSize {
		return ChunkHeader{}, nil, ErrShortDatagram
	}
	h := ChunkHeader{
		MessageID:   binary.BigEndian.Uint64(datagram[0:8]),
		ChunkIndex:  binary.BigEndian.Uint16(datagram[8:10]),
		TotalChunks: binary.BigEndian.Uint16(datagram[10:12]),
	}
	return h, datagram[ChunkHeaderSize:], nil
}

// EncodeChunk prepends a chunk header to a payload.
func EncodeChunk(h ChunkHeader, payload []byte) []byte {
	buf := make([]byte, ChunkHeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], h.MessageID)
	binary.BigEndian.PutUint16(buf[8:10], h.ChunkIndex)
	binary.BigEndian.PutUint16(buf[10:12], h.TotalChunks)
	copy(buf[ChunkHeaderSize:], payload)
	return buf
}

// SplitChunks slices payload into datagrams of at most chunkSize payload
// bytes, all tagged with messageID. An empty payload still produces one
// (empty) chunk so the receiver can complete the message.
func SplitChunks(messageID uint64, payload []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 {
		chunkSize = MaxChunkPayload
	}

	total := (len(payload) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}

	out := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		h := ChunkHeader{
			MessageID:   messageID,
			ChunkIndex:  uint16(i),
			TotalChunks: uint16(total),
		}
		out = append(out, EncodeChunk(h, payload[start:end]))
	}
	return out
}
