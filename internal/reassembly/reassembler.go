// Package reassembly buffers UDP datagram chunks until a complete frame
// envelope can be handed to the pipeline. Incomplete messages are evicted by
// a background staleness sweeper; the sender is never notified.
package reassembly

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/posai/scan-gateway/internal/metrics"
	"github.com/posai/scan-gateway/internal/protocol"
)

// Defaults match the gateway's deployment profile: clients retransmit whole
// frames, so anything idle for a few seconds is dead.
const (
	DefaultStaleAfter = 3 * time.Second
	DefaultSweepEvery = 2 * time.Second
)

// partial buffers one in-flight chunked message. The first-seen datagram
// fixes the expected chunk count.
type partial struct {
	total      uint16
	chunks     map[uint16][]byte
	size       int
	lastUpdate time.Time
}

// Reassembler maintains the map of in-flight partial messages. All map
// access is serialized by one mutex; concatenation of a completed message
// happens outside the lock.
type Reassembler struct {
	mu       sync.Mutex
	partials map[uint64]*partial

	staleAfter time.Duration
	sweepEvery time.Duration
}

// New creates a reassembler. Zero durations fall back to the defaults.
func New(staleAfter, sweepEvery time.Duration) *Reassembler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepEvery
	}
	return &Reassembler{
		partials:   make(map[uint64]*partial),
		staleAfter: staleAfter,
		sweepEvery: sweepEvery,
	}
}

// Add records one chunk. When the chunk completes its message, the
// reassembled buffer is returned with done=true and the message is already
// removed from the map. A chunk with an out-of-range index or a zero declared
// total is dropped.
func (r *Reassembler) Add(h protocol.ChunkHeader, payload []byte) (buf []byte, done bool) {
	if h.TotalChunks == 0 {
		return nil, false
	}

	// The payload slice aliases the receive buffer; copy before storing.
	p := make([]byte, len(payload))
	copy(p, payload)

	r.mu.Lock()
	pm, ok := r.partials[h.MessageID]
	if !ok {
		pm = &partial{
			total:  h.TotalChunks,
			chunks: make(map[uint16][]byte, h.TotalChunks),
		}
		r.partials[h.MessageID] = pm
		metrics.ReassemblyActive.Inc()
	}
	if h.ChunkIndex >= pm.total {
		r.mu.Unlock()
		return nil, false
	}
	if _, dup := pm.chunks[h.ChunkIndex]; !dup {
		pm.size += len(p)
	}
	pm.chunks[h.ChunkIndex] = p
	pm.lastUpdate = time.Now()

	if len(pm.chunks) < int(pm.total) {
		r.mu.Unlock()
		return nil, false
	}

	// Complete: remove before the buffer leaves the reassembler.
	delete(r.partials, h.MessageID)
	metrics.ReassemblyActive.Dec()
	r.mu.Unlock()

	buf = make([]byte, 0, pm.size)
	for i := uint16(0); i < pm.total; i++ {
		buf = append(buf, pm.chunks[i]...)
	}
	if len(buf) == 0 {
		return nil, false
	}
	return buf, true
}

// Len reports the number of buffered partial messages.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.partials)
}

// Run drives the staleness sweeper until ctx is cancelled.
func (r *Reassembler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.sweep(now); n > 0 {
				slog.Debug("reassembly sweep evicted partials", "count", n)
			}
		}
	}
}

// sweep evicts partials idle longer than the staleness horizon and returns
// the eviction count.
func (r *Reassembler) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, pm := range r.partials {
		if now.Sub(pm.lastUpdate) > r.staleAfter {
			delete(r.partials, id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.ReassemblyEvictions.Add(float64(evicted))
		metrics.ReassemblyActive.Sub(float64(evicted))
	}
	return evicted
}
