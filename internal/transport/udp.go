package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/posai/scan-gateway/internal/pipeline"
	"github.com/posai/scan-gateway/internal/protocol"
	"github.com/posai/scan-gateway/internal/reassembly"
)

const (
	// udpReadBuf is sized for the largest datagram the kernel will hand us.
	udpReadBuf = 64 * 1024

	// Session entries idle longer than sessionIdleAfter are evicted so the
	// peer map stays bounded over the life of the process.
	sessionIdleAfter  = 2 * time.Minute
	sessionSweepEvery = 30 * time.Second
)

// peerSession is the last seen address for one session id.
type peerSession struct {
	addr     *net.UDPAddr
	lastSeen time.Time
}

// UDPServer owns the datagram socket. One receive loop reads chunks and
// hands completed envelopes to worker goroutines; the transmit path needs no
// shared stream, so workers send replies directly.
type UDPServer struct {
	conn  *net.UDPConn
	pipe  *pipeline.Pipeline
	reasm *reassembly.Reassembler

	// sessions maps session id to the last seen peer address. Written on
	// every decoded frame, read at response emission, swept when idle.
	sessionsMu sync.Mutex
	sessions   map[string]*peerSession

	// msgID seeds fresh message ids for chunked responses.
	msgID atomic.Uint64
}

// NewUDPServer binds the socket at addr.
func NewUDPServer(addr string, pipe *pipeline.Pipeline, reasm *reassembly.Reassembler) (*UDPServer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	s := &UDPServer{
		conn:     conn,
		pipe:     pipe,
		reasm:    reasm,
		sessions: make(map[string]*peerSession),
	}
	s.msgID.Store(uint64(time.Now().UnixNano()))
	return s, nil
}

// Serve runs the receive loop until ctx is cancelled or the socket closes.
func (s *UDPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()
	go s.runSessionSweeper(ctx)

	buf := make([]byte, udpReadBuf)
	for {
		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		header, payload, err := protocol.ParseChunk(buf[:n])
		if err != nil {
			// Shorter than the chunk header: dropped silently.
			continue
		}

		// Add copies the payload, so buf can be reused immediately. The
		// completed buffer leaves the map before it leaves the reassembler.
		complete, done := s.reasm.Add(header, payload)
		if !done {
			continue
		}
		go s.handleFrame(ctx, complete, peer)
	}
}

// handleFrame runs the pipeline for one reassembled envelope and chunks the
// JSON response back with a fresh message id.
func (s *UDPServer) handleFrame(ctx context.Context, raw []byte, peer *net.UDPAddr) {
	s.pipe.Process(ctx, "udp", raw, func(env *protocol.Envelope, resp *protocol.FrameResponse) {
		dest := peer
		if env != nil && env.SessionID != "" {
			s.sessionsMu.Lock()
			s.sessions[env.SessionID] = &peerSession{addr: peer, lastSeen: time.Now()}
			dest = s.sessions[env.SessionID].addr
			s.sessionsMu.Unlock()
		}

		payload := protocol.EncodeResponse(resp)
		for _, datagram := range protocol.SplitChunks(s.msgID.Add(1), payload, protocol.MaxChunkPayload) {
			if _, err := s.conn.WriteToUDP(datagram, dest); err != nil {
				slog.Warn("udp response write failed", "peer", dest, "error", err)
				return
			}
		}
	})
}

// runSessionSweeper evicts idle session entries until ctx is cancelled.
func (s *UDPServer) runSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sweepSessions(now); n > 0 {
				slog.Debug("udp session sweep evicted entries", "count", n)
			}
		}
	}
}

// sweepSessions drops sessions idle longer than sessionIdleAfter and returns
// the eviction count.
func (s *UDPServer) sweepSessions(now time.Time) int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > sessionIdleAfter {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Addr reports the bound address.
func (s *UDPServer) Addr() net.Addr { return s.conn.LocalAddr() }

// Close releases the socket.
func (s *UDPServer) Close() error { return s.conn.Close() }
