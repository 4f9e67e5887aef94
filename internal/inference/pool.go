// Package inference owns the pool of long-lived gRPC clients to the
// downstream AI service. Selection is strictly round-robin; there is no
// health-aware weighting.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/posai/scan-gateway/pb"
)

// ErrNoBackend is surfaced verbatim to clients when the pool was allowed to
// start degraded and holds no clients.
var ErrNoBackend = errors.New("No inference backend available")

const (
	// DefaultPoolSize is the number of clients kept per target.
	DefaultPoolSize = 3

	// probeTimeout bounds the liveness RPC issued before a client is
	// admitted into the pool.
	probeTimeout = 5 * time.Second

	// Connect-with-retry parameters: exponential backoff starting at
	// backoffInitial, doubled per attempt, capped at backoffMax.
	backoffInitial = 1 * time.Second
	backoffMax     = 30 * time.Second
	maxAttempts    = 10
)

// Config describes how to build a pool.
type Config struct {
	// Target is the inference service address, host:port.
	Target string

	// Size is the number of clients; values below 1 use DefaultPoolSize.
	Size int

	// AllowDegraded permits construction to succeed with zero clients when
	// the target is unreachable. ProcessFrame then returns ErrNoBackend.
	AllowDegraded bool
}

// Pool is a fixed set of inference clients selected by an atomic counter.
type Pool struct {
	clients []pb.InferenceServiceClient
	conns   []*grpc.ClientConn
	counter atomic.Uint64
}

// NewPool dials cfg.Size clients sequentially. If any dial fails, previously
// created clients are closed; construction then either fails or, when
// degraded mode is allowed, yields an empty pool.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	size := cfg.Size
	if size < 1 {
		size = DefaultPoolSize
	}

	p := &Pool{}
	for i := 0; i < size; i++ {
		conn, client, err := connectWithRetry(ctx, cfg.Target)
		if err != nil {
			p.Close()
			if cfg.AllowDegraded {
				log.Printf("inference: target %s unreachable, starting degraded: %v", cfg.Target, err)
				return &Pool{}, nil
			}
			return nil, fmt.Errorf("inference client %d/%d: %w", i+1, size, err)
		}
		p.conns = append(p.conns, conn)
		p.clients = append(p.clients, client)
	}

	log.Printf("inference: pool ready with %d clients -> %s", len(p.clients), cfg.Target)
	return p, nil
}

// NewStaticPool builds a pool over pre-made clients. Used by tests and by
// callers that manage their own connections.
func NewStaticPool(clients ...pb.InferenceServiceClient) *Pool {
	return &Pool{clients: clients}
}

// connectWithRetry dials the target and verifies liveness with a metadata
// RPC before admitting the client.
func connectWithRetry(ctx context.Context, target string) (*grpc.ClientConn, pb.InferenceServiceClient, error) {
	backoff := backoffInitial
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := grpc.NewClient(target,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)),
		)
		if err == nil {
			client := pb.NewInferenceServiceClient(conn)

			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			_, err = client.GetModelInfo(probeCtx, &pb.ModelInfoRequest{})
			cancel()
			if err == nil {
				return conn, client, nil
			}
			conn.Close()
		}
		lastErr = err
		log.Printf("inference: connect attempt %d/%d to %s failed: %v", attempt, maxAttempts, target, err)

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
	return nil, nil, fmt.Errorf("no connection after %d attempts: %w", maxAttempts, lastErr)
}

// Size reports the number of live clients.
func (p *Pool) Size() int { return len(p.clients) }

// next picks a client round-robin.
func (p *Pool) next() pb.InferenceServiceClient {
	idx := p.counter.Add(1) % uint64(len(p.clients))
	return p.clients[idx]
}

// ProcessFrame dispatches one frame to the next client in rotation.
func (p *Pool) ProcessFrame(ctx context.Context, image []byte, width, height, channels int32, format string) (*pb.FrameResponse, error) {
	if len(p.clients) == 0 {
		return nil, ErrNoBackend
	}
	return p.next().ProcessFrame(ctx, &pb.FrameRequest{
		Image:    image,
		Width:    width,
		Height:   height,
		Channels: channels,
		Format:   format,
	})
}

// GetServerStats queries the next client in rotation for backend stats.
func (p *Pool) GetServerStats(ctx context.Context) (*pb.ServerStats, error) {
	if len(p.clients) == 0 {
		return nil, ErrNoBackend
	}
	return p.next().GetServerStats(ctx, &pb.ServerStatsRequest{})
}

// Close tears down all connections. Safe on a degraded (empty) pool.
func (p *Pool) Close() {
	for _, conn := range p.conns {
		conn.Close()
	}
	p.conns = nil
	p.clients = nil
}
