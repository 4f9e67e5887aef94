// The gateway binary runs the frame ingestion gateway: REST + WebSocket on
// one TCP port, the UDP frame listener on the same port number, the
// reassembly sweeper, and the inference client pool.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/posai/scan-gateway/internal/api"
	"github.com/posai/scan-gateway/internal/auth"
	"github.com/posai/scan-gateway/internal/config"
	"github.com/posai/scan-gateway/internal/inference"
	"github.com/posai/scan-gateway/internal/logsink"
	"github.com/posai/scan-gateway/internal/pipeline"
	"github.com/posai/scan-gateway/internal/reassembly"
	"github.com/posai/scan-gateway/internal/store"
	"github.com/posai/scan-gateway/internal/transport"
)

// drainTimeout bounds graceful shutdown after a signal.
const drainTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("GATEWAY_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	authority, err := auth.NewAuthority([]byte(cfg.Auth.Secret), auth.DefaultTokenTTL)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	sink, err := logsink.New(cfg.Log.Dir)
	if err != nil {
		log.Fatalf("logsink: %v", err)
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := inference.NewPool(ctx, inference.Config{
		Target:        cfg.InferenceTarget(),
		Size:          cfg.Inference.PoolSize,
		AllowDegraded: cfg.Inference.AllowDegraded,
	})
	if err != nil {
		log.Fatalf("inference: %v", err)
	}
	defer pool.Close()

	pipe := pipeline.New(authority, pool, st)

	reasm := reassembly.New(reassembly.DefaultStaleAfter, reassembly.DefaultSweepEvery)
	go reasm.Run(ctx)

	idleTimeout := time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second
	ws := transport.NewWSServer(pipe, idleTimeout)

	udp, err := transport.NewUDPServer(cfg.ListenAddr(), pipe, reasm)
	if err != nil {
		log.Fatalf("udp listen: %v", err)
	}
	go func() {
		if err := udp.Serve(ctx); err != nil {
			log.Printf("udp serve: %v", err)
		}
	}()

	server := api.NewServer(st, authority, pool, sink, cfg.Server.WSPath, ws.Handler())
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: server.Router(),
	}

	go func() {
		log.Printf("gateway listening on %s (ws at %s, udp on same port)", cfg.ListenAddr(), cfg.Server.WSPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		log.Printf("http drain: %v", err)
	}
	udp.Close()
	log.Println("gateway stopped")
}
