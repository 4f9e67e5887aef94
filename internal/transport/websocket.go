// Package transport hosts the two frame ingress surfaces: the WebSocket
// endpoint and the UDP listener. Both feed the same pipeline; only the reply
// channel differs.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/posai/scan-gateway/internal/pipeline"
	"github.com/posai/scan-gateway/internal/protocol"
)

const (
	wsWriteWait   = 10 * time.Second
	wsMaxFrameLen = 16 * 1024 * 1024 // largest accepted envelope
)

// WSServer upgrades HTTP connections and runs one reader loop per client.
type WSServer struct {
	pipe        *pipeline.Pipeline
	idleTimeout time.Duration
	upgrader    websocket.Upgrader
}

// NewWSServer builds the WebSocket ingress. idleTimeout is refreshed on
// every inbound message, pings included.
func NewWSServer(pipe *pipeline.Pipeline, idleTimeout time.Duration) *WSServer {
	return &WSServer{
		pipe:        pipe,
		idleTimeout: idleTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Vision workers are native clients, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler to mount at the configured ws path.
func (s *WSServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.readLoop(r.Context(), conn)
	}
}

// readLoop owns all reads on the connection. Frames are processed in place
// so responses are emitted in request order; a sender that outruns the
// backend blocks on the TCP window, which is the intended backpressure.
func (s *WSServer) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// writeMu guards the wire against interleaved replies.
	var writeMu sync.Mutex
	respond := func(_ *protocol.Envelope, resp *protocol.FrameResponse) {
		payload := protocol.EncodeResponse(resp)
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Warn("websocket write failed", "remote", conn.RemoteAddr(), "error", err)
		}
	}

	refresh := func() { conn.SetReadDeadline(time.Now().Add(s.idleTimeout)) }

	conn.SetReadLimit(wsMaxFrameLen)
	refresh()
	// A ping refreshes the deadline but produces no pipeline work.
	conn.SetPingHandler(func(appData string) error {
		refresh()
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}
		refresh()
		if len(data) == 0 {
			continue
		}
		s.pipe.Process(ctx, "ws", data, respond)
	}
}
