package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posai/scan-gateway/internal/auth"
	"github.com/posai/scan-gateway/internal/inference"
	"github.com/posai/scan-gateway/internal/pipeline"
	"github.com/posai/scan-gateway/internal/protocol"
	"github.com/posai/scan-gateway/internal/reassembly"
	"github.com/posai/scan-gateway/pb"
)

func testPipeline(t *testing.T) (*pipeline.Pipeline, string) {
	t.Helper()
	authority, err := auth.NewAuthority([]byte("transport-test-secret"), time.Hour)
	require.NoError(t, err)
	token, err := authority.Issue(1, "warung1", "dev-1", "pro")
	require.NoError(t, err)

	pool := inference.NewStaticPool(&pb.MockInferenceClient{Response: &pb.FrameResponse{
		Success: true,
		AiResults: &pb.AIResults{Detections: []*pb.Detection{
			{ClassName: "cucur", Confidence: 0.9},
		}},
	}})
	return pipeline.New(authority, pool, nil), token
}

func frameBytes(t *testing.T, token string, seq uint64) []byte {
	t.Helper()
	wire, err := (&protocol.Envelope{
		Token:     token,
		SessionID: "cam-1",
		FrameSeq:  seq,
		Width:     320,
		Height:    240,
		Format:    "jpeg",
		Image:     []byte("img"),
	}).Marshal()
	require.NoError(t, err)
	return wire
}

func TestWSServer_FrameRoundTrip(t *testing.T) {
	pipe, token := testPipeline(t)
	ws := NewWSServer(pipe, 5*time.Second)

	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frameBytes(t, token, 7)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var resp protocol.FrameResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(7), resp.FrameSequence)
	require.Len(t, resp.AIResults.Detections, 1)
	assert.Equal(t, "cucur", resp.AIResults.Detections[0].ClassName)
}

func TestWSServer_ResponsesStayOrdered(t *testing.T) {
	pipe, token := testPipeline(t)
	ws := NewWSServer(pipe, 5*time.Second)

	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	const frames = 5
	for seq := uint64(1); seq <= frames; seq++ {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frameBytes(t, token, seq)))
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for seq := uint64(1); seq <= frames; seq++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var resp protocol.FrameResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Equal(t, seq, resp.FrameSequence)
	}
}

func TestWSServer_MalformedFrameStillAnswered(t *testing.T) {
	pipe, _ := testPipeline(t)
	ws := NewWSServer(pipe, 5*time.Second)

	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0x01}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp protocol.FrameResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "malformed envelope", resp.Message)
}

func TestUDPServer_ChunkedFrameRoundTrip(t *testing.T) {
	pipe, token := testPipeline(t)
	reasm := reassembly.New(3*time.Second, 2*time.Second)

	srv, err := NewUDPServer("127.0.0.1:0", pipe, reasm)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	// Small chunk size forces a multi-datagram message.
	frame := frameBytes(t, token, 11)
	for _, datagram := range protocol.SplitChunks(1, frame, 16) {
		_, err := client.Write(datagram)
		require.NoError(t, err)
	}

	resp := readUDPResponse(t, client)
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(11), resp.FrameSequence)
	require.Len(t, resp.AIResults.Detections, 1)
}

func TestUDPServer_ShortDatagramIgnored(t *testing.T) {
	pipe, token := testPipeline(t)
	reasm := reassembly.New(3*time.Second, 2*time.Second)

	srv, err := NewUDPServer("127.0.0.1:0", pipe, reasm)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	// Shorter than the chunk header: no reply, no crash.
	_, err = client.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	// The listener still serves well-formed traffic afterwards.
	for _, datagram := range protocol.SplitChunks(2, frameBytes(t, token, 3), protocol.MaxChunkPayload) {
		_, err := client.Write(datagram)
		require.NoError(t, err)
	}
	resp := readUDPResponse(t, client)
	assert.Equal(t, uint64(3), resp.FrameSequence)
}

func TestUDPServer_IdleSessionsEvicted(t *testing.T) {
	pipe, _ := testPipeline(t)
	srv, err := NewUDPServer("127.0.0.1:0", pipe, reassembly.New(time.Second, time.Second))
	require.NoError(t, err)
	defer srv.Close()

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
	srv.sessionsMu.Lock()
	srv.sessions["stale"] = &peerSession{addr: addr, lastSeen: time.Now().Add(-10 * time.Minute)}
	srv.sessions["fresh"] = &peerSession{addr: addr, lastSeen: time.Now()}
	srv.sessionsMu.Unlock()

	assert.Equal(t, 1, srv.sweepSessions(time.Now()))

	srv.sessionsMu.Lock()
	defer srv.sessionsMu.Unlock()
	assert.NotContains(t, srv.sessions, "stale")
	assert.Contains(t, srv.sessions, "fresh")
}

// readUDPResponse collects response datagrams until the chunked JSON payload
// is complete.
func readUDPResponse(t *testing.T, client net.Conn) *protocol.FrameResponse {
	t.Helper()
	parts := map[uint16][]byte{}
	var total uint16

	buf := make([]byte, 64*1024)
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		n, err := client.Read(buf)
		require.NoError(t, err)

		h, payload, err := protocol.ParseChunk(buf[:n])
		require.NoError(t, err)
		cp := make([]byte, len(payload))
		copy(cp, payload)
		parts[h.ChunkIndex] = cp
		total = h.TotalChunks

		if len(parts) == int(total) {
			break
		}
	}

	var joined []byte
	for i := uint16(0); i < total; i++ {
		joined = append(joined, parts[i]...)
	}

	resp := &protocol.FrameResponse{}
	require.NoError(t, json.Unmarshal(joined, resp))
	return resp
}
