// Package pipeline is the single execution path for frames from both the
// WebSocket and UDP transports: decode, authenticate, validate, dispatch to
// the inference pool, respond, and audit out-of-band.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/posai/scan-gateway/internal/auth"
	"github.com/posai/scan-gateway/internal/metrics"
	"github.com/posai/scan-gateway/internal/protocol"
	"github.com/posai/scan-gateway/internal/store"
	"github.com/posai/scan-gateway/pb"
)

// Responder abstracts the reply channel so both transports share this code.
// env is nil when the envelope never parsed; resp is always non-nil.
type Responder func(env *protocol.Envelope, resp *protocol.FrameResponse)

// TokenVerifier verifies a frame's bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Backend dispatches a frame to the inference service.
type Backend interface {
	ProcessFrame(ctx context.Context, image []byte, width, height, channels int32, format string) (*pb.FrameResponse, error)
}

// AuditSink persists scan-audit rows.
type AuditSink interface {
	InsertScanAudit(ctx context.Context, a *store.ScanAudit) error
}

// auditTimeout bounds the background audit insert.
const auditTimeout = 5 * time.Second

// Pipeline wires the per-frame collaborators. All fields are set at
// construction; the struct is safe for concurrent use.
type Pipeline struct {
	verifier TokenVerifier
	backend  Backend
	audit    AuditSink
}

// New builds a pipeline. audit may be nil to disable scan auditing.
func New(verifier TokenVerifier, backend Backend, audit AuditSink) *Pipeline {
	return &Pipeline{verifier: verifier, backend: backend, audit: audit}
}

// Process handles one raw message from a transport. transport labels the
// metrics ("ws" or "udp"). The responder is invoked at most once.
func (p *Pipeline) Process(ctx context.Context, transport string, raw []byte, respond Responder) {
	started := time.Now()
	defer func() { metrics.FrameDuration.Observe(time.Since(started).Seconds()) }()

	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		metrics.FramesTotal.WithLabelValues(transport, "malformed").Inc()
		respond(nil, &protocol.FrameResponse{
			Success: false,
			Message: "malformed envelope",
			FrameID: uuid.NewString(),
		})
		return
	}

	frameID := uuid.NewString()

	claims, err := p.verifier.Verify(env.Token)
	if err != nil {
		metrics.FramesTotal.WithLabelValues(transport, "unauthorized").Inc()
		respond(env, &protocol.FrameResponse{
			Success:        false,
			Message:        "Unauthorized: invalid or expired token",
			FrameID:        frameID,
			FrameSequence:  env.FrameSeq,
			OriginalWidth:  env.Width,
			OriginalHeight: env.Height,
		})
		return
	}

	// A frame failing semantic validation may be garbage; replying could
	// amplify traffic, so it is dropped without a response.
	if env.Width <= 0 || env.Height <= 0 || len(env.Image) == 0 {
		metrics.FramesTotal.WithLabelValues(transport, "dropped").Inc()
		return
	}

	res, err := p.backend.ProcessFrame(ctx, env.Image, env.Width, env.Height, env.Channels(), env.Format)
	if err != nil {
		metrics.FramesTotal.WithLabelValues(transport, "ai_error").Inc()
		respond(env, &protocol.FrameResponse{
			Success:        false,
			Message:        aiErrorMessage(err),
			FrameID:        frameID,
			FrameSequence:  env.FrameSeq,
			OriginalWidth:  env.Width,
			OriginalHeight: env.Height,
		})
		p.writeAudit(claims, env, 0, "error")
		return
	}

	detections := convertDetections(res)
	metrics.FramesTotal.WithLabelValues(transport, "success").Inc()
	respond(env, &protocol.FrameResponse{
		Success:        true,
		Message:        res.Message,
		FrameID:        frameID,
		FrameSequence:  env.FrameSeq,
		AIResults:      protocol.AIResults{Detections: detections},
		OriginalWidth:  env.Width,
		OriginalHeight: env.Height,
	})
	p.writeAudit(claims, env, len(detections), "success")
}

// aiErrorMessage keeps the degraded-pool message verbatim and prefixes
// everything else.
func aiErrorMessage(err error) string {
	if err.Error() == "No inference backend available" {
		return err.Error()
	}
	return "AI Error: " + err.Error()
}

// convertDetections maps backend detections to the wire shape, preserving
// order and zero values. Never returns nil.
func convertDetections(res *pb.FrameResponse) []protocol.Detection {
	if res.AiResults == nil {
		return []protocol.Detection{}
	}
	out := make([]protocol.Detection, 0, len(res.AiResults.Detections))
	for _, d := range res.AiResults.Detections {
		out = append(out, protocol.Detection{
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			BBox: protocol.BBox{
				XMin: d.Box.XMin,
				YMin: d.Box.YMin,
				XMax: d.Box.XMax,
				YMax: d.Box.YMax,
			},
		})
	}
	return out
}

// writeAudit fires the best-effort scan-audit insert off the response path.
// Only authenticated frames reach here; unauthorized frames leave no row.
func (p *Pipeline) writeAudit(claims *auth.Claims, env *protocol.Envelope, detections int, outcome string) {
	if p.audit == nil {
		return
	}
	row := &store.ScanAudit{
		UserID:         claims.UserID,
		DeviceID:       claims.DeviceID,
		SessionID:      env.SessionID,
		FrameSeq:       env.FrameSeq,
		DetectionCount: detections,
		Outcome:        outcome,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := p.audit.InsertScanAudit(ctx, row); err != nil {
			metrics.AuditDropped.Inc()
			slog.Warn("scan audit dropped", "user_id", row.UserID, "frame_seq", row.FrameSeq, "error", err)
		}
	}()
}
