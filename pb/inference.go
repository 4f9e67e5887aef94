// Package pb defines the RPC surface of the downstream inference service.
// The service speaks JSON-encoded messages over gRPC, so the client here is
// hand-rolled around ClientConn.Invoke with a JSON call codec instead of
// protoc output.
package pb

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// CodecName is the gRPC content-subtype used for all inference calls.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals RPC messages as plain JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return CodecName }

// Inference Types

type BoundingBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

type Detection struct {
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

type AIResults struct {
	Detections []*Detection `json:"detections"`
}

type FrameRequest struct {
	Image    []byte `json:"image"`
	Width    int32  `json:"width"`
	Height   int32  `json:"height"`
	Channels int32  `json:"channels"`
	Format   string `json:"format"`
}

type FrameResponse struct {
	Success          bool       `json:"success"`
	Message          string     `json:"message"`
	AiResults        *AIResults `json:"ai_results"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
}

type ModelInfoRequest struct{}

type ModelInfo struct {
	Name     string                 `json:"name"`
	Version  string                 `json:"version"`
	Classes  []string               `json:"classes"`
	LoadedAt *timestamppb.Timestamp `json:"loaded_at"`
}

type ServerStatsRequest struct{}

type ServerStats struct {
	UptimeSeconds   int64   `json:"uptime_seconds"`
	FramesProcessed uint64  `json:"frames_processed"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	Workers         int32   `json:"workers"`
}

// Service Interface

type InferenceServiceClient interface {
	ProcessFrame(ctx context.Context, in *FrameRequest, opts ...grpc.CallOption) (*FrameResponse, error)
	GetModelInfo(ctx context.Context, in *ModelInfoRequest, opts ...grpc.CallOption) (*ModelInfo, error)
	GetServerStats(ctx context.Context, in *ServerStatsRequest, opts ...grpc.CallOption) (*ServerStats, error)
}

type inferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInferenceServiceClient wraps a connection with the inference surface.
func NewInferenceServiceClient(cc grpc.ClientConnInterface) InferenceServiceClient {
	return &inferenceServiceClient{cc: cc}
}

func (c *inferenceServiceClient) ProcessFrame(ctx context.Context, in *FrameRequest, opts ...grpc.CallOption) (*FrameResponse, error) {
	out := new(FrameResponse)
	if err := c.cc.Invoke(ctx, "/inference.InferenceService/ProcessFrame", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceServiceClient) GetModelInfo(ctx context.Context, in *ModelInfoRequest, opts ...grpc.CallOption) (*ModelInfo, error) {
	out := new(ModelInfo)
	if err := c.cc.Invoke(ctx, "/inference.InferenceService/GetModelInfo", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceServiceClient) GetServerStats(ctx context.Context, in *ServerStatsRequest, opts ...grpc.CallOption) (*ServerStats, error) {
	out := new(ServerStats)
	if err := c.cc.Invoke(ctx, "/inference.InferenceService/GetServerStats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
