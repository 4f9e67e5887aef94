package pb

import (
	"context"
	"sync/atomic"

	"google.golang.org/grpc"
)

// MockInferenceClient is a scriptable InferenceServiceClient for tests and
// for exercising the pipeline without a live backend.
type MockInferenceClient struct {
	// Response and Err are returned by ProcessFrame as-is.
	Response *FrameResponse
	Err      error

	// Stats is returned by GetServerStats.
	Stats *ServerStats

	calls atomic.Int64
}

// Calls reports how many ProcessFrame invocations the mock has served.
func (m *MockInferenceClient) Calls() int64 { return m.calls.Load() }

func (m *MockInferenceClient) ProcessFrame(ctx context.Context, in *FrameRequest, opts ...grpc.CallOption) (*FrameResponse, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response != nil {
		return m.Response, nil
	}
	return &FrameResponse{Success: true, AiResults: &AIResults{Detections: []*Detection{}}}, nil
}

func (m *MockInferenceClient) GetModelInfo(ctx context.Context, in *ModelInfoRequest, opts ...grpc.CallOption) (*ModelInfo, error) {
	return &ModelInfo{Name: "mock", Version: "0"}, nil
}

func (m *MockInferenceClient) GetServerStats(ctx context.Context, in *ServerStatsRequest, opts ...grpc.CallOption) (*ServerStats, error) {
	if m.Stats != nil {
		return m.Stats, nil
	}
	return &ServerStats{}, nil
}
