package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posai/scan-gateway/pb"
)

func TestPool_RoundRobinDistribution(t *testing.T) {
	a := &pb.MockInferenceClient{}
	b := &pb.MockInferenceClient{}
	c := &pb.MockInferenceClient{}
	p := NewStaticPool(a, b, c)
	require.Equal(t, 3, p.Size())

	for i := 0; i < 30; i++ {
		_, err := p.ProcessFrame(context.Background(), []byte("img"), 1, 1, 3, "jpeg")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(10), a.Calls())
	assert.Equal(t, int64(10), b.Calls())
	assert.Equal(t, int64(10), c.Calls())
}

func TestPool_EmptyPoolReturnsErrNoBackend(t *testing.T) {
	p := NewStaticPool()
	assert.Equal(t, 0, p.Size())

	_, err := p.ProcessFrame(context.Background(), []byte("img"), 1, 1, 3, "jpeg")
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = p.GetServerStats(context.Background())
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestPool_BackendErrorPropagates(t *testing.T) {
	boom := errors.New("model crashed")
	p := NewStaticPool(&pb.MockInferenceClient{Err: boom})

	_, err := p.ProcessFrame(context.Background(), []byte("img"), 1, 1, 3, "jpeg")
	assert.ErrorIs(t, err, boom)
}

func TestPool_GetServerStats(t *testing.T) {
	p := NewStaticPool(&pb.MockInferenceClient{Stats: &pb.ServerStats{Workers: 4, FramesProcessed: 99}})

	stats, err := p.GetServerStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), stats.Workers)
	assert.Equal(t, uint64(99), stats.FramesProcessed)
}

func TestPool_CloseOnEmptyPoolIsSafe(t *testing.T) {
	p := NewStaticPool()
	p.Close()
	p.Close()
	assert.Equal(t, 0, p.Size())
}
