package mean_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/mean"
)

func TestAtomicMean(t *testing.T) {
	dev := refdevice.New()
	m, err := mean.NewAtomic(dev, dev, mean.Config{WorkgroupSize: 4, Rows: 1})
	require.NoError(t, err)

	weights := []float32{2, 0, 3, 0, 1, 1, 1, 1}
	elemBuf, _ := dev.AllocateBuffer(4*uint64(len(weights)), 0)
	meanBuf, _ := dev.AllocateBuffer(4, 0)

	mapped, _ := elemBuf.Map()
	wire.PutFloats32(mapped, weights)
	elemBuf.Unmap()

	cmd := refdevice.NewCommandBuffer(nil)
	require.NoError(t, m.Run(cmd, mean.Buffers{Elements: elemBuf, Mean: meanBuf}, uint32(len(weights)), nil))

	out, _ := meanBuf.Map()
	got := wire.Float32At(out, 0)
	meanBuf.Unmap()
	assert.InDelta(t, 9.0/8.0, got, 1e-5)
}

func TestDecoupledMeanMatchesAtomic(t *testing.T) {
	dev := refdevice.New()
	m, err := mean.NewDecoupled(dev, dev, mean.Config{WorkgroupSize: 4, Rows: 1, ParallelLookbackDepth: 4})
	require.NoError(t, err)

	weights := []float32{2, 0, 3, 0, 1, 1, 1, 1}
	elemBuf, _ := dev.AllocateBuffer(4*uint64(len(weights)), 0)
	meanBuf, _ := dev.AllocateBuffer(4, 0)
	stateBuf, _ := dev.AllocateBuffer(16*2, 0)

	mapped, _ := elemBuf.Map()
	wire.PutFloats32(mapped, weights)
	elemBuf.Unmap()

	cmd := refdevice.NewCommandBuffer(nil)
	require.NoError(t, m.Run(cmd, mean.Buffers{Elements: elemBuf, Mean: meanBuf, State: stateBuf}, uint32(len(weights)), nil))

	out, _ := meanBuf.Map()
	got := wire.Float32At(out, 0)
	meanBuf.Unmap()
	assert.InDelta(t, 9.0/8.0, got, 1e-5)
}
