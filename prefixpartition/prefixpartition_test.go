package prefixpartition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/prefixpartition"
)

func buildBuffers(t *testing.T, dev *refdevice.Device, weights []float32, pivot float32) (prefixpartition.Buffers, func() ([]uint32, []float32, uint32)) {
	t.Helper()
	n := len(weights)
	elemBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	pivotBuf, _ := dev.AllocateBuffer(4, 0)
	indicesBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	prefixBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	heavyCountBuf, _ := dev.AllocateBuffer(4, 0)

	em, _ := elemBuf.Map()
	wire.PutFloats32(em, weights)
	elemBuf.Unmap()
	pm, _ := pivotBuf.Map()
	wire.PutFloat32At(pm, 0, pivot)
	pivotBuf.Unmap()

	bufs := prefixpartition.Buffers{
		Elements: elemBuf, Pivot: pivotBuf, PartitionIndices: indicesBuf,
		PartitionPrefix: prefixBuf, HeavyCount: heavyCountBuf,
	}
	readback := func() ([]uint32, []float32, uint32) {
		im, _ := indicesBuf.Map()
		indices := wire.Uint32s(im, n)
		indicesBuf.Unmap()
		pm, _ := prefixBuf.Map()
		prefix := wire.Floats32(pm, n)
		prefixBuf.Unmap()
		hm, _ := heavyCountBuf.Map()
		hc := wire.Uint32At(hm, 0)
		heavyCountBuf.Unmap()
		return indices, prefix, hc
	}
	return bufs, readback
}

func TestDecoupledPrefixPartitionScenario5(t *testing.T) {
	dev := refdevice.New()
	pp, err := prefixpartition.NewDecoupled(dev, dev, prefixpartition.DecoupledConfig{
		Config:                prefixpartition.Config{WorkgroupSize: 4, Rows: 1},
		ParallelLookbackDepth: 4,
	})
	require.NoError(t, err)

	weights := []float32{2, 0, 3, 0}
	bufs, readback := buildBuffers(t, dev, weights, 1)
	stateBuf, _ := dev.AllocateBuffer(32, 0)

	cmd := refdevice.NewCommandBuffer(nil)
	require.NoError(t, pp.Run(cmd, bufs, stateBuf, uint32(len(weights)), nil))

	indices, prefix, heavyCount := readback()
	assert.Equal(t, uint32(2), heavyCount)
	assert.Equal(t, []uint32{0, 2, 3, 1}, indices)
	assert.Equal(t, []float32{0, 2, 0, 0}, prefix)
}

func TestBlockWisePrefixPartitionMatchesDecoupled(t *testing.T) {
	dev := refdevice.New()
	bw, err := prefixpartition.NewBlockWise(dev, dev, prefixpartition.BlockWiseConfig{
		Config:        prefixpartition.Config{WorkgroupSize: 4, Rows: 1},
		MaxBlockCount: 64,
	})
	require.NoError(t, err)

	weights := []float32{2, 0, 3, 0}
	bufs, readback := buildBuffers(t, dev, weights, 1)
	blockHC, _ := dev.AllocateBuffer(4, 0)
	blockHR, _ := dev.AllocateBuffer(4, 0)
	blockLR, _ := dev.AllocateBuffer(4, 0)

	cmd := refdevice.NewCommandBuffer(nil)
	require.NoError(t, bw.Run(cmd, prefixpartition.BlockWiseBuffers{
		Buffers: bufs, BlockHeavyCount: blockHC, BlockHeavyReduction: blockHR, BlockLightReduction: blockLR,
	}, uint32(len(weights)), nil))

	indices, prefix, heavyCount := readback()
	assert.Equal(t, uint32(2), heavyCount)
	assert.Equal(t, []uint32{0, 2, 3, 1}, indices)
	assert.Equal(t, []float32{0, 2, 0, 0}, prefix)
}
