package blockscan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/blockscan"
	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
)

func TestConfigRejectsStridedRaking(t *testing.T) {
	dev := refdevice.New()
	cfg := blockscan.Config{
		WorkgroupSize:        64,
		Rows:                 1,
		SequentialScanLength: 1,
		Variant:              blockscan.Raking | blockscan.Strided | blockscan.Exclusive,
	}
	_, err := blockscan.New(dev, dev, cfg)
	require.Error(t, err)
}

func TestConfigRejectsAmbiguousDirection(t *testing.T) {
	dev := refdevice.New()
	cfg := blockscan.Config{
		WorkgroupSize:        64,
		Rows:                 1,
		SequentialScanLength: 1,
		Variant:              blockscan.Ranked,
	}
	_, err := blockscan.New(dev, dev, cfg)
	require.Error(t, err)
}

func TestExclusiveScanMatchesReference(t *testing.T) {
	dev := refdevice.New()
	cfg := blockscan.Config{
		WorkgroupSize:        4,
		Rows:                 1,
		SequentialScanLength: 1,
		Variant:              blockscan.Ranked | blockscan.Exclusive,
		WriteBlockReductions: true,
	}
	scan, err := blockscan.New(dev, dev, cfg)
	require.NoError(t, err)

	weights := []float32{1, 2, 3, 4, 5, 6, 7}
	elemBuf, _ := dev.AllocateBuffer(4*uint64(len(weights)), 0)
	prefixBuf, _ := dev.AllocateBuffer(4*uint64(len(weights)), 0)
	blockCount := uint64((len(weights) + 3) / 4)
	reductionsBuf, _ := dev.AllocateBuffer(4*blockCount, 0)

	mapped, _ := elemBuf.Map()
	wire.PutFloats32(mapped, weights)
	elemBuf.Unmap()

	cmd := refdevice.NewCommandBuffer(nil)
	err = scan.Run(cmd, blockscan.Buffers{Elements: elemBuf, PrefixSum: prefixBuf, Reductions: reductionsBuf}, uint32(len(weights)), nil)
	require.NoError(t, err)

	out, _ := prefixBuf.Map()
	prefix := wire.Floats32(out, len(weights))
	prefixBuf.Unmap()

	// Block 0 covers indices [0,4): exclusive prefixes 0,1,3,6.
	// Block 1 covers indices [4,7): exclusive prefixes 0,5,11.
	assert.Equal(t, []float32{0, 1, 3, 6, 0, 5, 11}, prefix)

	red, _ := reductionsBuf.Map()
	reductions := wire.Floats32(red, 2)
	reductionsBuf.Unmap()
	assert.Equal(t, []float32{10, 18}, reductions)
}
