package prefixsum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/blockscan"
	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/prefixsum"
)

func TestDecoupledInclusiveScanOfOnes(t *testing.T) {
	dev := refdevice.New()
	cfg := prefixsum.DecoupledConfig{
		WorkgroupSize:         8,
		Rows:                  1,
		BlockScanVariant:      blockscan.Inclusive,
		ParallelLookbackDepth: 4,
	}
	ps, err := prefixsum.NewDecoupled(dev, dev, cfg)
	require.NoError(t, err)

	const n = 1 << 10
	ones := make([]float32, n)
	for i := range ones {
		ones[i] = 1
	}

	elemBuf, _ := dev.AllocateBuffer(4*n, 0)
	prefixBuf, _ := dev.AllocateBuffer(4*n, 0)
	blockCount := uint64((n + 7) / 8)
	stateBuf, _ := dev.AllocateBuffer(16*blockCount, 0)

	mapped, _ := elemBuf.Map()
	wire.PutFloats32(mapped, ones)
	elemBuf.Unmap()

	cmd := refdevice.NewCommandBuffer(nil)
	err = ps.Run(cmd, prefixsum.DecoupledBuffers{Elements: elemBuf, PrefixSum: prefixBuf, State: stateBuf}, n, nil)
	require.NoError(t, err)

	out, _ := prefixBuf.Map()
	prefix := wire.Floats32(out, n)
	prefixBuf.Unmap()

	for k := 0; k < n; k++ {
		assert.Equal(t, float32(k+1), prefix[k], "k=%d", k)
	}
}

func TestBlockWiseMaxElementCountRejectsOverflow(t *testing.T) {
	dev := refdevice.New()
	cfg := prefixsum.BlockWiseConfig{
		ElementScanConfig: blockscan.Config{
			WorkgroupSize: 4, Rows: 1, SequentialScanLength: 1,
			Variant: blockscan.Ranked | blockscan.Inclusive, WriteBlockReductions: true,
		},
		BlockScanConfig: blockscan.Config{
			WorkgroupSize: 4, Rows: 1, SequentialScanLength: 1,
			Variant: blockscan.Ranked | blockscan.Exclusive,
		},
		CombineWorkgroupSize: 4,
	}
	bw, err := prefixsum.NewBlockWise(dev, dev, cfg)
	require.NoError(t, err)

	cmd := refdevice.NewCommandBuffer(nil)
	err = bw.Run(cmd, prefixsum.BlockWiseBuffers{}, cfg.MaxElementCount()+1, nil)
	require.Error(t, err)
}
