package split_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa/split"
)

// buildPartitioned constructs an already-partitioned buffer set: heavyWeights
// ascending at the front, lightWeights in the order they'll be read back
// (reversed source order is irrelevant here — split only cares about the
// per-position weight and its running prefix).
func buildPartitioned(t *testing.T, dev *refdevice.Device, heavyWeights, lightWeights []float32, mean float32) split.Buffers {
	t.Helper()
	n := len(heavyWeights) + len(lightWeights)

	prefixBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	elemBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	heavyCountBuf, _ := dev.AllocateBuffer(4, 0)
	meanBuf, _ := dev.AllocateBuffer(4, 0)

	prefix := make([]float32, n)
	elems := make([]float32, n)
	var running float32
	for i, w := range heavyWeights {
		prefix[i] = running
		elems[i] = w
		running += w
	}
	running = 0
	for r, w := range lightWeights {
		pos := n - 1 - r
		prefix[pos] = running
		elems[pos] = w
		running += w
	}

	pm, _ := prefixBuf.Map()
	wire.PutFloats32(pm, prefix)
	prefixBuf.Unmap()
	em, _ := elemBuf.Map()
	wire.PutFloats32(em, elems)
	elemBuf.Unmap()
	hm, _ := heavyCountBuf.Map()
	wire.PutUint32At(hm, 0, uint32(len(heavyWeights)))
	heavyCountBuf.Unmap()
	mm, _ := meanBuf.Map()
	wire.PutFloat32At(mm, 0, mean)
	meanBuf.Unmap()

	return split.Buffers{
		PartitionPrefix: prefixBuf, PartitionElements: elemBuf,
		HeavyCount: heavyCountBuf, Mean: meanBuf,
	}
}

func readSplits(t *testing.T, buf interface{ Map() ([]byte, error) }, k uint32) []split.Entry {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	entries := make([]split.Entry, k+1)
	for idx := range entries {
		off := idx * 12
		entries[idx] = split.Entry{
			I:     wire.Uint32At(m, off/4),
			J:     wire.Uint32At(m, off/4+1),
			Spill: wire.Float32At(m, off/4+2),
		}
	}
	return entries
}

func TestScalarSplitBoundaryInvariants(t *testing.T) {
	dev := refdevice.New()
	sp, err := split.New(dev, dev, split.Config{WorkgroupSize: 4, SplitSize: 2})
	require.NoError(t, err)

	heavy := []float32{3, 3}
	light := []float32{1, 1, 1, 1}
	mean := float32(5.0 / 3.0)
	n := uint32(len(heavy) + len(light))
	bufs := buildPartitioned(t, dev, heavy, light, mean)

	k := split.Config{SplitSize: 2}.SplitCount(n)
	require.EqualValues(t, 3, k)

	splitsBuf, _ := dev.AllocateBuffer(12*uint64(k+1), 0)
	bufs.Splits = splitsBuf

	cmd := refdevice.NewCommandBuffer(nil)
	require.NoError(t, sp.Run(cmd, bufs, n, nil))

	entries := readSplits(t, splitsBuf, k)

	assert.Equal(t, split.Entry{I: 0, J: 0, Spill: 0}, entries[0])
	last := entries[k]
	assert.Equal(t, uint32(len(light)), last.I)
	assert.Equal(t, uint32(len(heavy)), last.J)
	assert.InDelta(t, 0, last.Spill, 1e-5)

	for s := uint32(1); s <= k; s++ {
		assert.GreaterOrEqual(t, entries[s].I, entries[s-1].I)
		assert.GreaterOrEqual(t, entries[s].J, entries[s-1].J)
		assert.True(t, entries[s].Spill >= 0 && entries[s].Spill <= mean+1e-4)
	}
}
