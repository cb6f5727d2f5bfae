package pack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/psa/split"
)

// buildPartitioned wires up a partition already expressed in PSA's layout:
// heavyOriginal holds the original indices of the heavy group in ascending
// weight-prefix order (front of the arrays); lightOriginal holds the
// original indices of the light group in the order they are scattered
// (back of the arrays, descending position).
func buildPartitioned(t *testing.T, dev *refdevice.Device, heavyOriginal, lightOriginal []uint32, weights []float32, mean float32) (pack.Buffers, float32) {
	t.Helper()
	n := len(heavyOriginal) + len(lightOriginal)

	indicesBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	prefixBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	elemBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	heavyCountBuf, _ := dev.AllocateBuffer(4, 0)
	meanBuf, _ := dev.AllocateBuffer(4, 0)

	indices := make([]uint32, n)
	prefix := make([]float32, n)
	elems := make([]float32, n)

	var running float32
	for i, orig := range heavyOriginal {
		indices[i] = orig
		prefix[i] = running
		elems[i] = weights[orig]
		running += weights[orig]
	}
	running = 0
	for r, orig := range lightOriginal {
		pos := n - 1 - r
		indices[pos] = orig
		prefix[pos] = running
		elems[pos] = weights[orig]
		running += weights[orig]
	}

	im, _ := indicesBuf.Map()
	wire.PutUint32s(im, indices)
	indicesBuf.Unmap()
	pm, _ := prefixBuf.Map()
	wire.PutFloats32(pm, prefix)
	prefixBuf.Unmap()
	em, _ := elemBuf.Map()
	wire.PutFloats32(em, elems)
	elemBuf.Unmap()
	hm, _ := heavyCountBuf.Map()
	wire.PutUint32At(hm, 0, uint32(len(heavyOriginal)))
	heavyCountBuf.Unmap()
	mm, _ := meanBuf.Map()
	wire.PutFloat32At(mm, 0, mean)
	meanBuf.Unmap()

	return pack.Buffers{
		PartitionIndices: indicesBuf, PartitionElements: elemBuf,
		HeavyCount: heavyCountBuf, Mean: meanBuf,
	}, mean
}

func readAliasTable(t *testing.T, buf interface{ Map() ([]byte, error) }, n int) []pack.Entry {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	entries := make([]pack.Entry, n)
	for i := range entries {
		off := i * 8
		entries[i] = pack.Entry{P: wire.Float32At(m[off:], 0), A: wire.Uint32At(m[off:], 1)}
	}
	return entries
}

// contributions computes contrib(i) = A[i].p + sum_{j: A[j].a==i} (1-A[j].p),
// the alias-table law every variant must satisfy.
func contributions(entries []pack.Entry) []float32 {
	contrib := make([]float32, len(entries))
	for i, e := range entries {
		contrib[i] += e.P
		contrib[e.A] += 1 - e.P
	}
	return contrib
}

func TestScalarPackSatisfiesAliasTableLaw(t *testing.T) {
	dev := refdevice.New()

	weights := []float32{1, 1, 1, 1, 3, 3}
	heavyOriginal := []uint32{4, 5}
	lightOriginal := []uint32{0, 1, 2, 3}
	mean := float32(5.0 / 3.0)
	n := uint32(len(weights))

	bufs, mu := buildPartitioned(t, dev, heavyOriginal, lightOriginal, weights, mean)

	sp, err := split.New(dev, dev, split.Config{WorkgroupSize: 4, SplitSize: 2})
	require.NoError(t, err)
	k := split.Config{SplitSize: 2}.SplitCount(n)
	splitsBuf, _ := dev.AllocateBuffer(12*uint64(k+1), 0)

	// split needs PartitionPrefix; buildPartitioned fills a prefix buffer
	// but does not return it, so rebuild the same prefix here in a buffer
	// split and the inline variant can read.
	prefixBuf, _ := dev.AllocateBuffer(4*uint64(n), 0)
	{
		var running float32
		prefix := make([]float32, n)
		for i, orig := range heavyOriginal {
			prefix[i] = running
			running += weights[orig]
		}
		running = 0
		for r, orig := range lightOriginal {
			pos := int(n) - 1 - r
			prefix[pos] = running
			running += weights[orig]
		}
		pm, _ := prefixBuf.Map()
		wire.PutFloats32(pm, prefix)
		prefixBuf.Unmap()
	}

	splitBufs := split.Buffers{
		PartitionPrefix: prefixBuf, PartitionElements: bufs.PartitionElements,
		HeavyCount: bufs.HeavyCount, Mean: bufs.Mean, Splits: splitsBuf,
	}
	require.NoError(t, sp.Run(refdevice.NewCommandBuffer(nil), splitBufs, n, nil))

	scalar, err := pack.NewScalar(dev, dev, pack.Config{WorkgroupSize: 4, SplitSize: 2})
	require.NoError(t, err)

	aliasBuf, _ := dev.AllocateBuffer(8*uint64(n), 0)
	bufs.Splits = splitsBuf
	bufs.AliasTable = aliasBuf
	require.NoError(t, scalar.Run(refdevice.NewCommandBuffer(nil), bufs, n, nil))

	entries := readAliasTable(t, aliasBuf, int(n))
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.P, float32(0))
		assert.LessOrEqual(t, e.P, float32(1))
	}

	contrib := contributions(entries)
	for i, w := range weights {
		assert.InDelta(t, w/mu, contrib[i], 1e-4, "index %d", i)
	}

	t.Run("SubgroupMatchesScalar", func(t *testing.T) {
		subgroup, err := pack.NewSubgroup(dev, dev, pack.SubgroupConfig{WorkgroupSize: 4, SplitSize: 2, SubgroupSplit: 2})
		require.NoError(t, err)

		subAliasBuf, _ := dev.AllocateBuffer(8*uint64(n), 0)
		subBufs := bufs
		subBufs.AliasTable = subAliasBuf
		require.NoError(t, subgroup.Run(refdevice.NewCommandBuffer(nil), subBufs, n, nil))

		got := readAliasTable(t, subAliasBuf, int(n))
		assert.Equal(t, entries, got)
	})

	t.Run("InlineMatchesScalar", func(t *testing.T) {
		inline, err := pack.NewInline(dev, dev, pack.InlineConfig{WorkgroupSize: 4, SplitSize: 2})
		require.NoError(t, err)

		inlineAliasBuf, _ := dev.AllocateBuffer(8*uint64(n), 0)
		require.NoError(t, inline.Run(refdevice.NewCommandBuffer(nil), pack.InlineBuffers{
			PartitionPrefix: prefixBuf, PartitionIndices: bufs.PartitionIndices, PartitionElements: bufs.PartitionElements,
			HeavyCount: bufs.HeavyCount, Mean: bufs.Mean, AliasTable: inlineAliasBuf,
		}, n, nil))

		got := readAliasTable(t, inlineAliasBuf, int(n))
		assert.Equal(t, entries, got)
	})
}
