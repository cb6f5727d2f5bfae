package alias_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/sample/alias"
)

// uniformAliasTable builds the trivial identity alias table for n equal
// weights: every entry routes to itself with probability 1, which is what
// PSA/pack produces whenever every weight equals the mean.
func uniformAliasTable(t *testing.T, dev *refdevice.Device, n int) alias.Buffers {
	t.Helper()
	tableBuf, _ := dev.AllocateBuffer(8*uint64(n), 0)
	m, err := tableBuf.Map()
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		off := i * 8
		wire.PutFloat32At(m[off:], 0, 1)
		wire.PutUint32At(m[off:], 1, uint32(i))
	}
	require.NoError(t, tableBuf.Unmap())
	return alias.Buffers{AliasTable: tableBuf}
}

func readSamples(t *testing.T, buf interface{ Map() ([]byte, error) }, s int) []uint32 {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	return wire.Uint32s(m, s)
}

func TestScalarSamplerUniformDistribution(t *testing.T) {
	dev := refdevice.New()
	sampler, err := alias.New(dev, dev, alias.Config{WorkgroupSize: 64})
	require.NoError(t, err)

	const n = 4
	const s = 1_000_000
	bufs := uniformAliasTable(t, dev, n)
	samplesBuf, _ := dev.AllocateBuffer(4*uint64(s), 0)
	bufs.Samples = samplesBuf

	cmd := refdevice.NewCommandBuffer(nil)
	require.NoError(t, sampler.Run(cmd, bufs, n, s, 0, nil))

	samples := readSamples(t, samplesBuf, s)
	var counts [n]int
	for _, idx := range samples {
		require.Less(t, idx, uint32(n))
		counts[idx]++
	}

	expected := float64(s) / n
	// binomial std-dev for p=1/n, matching the concrete-scenario tolerance
	// of 4 standard deviations at 99% confidence.
	stddev := math.Sqrt(expected * (1 - 1.0/n))
	for _, c := range counts {
		require.InDelta(t, expected, float64(c), 4*stddev)
	}
}

func TestScalarSamplerDeterministic(t *testing.T) {
	dev := refdevice.New()
	sampler, err := alias.New(dev, dev, alias.Config{WorkgroupSize: 32})
	require.NoError(t, err)

	const n = 8
	const s = 4096
	run := func() []uint32 {
		bufs := uniformAliasTable(t, dev, n)
		samplesBuf, _ := dev.AllocateBuffer(4*uint64(s), 0)
		bufs.Samples = samplesBuf
		cmd := refdevice.NewCommandBuffer(nil)
		require.NoError(t, sampler.Run(cmd, bufs, n, s, 99, nil))
		return readSamples(t, samplesBuf, s)
	}

	a, b := run(), run()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("identical (seed, s) produced different sample streams (-want +got):\n%s", diff)
	}
}

func TestCooperativeMatchesScalar(t *testing.T) {
	dev := refdevice.New()
	scalar, err := alias.New(dev, dev, alias.Config{WorkgroupSize: 32})
	require.NoError(t, err)
	cooperative, err := alias.NewCooperative(dev, dev, alias.CooperativeConfig{
		Config:                alias.Config{WorkgroupSize: 32},
		CooperativeSampleSize: 8,
	})
	require.NoError(t, err)

	const n = 6
	const s = 777
	const seed = 5

	scalarBufs := uniformAliasTable(t, dev, n)
	scalarSamples, _ := dev.AllocateBuffer(4*s, 0)
	scalarBufs.Samples = scalarSamples
	cmd1 := refdevice.NewCommandBuffer(nil)
	require.NoError(t, scalar.Run(cmd1, scalarBufs, n, s, seed, nil))

	coopBufs := uniformAliasTable(t, dev, n)
	coopSamples, _ := dev.AllocateBuffer(4*s, 0)
	coopBufs.Samples = coopSamples
	cmd2 := refdevice.NewCommandBuffer(nil)
	require.NoError(t, cooperative.Run(cmd2, coopBufs, n, s, seed, nil))

	got := readSamples(t, scalarSamples, s)
	want := readSamples(t, coopSamples, s)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cooperative sampler diverged from scalar sampler (-want +got):\n%s", diff)
	}
}

func TestAliasEntryMatchesPackEntryLayout(t *testing.T) {
	// pack.Entry and the raw {p, a} bytes alias reads must agree on field
	// order, or pack's table and alias's reader would silently disagree.
	e := pack.Entry{P: 0.25, A: 3}
	buf := make([]byte, 8)
	wire.PutFloat32At(buf, 0, e.P)
	wire.PutUint32At(buf, 1, e.A)
	require.Equal(t, e.P, wire.Float32At(buf, 0))
	require.Equal(t, e.A, wire.Uint32At(buf, 1))
}
