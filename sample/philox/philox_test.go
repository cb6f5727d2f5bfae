package philox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/sample/philox"
)

func TestBlockDeterministic(t *testing.T) {
	ctr := philox.Counter4x32{7, 0, 0, 0}
	key := philox.Key2x32{42, 0}
	a := philox.Block(ctr, key)
	b := philox.Block(ctr, key)
	assert.Equal(t, a, b)
}

func TestBlockSensitiveToSeedAndCounter(t *testing.T) {
	base := philox.Block(philox.Counter4x32{1, 0, 0, 0}, philox.Key2x32{0, 0})
	diffCounter := philox.Block(philox.Counter4x32{2, 0, 0, 0}, philox.Key2x32{0, 0})
	diffSeed := philox.Block(philox.Counter4x32{1, 0, 0, 0}, philox.Key2x32{1, 0})
	assert.NotEqual(t, base, diffCounter)
	assert.NotEqual(t, base, diffSeed)
}

func TestUniform24Range(t *testing.T) {
	for _, x := range []uint32{0, 1, 1 << 31, ^uint32(0)} {
		u := philox.Uniform24(x)
		assert.GreaterOrEqual(t, u, float32(0))
		assert.Less(t, u, float32(1))
	}
}

func TestGeneratorDeterministicStream(t *testing.T) {
	dev := refdevice.New()
	gen, err := philox.New(dev, dev, philox.Config{WorkgroupSize: 64})
	require.NoError(t, err)

	const s = 1024
	run := func(seed uint32) []float32 {
		buf, _ := dev.AllocateBuffer(4*uint64(s), 0)
		cmd := refdevice.NewCommandBuffer(nil)
		require.NoError(t, gen.Run(cmd, philox.Buffers{Samples: buf}, s, seed, nil))
		m, err := buf.Map()
		require.NoError(t, err)
		return wire.Floats32(m, s)
	}

	a := run(11)
	b := run(11)
	assert.Equal(t, a, b)

	c := run(12)
	assert.NotEqual(t, a, c)

	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}
