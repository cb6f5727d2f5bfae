package wrstest_test

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wrstest"
	"github.com/ajroetker/go-wrs/mean"
)

// TestAtomicMeanMatchesArithmeticMean runs atomic Mean against many random
// positive weight slices and checks the result against a plain float64
// arithmetic mean, catching accumulation bugs a single fixed fixture would
// miss.
func TestAtomicMeanMatchesArithmeticMean(t *testing.T) {
	dev := refdevice.New()
	m, err := mean.NewAtomic(dev, dev, mean.Config{WorkgroupSize: 8, Rows: 1})
	require.NoError(t, err)

	check := func(ws wrstest.PositiveWeights) bool {
		elemBuf := wrstest.FloatBuffer(t, dev, ws)
		meanBuf := wrstest.ScalarFloatBuffer(t, dev)

		cmd := refdevice.NewCommandBuffer(nil)
		if err := m.Run(cmd, mean.Buffers{Elements: elemBuf, Mean: meanBuf}, uint32(len(ws)), nil); err != nil {
			t.Logf("run error: %v", err)
			return false
		}

		var sum float64
		for _, w := range ws {
			sum += float64(w)
		}
		want := float32(sum / float64(len(ws)))
		got := wrstest.ReadFloat32(t, meanBuf)

		const tol = 1e-2
		diff := float64(want - got)
		return diff < tol && diff > -tol
	}

	require.NoError(t, quick.Check(check, &quick.Config{MaxCount: 50}))
}
