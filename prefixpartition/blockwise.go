package prefixpartition

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// BlockWiseConfig is the three-pass alternative to the decoupled variant
//: pre-reduce per-block
// aggregates, scan the (small) per-block arrays in one extra pass, then
// classify again and scatter directly using the scanned block values. This
// avoids the decoupled-lookback dependency chain at the cost of an extra
// pass over the elements — the right tradeoff on devices that cannot
// guarantee concurrent workgroup scheduling.
type BlockWiseConfig struct {
	Config
	// MaxBlockCount bounds how many blocks' reductions the single scan pass
	// can hold, matching the "must fit in one block" constraint the scan
	// over block-level arrays requires.
	MaxBlockCount uint32
}

func (c BlockWiseConfig) validate() error {
	if err := c.Config.validate("prefixpartition.blockwise"); err != nil {
		return err
	}
	if c.MaxBlockCount == 0 {
		return wrs.NewConfigError("prefixpartition.blockwise", "maxBlockCount must be > 0")
	}
	return nil
}

// BlockWiseBuffers adds the three per-block scratch arrays the block-wise
// variant needs between its passes.
type BlockWiseBuffers struct {
	Buffers
	BlockHeavyCount     wrs.Buffer
	BlockHeavyReduction wrs.Buffer
	BlockLightReduction wrs.Buffer
}

// BlockWise is a compiled block-wise (three-pass) prefix-partition
// pipeline.
type BlockWise struct {
	cfg      BlockWiseConfig
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewBlockWise compiles the block-wise prefix-partition pipeline.
func NewBlockWise(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg BlockWiseConfig) (*BlockWise, error) {
	log := wrs.ComponentLogger("prefixpartition.blockwise")
	if err := cfg.validate(); err != nil {
		log.WithError(err).Warn("rejected block-wise prefix-partition config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "prefixpartition.blockwise", EntryPoint: "main", Source: shaders.PrefixPartitionBlockWise,
		Reference: blockwiseReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize, "rows": cfg.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("prefixpartition: compile block-wise pipeline: %w", err)
	}
	return &BlockWise{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches the fused three-pass kernel sequence (reduce, scan,
// scatter) as a single pipeline invocation on the reference device; a real
// host framework instead records three separate dispatches with barriers
// between them, matching the documented pass boundaries.
func (bw *BlockWise) Run(cmd wrs.CommandBuffer, bufs BlockWiseBuffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	blockSize := bw.cfg.blockSize()
	blockCount := (n + blockSize - 1) / blockSize
	if blockCount > bw.cfg.MaxBlockCount {
		return wrs.NewCapacityError("prefixpartition.blockwise", blockCount, bw.cfg.MaxBlockCount)
	}

	profiler.Start("prefixpartition.blockwise")
	defer profiler.End()

	cmd.BindPipeline(bw.pipeline)
	bound := []wrs.Buffer{
		bufs.Elements, bufs.Pivot, bufs.PartitionIndices, bufs.PartitionPrefix, bufs.HeavyCount,
		bufs.BlockHeavyCount, bufs.BlockHeavyReduction, bufs.BlockLightReduction,
	}
	if bufs.PartitionElements != nil {
		bound = append(bound, bufs.PartitionElements)
	}
	cmd.BindBuffers(bound...)
	push := make([]byte, 4)
	wire.PutUint32At(push, 0, n)
	cmd.PushConstants(push)
	cmd.Dispatch(blockCount, 1, 1)
	return nil
}

func blockwiseReferenceKernel(cfg BlockWiseConfig) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	blockSize := cfg.blockSize()

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		elements := wire.Floats32(buffers[0], int(n))
		pivot := wire.Float32At(buffers[1], 0)
		blockCount := (n + blockSize - 1) / blockSize

		blockHeavyCount := make([]uint32, blockCount)
		blockHeavyReduction := make([]float32, blockCount)
		blockLightReduction := make([]float32, blockCount)

		// Pass 1: per-block classify + reduce.
		if err := runner.Dispatch(context.Background(), blockCount, false, func(_ context.Context, block uint32) error {
			start, end := blockRange(block, blockSize, n)
			var hc uint32
			var hs, ls float32
			for i := start; i < end; i++ {
				if elements[i] > pivot {
					hc++
					hs += elements[i]
				} else {
					ls += elements[i]
				}
			}
			blockHeavyCount[block] = hc
			blockHeavyReduction[block] = hs
			blockLightReduction[block] = ls
			return nil
		}); err != nil {
			return err
		}

		// Pass 2: exclusive scan of the three block-level arrays — small
		// enough to fit in a single block, done sequentially here.
		scannedHeavyCount := make([]uint32, blockCount)
		scannedHeavyReduction := make([]float32, blockCount)
		scannedLightReduction := make([]float32, blockCount)
		var runningCount uint32
		var runningHeavy, runningLight float32
		for b := uint32(0); b < blockCount; b++ {
			scannedHeavyCount[b] = runningCount
			scannedHeavyReduction[b] = runningHeavy
			scannedLightReduction[b] = runningLight
			runningCount += blockHeavyCount[b]
			runningHeavy += blockHeavyReduction[b]
			runningLight += blockLightReduction[b]
		}
		heavyCount := runningCount

		partitionIndices := make([]uint32, n)
		partitionPrefix := make([]float32, n)
		var partitionElements []float32
		if len(buffers) > 8 {
			partitionElements = make([]float32, n)
		}

		// Pass 3: classify again, combine with the scanned block values,
		// scatter directly into final positions.
		err := runner.Dispatch(context.Background(), blockCount, false, func(_ context.Context, block uint32) error {
			start, end := blockRange(block, blockSize, n)
			exclusiveHeavyCount := scannedHeavyCount[block]
			exclusiveHeavySum := scannedHeavyReduction[block]
			exclusiveLightSum := scannedLightReduction[block]
			exclusiveLightCount := start - exclusiveHeavyCount

			var localHeavyCount uint32
			var localHeavySum, localLightSum float32
			for i := start; i < end; i++ {
				w := elements[i]
				if w > pivot {
					rank := exclusiveHeavyCount + localHeavyCount
					partitionIndices[rank] = i
					partitionPrefix[rank] = exclusiveHeavySum + localHeavySum
					if partitionElements != nil {
						partitionElements[rank] = w
					}
					localHeavyCount++
					localHeavySum += w
				} else {
					rank := exclusiveLightCount + uint32(i-start) - localHeavyCount
					pos := n - 1 - rank
					partitionIndices[pos] = i
					partitionPrefix[pos] = exclusiveLightSum + localLightSum
					if partitionElements != nil {
						partitionElements[pos] = w
					}
					localLightSum += w
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		wire.PutUint32s(buffers[2], partitionIndices)
		wire.PutFloats32(buffers[3], partitionPrefix)
		wire.PutUint32At(buffers[4], 0, heavyCount)
		wire.PutUint32s(buffers[5], blockHeavyCount)
		wire.PutFloats32(buffers[6], blockHeavyReduction)
		wire.PutFloats32(buffers[7], blockLightReduction)
		if partitionElements != nil {
			wire.PutFloats32(buffers[8], partitionElements)
		}
		return nil
	}
}

