package prefixsum

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/blockscan"
	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// BlockWiseConfig configures the two-stage block-wise device scan
//: an element-level block scan
// writing per-block reductions, a second block scan over those reductions
// (which must itself fit in one block), and a combine pass that adds the
// scanned reduction into each tile.
type BlockWiseConfig struct {
	ElementScanConfig    blockscan.Config
	BlockScanConfig      blockscan.Config // must be EXCLUSIVE; scans the reductions array
	CombineWorkgroupSize uint32
}

// MaxElementCount is the largest N this configuration can process in one
// call: the reductions array produced by ElementScanConfig must itself fit
// in a single BlockScanConfig tile.
func (c BlockWiseConfig) MaxElementCount() uint32 {
	return c.ElementScanConfig.BlockSize() * c.BlockScanConfig.BlockSize()
}

// Validate enforces that BlockScanConfig is configured for an exclusive scan.
func (c BlockWiseConfig) Validate(ctx wrs.Context) error {
	if err := c.ElementScanConfig.Validate(ctx); err != nil {
		return err
	}
	if err := c.BlockScanConfig.Validate(ctx); err != nil {
		return err
	}
	if c.BlockScanConfig.Variant&blockscan.Exclusive != blockscan.Exclusive {
		return wrs.NewConfigError("prefixsum.blockwise", "blockScanConfig must select EXCLUSIVE")
	}
	if c.CombineWorkgroupSize == 0 {
		return wrs.NewConfigError("prefixsum.blockwise", "combineWorkgroupSize must be > 0")
	}
	return nil
}

// BlockWiseBuffers is the buffer contract for one block-wise run, including
// the intermediate reductions array and its own scan output.
type BlockWiseBuffers struct {
	Elements       wrs.Buffer
	PrefixSum      wrs.Buffer
	Reductions     wrs.Buffer // sized to element-scan block count
	ReductionsScan wrs.Buffer // same size, holds the scan of Reductions
}

// BlockWise is a compiled block-wise device-scan pipeline: three composed
// dispatches (element scan, reduction scan, combine) recorded with the
// barriers between them that a single-pass decoupled scan would not need.
type BlockWise struct {
	cfg           BlockWiseConfig
	elementScan   *blockscan.Scan
	reductionScan *blockscan.Scan
	combinePipe   wrs.Pipeline
	log           *logrus.Entry
}

// NewBlockWise compiles the three pipelines BlockWise composes.
func NewBlockWise(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg BlockWiseConfig) (*BlockWise, error) {
	log := wrs.ComponentLogger("prefixsum.blockwise")
	if err := cfg.Validate(ctx); err != nil {
		log.WithError(err).Warn("rejected block-wise prefix-sum config")
		return nil, err
	}

	elementScan, err := blockscan.New(ctx, compiler, cfg.ElementScanConfig)
	if err != nil {
		return nil, fmt.Errorf("prefixsum.blockwise: element scan: %w", err)
	}
	reductionScan, err := blockscan.New(ctx, compiler, cfg.BlockScanConfig)
	if err != nil {
		return nil, fmt.Errorf("prefixsum.blockwise: reduction scan: %w", err)
	}

	combineSource := wrs.ShaderSource{
		Name:       "prefixsum.blockwise.combine",
		EntryPoint: "main",
		Source:     shaders.PrefixSumCombine,
		Reference:  combineReferenceKernel(cfg),
	}
	combinePipe, err := compiler.CompilePipeline(combineSource, wrs.SpecializationConstants{
		"workgroupSize": cfg.CombineWorkgroupSize,
	})
	if err != nil {
		return nil, fmt.Errorf("prefixsum.blockwise: combine: %w", err)
	}

	return &BlockWise{cfg: cfg, elementScan: elementScan, reductionScan: reductionScan, combinePipe: combinePipe, log: log}, nil
}

// Run records the three-dispatch sequence: element scan (with block
// reductions), reduction scan, then combine.
func (b *BlockWise) Run(cmd wrs.CommandBuffer, bufs BlockWiseBuffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	if n > b.cfg.MaxElementCount() {
		return wrs.NewCapacityError("prefixsum.blockwise", n, b.cfg.MaxElementCount())
	}

	profiler.Start("prefixsum.blockwise")
	defer profiler.End()

	blockCount := (n + b.cfg.ElementScanConfig.BlockSize() - 1) / b.cfg.ElementScanConfig.BlockSize()

	if err := b.elementScan.Run(cmd, blockscan.Buffers{
		Elements: bufs.Elements, PrefixSum: bufs.PrefixSum, Reductions: bufs.Reductions,
	}, n, profiler); err != nil {
		return err
	}
	cmd.Barrier(wrs.BarrierComputeToCompute)

	if err := b.reductionScan.Run(cmd, blockscan.Buffers{
		Elements: bufs.Reductions, PrefixSum: bufs.ReductionsScan,
	}, blockCount, profiler); err != nil {
		return err
	}
	cmd.Barrier(wrs.BarrierComputeToCompute)

	cmd.BindPipeline(b.combinePipe)
	cmd.BindBuffers(bufs.PrefixSum, bufs.ReductionsScan)
	push := make([]byte, 8)
	wire.PutUint32At(push, 0, n)
	wire.PutUint32At(push, 1, b.cfg.ElementScanConfig.BlockSize())
	cmd.PushConstants(push)
	cmd.Dispatch(blockCount, 1, 1)
	return nil
}

func combineReferenceKernel(cfg BlockWiseConfig) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		blockSize := wire.Uint32At(push, 1)
		blockCount := (n + blockSize - 1) / blockSize

		prefix := wire.Floats32(buffers[0], int(n))
		reductionsScan := wire.Floats32(buffers[1], int(blockCount))

		err := runner.Dispatch(context.Background(), blockCount, false, func(_ context.Context, block uint32) error {
			start := block * blockSize
			end := start + blockSize
			if end > n {
				end = n
			}
			add := reductionsScan[block]
			for i := start; i < end; i++ {
				prefix[i] += add
			}
			return nil
		})
		if err != nil {
			return err
		}
		wire.PutFloats32(buffers[0], prefix)
		return nil
	}
}

