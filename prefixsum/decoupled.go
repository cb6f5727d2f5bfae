// Copyright 2025 go-wrs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package prefixsum implements the device-wide prefix sum:
// a single-dispatch decoupled-lookback scan, and a two-stage block-wise
// scan sharing the block-scan primitive from package blockscan.
package prefixsum

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/blockscan"
	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/lookback"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// DecoupledConfig configures the single-dispatch decoupled-lookback prefix
// sum.
type DecoupledConfig struct {
	WorkgroupSize uint32
	Rows          uint32
	// BlockScanVariant selects the within-tile scan strategy and direction
	// (blockscan.Exclusive or blockscan.Inclusive).
	BlockScanVariant      blockscan.Variant
	ParallelLookbackDepth uint32
	// Reverse, when set, indexes prefixSum from bufferSize-N so the result
	// lands in reverse memory order, used for the light-stream prefix
	Reverse bool
}

// Validate rejects a lookback depth the device's subgroup cannot support.
func (c DecoupledConfig) Validate(ctx wrs.Context) error {
	if c.WorkgroupSize == 0 || c.Rows == 0 {
		return wrs.NewConfigError("prefixsum.decoupled", "workgroupSize and rows must be > 0")
	}
	if c.ParallelLookbackDepth == 0 || c.ParallelLookbackDepth > ctx.SubgroupSize() {
		return wrs.NewConfigError("prefixsum.decoupled", "parallelLookbackDepth must be in [1, subgroupSize]")
	}
	hasExclusive := c.BlockScanVariant&blockscan.Exclusive == blockscan.Exclusive
	hasInclusive := c.BlockScanVariant&blockscan.Inclusive == blockscan.Inclusive
	if hasExclusive == hasInclusive {
		return wrs.NewConfigError("prefixsum.decoupled", "blockScanVariant must select exactly one of EXCLUSIVE or INCLUSIVE")
	}
	return nil
}

// BlockSize is the number of elements one workgroup's tile covers.
func (c DecoupledConfig) BlockSize() uint32 { return c.WorkgroupSize * c.Rows }

// DecoupledBuffers is the buffer contract for one decoupled run. State must
// hold blockCount ScanDecoupledState records; Run zeroes it before use.
// BufferSize is only consulted when Config.Reverse is set — it is a
// separate push constant from N, the physical length of the buffer the
// reversed write indexes into.
type DecoupledBuffers struct {
	Elements   wrs.Buffer
	PrefixSum  wrs.Buffer
	State      wrs.Buffer
	BufferSize uint32
}

// Decoupled is a compiled decoupled prefix-sum pipeline.
type Decoupled struct {
	cfg      DecoupledConfig
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewDecoupled validates cfg and compiles the decoupled pipeline.
func NewDecoupled(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg DecoupledConfig) (*Decoupled, error) {
	log := wrs.ComponentLogger("prefixsum.decoupled")
	if err := cfg.Validate(ctx); err != nil {
		log.WithError(err).Warn("rejected decoupled prefix-sum config")
		return nil, err
	}
	if !ctx.SupportsForwardProgressGuarantee() {
		return nil, wrs.NewFeatureError("prefixsum.decoupled", "forwardProgressGuarantee")
	}

	source := wrs.ShaderSource{
		Name:       "prefixsum.decoupled",
		EntryPoint: "main",
		Source:     shaders.PrefixSumDecoupled,
		Reference:  decoupledReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize":         cfg.WorkgroupSize,
		"rows":                  cfg.Rows,
		"parallelLookbackDepth": cfg.ParallelLookbackDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("prefixsum: compile decoupled pipeline: %w", err)
	}
	return &Decoupled{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run zeroes the decoupled state scratch buffer, then dispatches one
// workgroup per tile of [0, n).
func (d *Decoupled) Run(cmd wrs.CommandBuffer, bufs DecoupledBuffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	blockSize := d.cfg.BlockSize()
	blockCount := (n + blockSize - 1) / blockSize

	profiler.Start("prefixsum.decoupled")
	defer profiler.End()

	cmd.Fill(bufs.State, 0)
	cmd.Barrier(wrs.BarrierComputeToCompute)

	cmd.BindPipeline(d.pipeline)
	cmd.BindBuffers(bufs.Elements, bufs.PrefixSum, bufs.State)

	push := make([]byte, 12)
	wire.PutUint32At(push, 0, n)
	wire.PutUint32At(push, 1, bufs.BufferSize)
	wire.PutUint32At(push, 2, boolToUint32(d.cfg.Reverse))
	cmd.PushConstants(push)

	cmd.Dispatch(blockCount, 1, 1)
	return nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func decoupledReferenceKernel(cfg DecoupledConfig) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	blockSize := cfg.BlockSize()
	inclusive := cfg.BlockScanVariant&blockscan.Inclusive == blockscan.Inclusive

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		bufferSize := wire.Uint32At(push, 1)
		reverse := wire.Uint32At(push, 2) != 0

		elements := wire.Floats32(buffers[0], int(n))
		outLen := n
		if reverse {
			outLen = bufferSize
		}
		prefix := wire.Floats32(buffers[1], int(outLen))
		blockCount := (n + blockSize - 1) / blockSize

		compute := func(block uint32) float32 {
			start := block * blockSize
			end := start + blockSize
			if end > n {
				end = n
			}
			var sum float32
			for i := start; i < end; i++ {
				sum += elements[i]
			}
			return sum
		}
		combine := func(a, b float32) float32 { return a + b }

		err := lookback.Run(context.Background(), runner, blockCount, cfg.ParallelLookbackDepth, float32(0), compute, combine,
			func(block uint32, exclusive, _ float32) {
				start := block * blockSize
				end := start + blockSize
				if end > n {
					end = n
				}
				running := exclusive
				for i := start; i < end; i++ {
					var v float32
					if inclusive {
						running += elements[i]
						v = running
					} else {
						v = running
						running += elements[i]
					}
					k := i
					if reverse {
						k = bufferSize - 1 - i
					}
					prefix[k] = v
				}
			})
		if err != nil {
			return err
		}

		wire.PutFloats32(buffers[1], prefix)
		return nil
	}
}

