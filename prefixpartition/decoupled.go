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

// Package prefixpartition implements the decoupled prefix-partition
// primitive: given a pivot it stable-partitions elements
// into heavy/light groups growing from opposite ends of the output arrays,
// simultaneously producing the exclusive prefix sum within each group.
package prefixpartition

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/lookback"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// Config is shared by the decoupled and block-wise variants.
type Config struct {
	WorkgroupSize uint32
	Rows          uint32
}

func (c Config) blockSize() uint32 { return c.WorkgroupSize * c.Rows }

func (c Config) validate(component string) error {
	if c.WorkgroupSize == 0 || c.Rows == 0 {
		return wrs.NewConfigError(component, "workgroupSize and rows must be > 0")
	}
	return nil
}

// Buffers is the input/output contract. PartitionElements
// is optional: when non-nil it receives W[partitionIndices[k]], so
// downstream kernels (PSA split/pack) don't need to re-gather through
// partitionIndices. Pivot is a single-float32 buffer (typically mean's
// output) read directly by the kernel, so no host readback is needed
// between Mean and PrefixPartition.
type Buffers struct {
	Elements          wrs.Buffer
	Pivot             wrs.Buffer
	PartitionIndices  wrs.Buffer
	PartitionPrefix   wrs.Buffer
	PartitionElements wrs.Buffer // optional
	HeavyCount        wrs.Buffer // single uint32
}

// triple is the decoupled payload this primitive's lookback accumulates:
// heavy count, heavy weight sum, light weight sum over a tile.
type triple struct {
	HeavyCount uint32
	HeavySum   float32
	LightSum   float32
}

func addTriple(a, b triple) triple {
	return triple{HeavyCount: a.HeavyCount + b.HeavyCount, HeavySum: a.HeavySum + b.HeavySum, LightSum: a.LightSum + b.LightSum}
}

// DecoupledConfig adds the parallel-lookback depth to Config.
type DecoupledConfig struct {
	Config
	ParallelLookbackDepth uint32
}

func (c DecoupledConfig) validate(ctx wrs.Context) error {
	if err := c.Config.validate("prefixpartition.decoupled"); err != nil {
		return err
	}
	if c.ParallelLookbackDepth == 0 || c.ParallelLookbackDepth > ctx.SubgroupSize() {
		return wrs.NewConfigError("prefixpartition.decoupled", "parallelLookbackDepth must be in [1, subgroupSize]")
	}
	return nil
}

// Decoupled is a compiled decoupled prefix-partition pipeline.
type Decoupled struct {
	cfg      DecoupledConfig
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewDecoupled compiles the decoupled prefix-partition pipeline.
func NewDecoupled(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg DecoupledConfig) (*Decoupled, error) {
	log := wrs.ComponentLogger("prefixpartition.decoupled")
	if err := cfg.validate(ctx); err != nil {
		log.WithError(err).Warn("rejected decoupled prefix-partition config")
		return nil, err
	}
	if !ctx.SupportsForwardProgressGuarantee() {
		return nil, wrs.NewFeatureError("prefixpartition.decoupled", "forwardProgressGuarantee")
	}

	source := wrs.ShaderSource{
		Name: "prefixpartition.decoupled", EntryPoint: "main", Source: shaders.PrefixPartitionDecoupled,
		Reference: decoupledReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize, "rows": cfg.Rows, "parallelLookbackDepth": cfg.ParallelLookbackDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("prefixpartition: compile decoupled pipeline: %w", err)
	}
	return &Decoupled{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run zeroes the decoupled-state scratch buffer (allocated by the caller to
// blockCount*PartitionDecoupledStateSize bytes) and dispatches one
// workgroup per tile of [0, n).
func (d *Decoupled) Run(cmd wrs.CommandBuffer, bufs Buffers, state wrs.Buffer, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("prefixpartition.decoupled")
	defer profiler.End()

	cmd.Fill(state, 0)
	cmd.Barrier(wrs.BarrierComputeToCompute)

	blockCount := (n + d.cfg.blockSize() - 1) / d.cfg.blockSize()
	cmd.BindPipeline(d.pipeline)
	bound := []wrs.Buffer{bufs.Elements, bufs.Pivot, bufs.PartitionIndices, bufs.PartitionPrefix, bufs.HeavyCount, state}
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

func decoupledReferenceKernel(cfg DecoupledConfig) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	blockSize := cfg.blockSize()

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		elements := wire.Floats32(buffers[0], int(n))
		pivot := wire.Float32At(buffers[1], 0)
		blockCount := (n + blockSize - 1) / blockSize

		partitionIndices := make([]uint32, n)
		partitionPrefix := make([]float32, n)
		var partitionElements []float32
		if len(buffers) > 6 {
			partitionElements = make([]float32, n)
		}

		compute := func(block uint32) triple {
			start, end := blockRange(block, blockSize, n)
			var t triple
			for i := start; i < end; i++ {
				if elements[i] > pivot {
					t.HeavyCount++
					t.HeavySum += elements[i]
				} else {
					t.LightSum += elements[i]
				}
			}
			return t
		}

		var heavyCount uint32
		err := lookback.Run(context.Background(), runner, blockCount, cfg.ParallelLookbackDepth, triple{}, compute, addTriple,
			func(block uint32, exclusive, inclusive triple) {
				start, end := blockRange(block, blockSize, n)
				var localHeavyCount uint32
				var localHeavySum, localLightSum float32
				exclusiveLightCount := start - exclusive.HeavyCount

				for i := start; i < end; i++ {
					w := elements[i]
					if w > pivot {
						rank := exclusive.HeavyCount + localHeavyCount
						partitionIndices[rank] = i
						partitionPrefix[rank] = exclusive.HeavySum + localHeavySum
						if partitionElements != nil {
							partitionElements[rank] = w
						}
						localHeavyCount++
						localHeavySum += w
					} else {
						rank := exclusiveLightCount + uint32(i-start) - localHeavyCount
						pos := n - 1 - rank
						partitionIndices[pos] = i
						partitionPrefix[pos] = exclusive.LightSum + localLightSum
						if partitionElements != nil {
							partitionElements[pos] = w
						}
						localLightSum += w
					}
				}
				if block == blockCount-1 {
					heavyCount = inclusive.HeavyCount
				}
			})
		if err != nil {
			return err
		}

		wire.PutUint32s(buffers[2], partitionIndices)
		wire.PutFloats32(buffers[3], partitionPrefix)
		wire.PutUint32At(buffers[4], 0, heavyCount)
		if partitionElements != nil {
			wire.PutFloats32(buffers[6], partitionElements)
		}
		return nil
	}
}

func blockRange(block, blockSize, n uint32) (start, end uint32) {
	start = block * blockSize
	end = start + blockSize
	if end > n {
		end = n
	}
	return start, end
}

