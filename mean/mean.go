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

// Package mean implements the mean reduction used to derive the
// prefix-partition pivot: an atomic-accumulation variant
// requiring float32 atomic add, and a decoupled-lookback variant sharing
// the scaffold in internal/lookback with package prefixsum.
package mean

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/lookback"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// Config configures either mean variant.
type Config struct {
	WorkgroupSize uint32
	Rows          uint32
	// ParallelLookbackDepth is only consulted by the decoupled variant.
	ParallelLookbackDepth uint32
}

func (c Config) blockSize() uint32 { return c.WorkgroupSize * c.Rows }

func (c Config) validateCommon() error {
	if c.WorkgroupSize == 0 || c.Rows == 0 {
		return wrs.NewConfigError("mean", "workgroupSize and rows must be > 0")
	}
	return nil
}

// Buffers is the input/output contract: elements in, a single-scalar mean
// buffer out. Atomic accumulates directly into Mean, which its Run zeroes
// first; Decoupled also needs the decoupled-state scratch array in State.
type Buffers struct {
	Elements wrs.Buffer
	Mean     wrs.Buffer // single float32
	State    wrs.Buffer // decoupled variant only: blockCount ScanDecoupledState records
}

// Atomic is the atomic-accumulation mean reduction: each
// workgroup reduces its tile in shared memory and atomically adds the
// tile's contribution (sum/N) into a single scalar.
type Atomic struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewAtomic requires the device to support float32 atomic add.
func NewAtomic(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Atomic, error) {
	log := wrs.ComponentLogger("mean.atomic")
	if err := cfg.validateCommon(); err != nil {
		log.WithError(err).Warn("rejected atomic mean config")
		return nil, err
	}
	if !ctx.SupportsFeature("float32.atomicAdd") {
		return nil, wrs.NewFeatureError("mean.atomic", "float32.atomicAdd")
	}

	source := wrs.ShaderSource{
		Name: "mean.atomic", EntryPoint: "main", Source: shaders.MeanAtomic,
		Reference: atomicReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize, "rows": cfg.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("mean: compile atomic pipeline: %w", err)
	}
	return &Atomic{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run zeroes the mean scalar, then dispatches one workgroup per tile.
func (a *Atomic) Run(cmd wrs.CommandBuffer, bufs Buffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("mean.atomic")
	defer profiler.End()

	cmd.Fill(bufs.Mean, 0)
	cmd.Barrier(wrs.BarrierComputeToCompute)

	blockCount := (n + a.cfg.blockSize() - 1) / a.cfg.blockSize()
	cmd.BindPipeline(a.pipeline)
	cmd.BindBuffers(bufs.Elements, bufs.Mean)
	push := make([]byte, 4)
	wire.PutUint32At(push, 0, n)
	cmd.PushConstants(push)
	cmd.Dispatch(blockCount, 1, 1)
	return nil
}

func atomicReferenceKernel(cfg Config) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	blockSize := cfg.blockSize()
	var mu sync.Mutex

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		elements := wire.Floats32(buffers[0], int(n))
		blockCount := (n + blockSize - 1) / blockSize

		mean := wire.Float32At(buffers[1], 0)
		err := runner.Dispatch(context.Background(), blockCount, false, func(_ context.Context, block uint32) error {
			start := block * blockSize
			end := start + blockSize
			if end > n {
				end = n
			}
			var sum float32
			for i := start; i < end; i++ {
				sum += elements[i]
			}
			contribution := sum / float32(n)
			mu.Lock()
			mean += contribution
			mu.Unlock()
			return nil
		})
		if err != nil {
			return err
		}
		wire.PutFloat32At(buffers[1], 0, mean)
		return nil
	}
}


// Decoupled is the decoupled-lookback mean: only the last
// block to resolve its lookback writes inclusivePrefix/N as the mean.
type Decoupled struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewDecoupled compiles the decoupled mean pipeline.
func NewDecoupled(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Decoupled, error) {
	log := wrs.ComponentLogger("mean.decoupled")
	if err := cfg.validateCommon(); err != nil {
		log.WithError(err).Warn("rejected decoupled mean config")
		return nil, err
	}
	if cfg.ParallelLookbackDepth == 0 || cfg.ParallelLookbackDepth > ctx.SubgroupSize() {
		return nil, wrs.NewConfigError("mean.decoupled", "parallelLookbackDepth must be in [1, subgroupSize]")
	}
	if !ctx.SupportsForwardProgressGuarantee() {
		return nil, wrs.NewFeatureError("mean.decoupled", "forwardProgressGuarantee")
	}

	source := wrs.ShaderSource{
		Name: "mean.decoupled", EntryPoint: "main", Source: shaders.MeanDecoupled,
		Reference: decoupledReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize, "rows": cfg.Rows, "parallelLookbackDepth": cfg.ParallelLookbackDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("mean: compile decoupled pipeline: %w", err)
	}
	return &Decoupled{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run zeroes the decoupled state, then dispatches one workgroup per tile.
func (d *Decoupled) Run(cmd wrs.CommandBuffer, bufs Buffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("mean.decoupled")
	defer profiler.End()

	cmd.Fill(bufs.State, 0)
	cmd.Barrier(wrs.BarrierComputeToCompute)

	blockCount := (n + d.cfg.blockSize() - 1) / d.cfg.blockSize()
	cmd.BindPipeline(d.pipeline)
	cmd.BindBuffers(bufs.Elements, bufs.Mean, bufs.State)
	push := make([]byte, 4)
	wire.PutUint32At(push, 0, n)
	cmd.PushConstants(push)
	cmd.Dispatch(blockCount, 1, 1)
	return nil
}

func decoupledReferenceKernel(cfg Config) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	blockSize := cfg.blockSize()

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		elements := wire.Floats32(buffers[0], int(n))
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

		var total float32
		err := lookback.Run(context.Background(), runner, blockCount, cfg.ParallelLookbackDepth, float32(0), compute, combine,
			func(block uint32, _, inclusive float32) {
				if block == blockCount-1 {
					total = inclusive
				}
			})
		if err != nil {
			return err
		}
		wire.PutFloat32At(buffers[1], 0, total/float32(n))
		return nil
	}
}

