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

// Package alias samples indices in constant time from a Walker alias
// table built by package pack, drawing its uniforms from package philox so
// that a (seed, sampleCount) pair deterministically reproduces the same
// index stream.
package alias

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/sample/philox"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// Config configures the scalar sampler: one thread per output slot.
type Config struct {
	WorkgroupSize uint32
}

func (c Config) Validate(component string) error {
	if c.WorkgroupSize == 0 {
		return wrs.NewConfigError(component, "workgroupSize must be > 0")
	}
	return nil
}

// Buffers is the sampler's input/output contract.
type Buffers struct {
	AliasTable wrs.Buffer // N entries of pack.Entry {p, a}
	Samples    wrs.Buffer // S uint32 indices
}

// Sampler is the scalar alias-table sampler: each work-item derives its own
// (u, xi) pair from Philox, picks a candidate index idx = floor(u*N), and
// emits idx or A[idx].a depending on whether xi < A[idx].p.
type Sampler struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// New compiles the scalar sampler pipeline.
func New(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Sampler, error) {
	log := wrs.ComponentLogger("sample.alias")
	if err := cfg.Validate("sample.alias"); err != nil {
		log.WithError(err).Warn("rejected alias sampler config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "sample.alias", EntryPoint: "main", Source: shaders.AliasScalar,
		Reference: referenceKernel(cfg, 1),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize,
	})
	if err != nil {
		return nil, fmt.Errorf("sample/alias: compile pipeline: %w", err)
	}
	return &Sampler{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches one thread per output slot over [0, s).
func (sp *Sampler) Run(cmd wrs.CommandBuffer, bufs Buffers, n, s, seed uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("sample.alias")
	defer profiler.End()

	cmd.BindPipeline(sp.pipeline)
	cmd.BindBuffers(bufs.AliasTable, bufs.Samples)
	push := make([]byte, 12)
	wire.PutUint32At(push, 0, n)
	wire.PutUint32At(push, 1, s)
	wire.PutUint32At(push, 2, seed)
	cmd.PushConstants(push)

	workgroupCount := (s + sp.cfg.WorkgroupSize - 1) / sp.cfg.WorkgroupSize
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

// CooperativeConfig adds the batch width a subgroup samples together so
// alias-table loads are issued as one coalesced gather per batch.
type CooperativeConfig struct {
	Config
	CooperativeSampleSize uint32
}

func (c CooperativeConfig) Validate() error {
	if err := c.Config.Validate("sample.alias.cooperative"); err != nil {
		return err
	}
	if c.CooperativeSampleSize == 0 {
		return wrs.NewConfigError("sample.alias.cooperative", "cooperativeSampleSize must be > 0")
	}
	return nil
}

// Cooperative batches CooperativeSampleSize consecutive output slots within
// a subgroup; the reference device has no subgroup concept, so its kernel
// executes each batch's slots sequentially, same as Sampler, preserving
// only the batching boundary (and hence the deterministic output order).
type Cooperative struct {
	cfg      CooperativeConfig
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewCooperative compiles the cooperative sampler pipeline.
func NewCooperative(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg CooperativeConfig) (*Cooperative, error) {
	log := wrs.ComponentLogger("sample.alias.cooperative")
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("rejected cooperative alias sampler config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "sample.alias.cooperative", EntryPoint: "main", Source: shaders.AliasCooperative,
		Reference: referenceKernel(cfg.Config, cfg.CooperativeSampleSize),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize, "cooperativeSampleSize": cfg.CooperativeSampleSize,
	})
	if err != nil {
		return nil, fmt.Errorf("sample/alias: compile cooperative pipeline: %w", err)
	}
	return &Cooperative{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches one thread per batch of CooperativeSampleSize slots.
func (c *Cooperative) Run(cmd wrs.CommandBuffer, bufs Buffers, n, s, seed uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("sample.alias.cooperative")
	defer profiler.End()

	cmd.BindPipeline(c.pipeline)
	cmd.BindBuffers(bufs.AliasTable, bufs.Samples)
	push := make([]byte, 12)
	wire.PutUint32At(push, 0, n)
	wire.PutUint32At(push, 1, s)
	wire.PutUint32At(push, 2, seed)
	cmd.PushConstants(push)

	batches := (s + c.cfg.CooperativeSampleSize - 1) / c.cfg.CooperativeSampleSize
	workgroupCount := (batches + c.cfg.WorkgroupSize - 1) / c.cfg.WorkgroupSize
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

// uniforms derives the (u, xi) pair for output slot k from a single Philox
// block: lane 0 picks the candidate index, lane 1 decides whether to take
// it or its alias.
func uniforms(k, seed uint32) (u, xi float32) {
	out := philox.Block(philox.Counter4x32{k, 0, 0, 0}, philox.Key2x32{seed, 0})
	return philox.Uniform24(out[0]), philox.Uniform24(out[1])
}

func referenceKernel(cfg Config, batchSize uint32) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	_ = cfg

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		s := wire.Uint32At(push, 1)
		seed := wire.Uint32At(push, 2)

		entries := make([]pack.Entry, n)
		for i := range entries {
			off := i * 8
			entries[i] = pack.Entry{
				P: wire.Float32At(buffers[0][off:], 0),
				A: wire.Uint32At(buffers[0][off:], 1),
			}
		}

		samples := make([]uint32, s)
		batches := (s + batchSize - 1) / batchSize

		err := runner.Dispatch(context.Background(), batches, false, func(_ context.Context, b uint32) error {
			start := b * batchSize
			end := start + batchSize
			if end > s {
				end = s
			}
			for k := start; k < end; k++ {
				u, xi := uniforms(k, seed)
				idx := uint32(u * float32(n))
				if idx >= n {
					idx = n - 1
				}
				entry := entries[idx]
				if xi < entry.P {
					samples[k] = idx
				} else {
					samples[k] = entry.A
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		wire.PutUint32s(buffers[1], samples)
		return nil
	}
}
