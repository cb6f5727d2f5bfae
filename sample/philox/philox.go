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

// Package philox generates uniform floats in [0,1) with the counter-based
// Philox4x32-10 generator: four 32-bit lanes, ten rounds, no state beyond a
// per-invocation counter derived from (global invocation id, seed). Two
// stream positions that differ in either seed or counter are independent,
// which is what lets the alias sampler derive two uniforms per output slot
// without coordinating across work-items.
package philox

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// Round constants from the Philox4x32 specification (Salmon et al., 2011).
const (
	multiplier0 = 0xD2511F53
	multiplier1 = 0xCD9E8D57
	weyl0       = 0x9E3779B9
	weyl1       = 0xBB67AE85
	rounds      = 10
)

// Counter4x32 is the 128-bit Philox counter, four 32-bit lanes.
type Counter4x32 [4]uint32

// Key2x32 is the 64-bit Philox key, two 32-bit lanes.
type Key2x32 [2]uint32

func mulhilo32(a, b uint32) (hi, lo uint32) {
	p := uint64(a) * uint64(b)
	return uint32(p >> 32), uint32(p)
}

// Block runs the full 10-round Philox4x32 permutation over ctr keyed by
// key, returning four independent 32-bit outputs.
func Block(ctr Counter4x32, key Key2x32) Counter4x32 {
	for r := 0; r < rounds; r++ {
		hi0, lo0 := mulhilo32(multiplier0, ctr[0])
		hi1, lo1 := mulhilo32(multiplier1, ctr[2])
		ctr = Counter4x32{
			hi1 ^ ctr[1] ^ key[0],
			lo1,
			hi0 ^ ctr[3] ^ key[1],
			lo0,
		}
		key[0] += weyl0
		key[1] += weyl1
	}
	return ctr
}

// Uniform24 converts the upper 24 bits of a Philox output lane to a float32
// uniform in [0,1), matching the device kernel's fixed-point conversion.
func Uniform24(x uint32) float32 {
	const mantissaBits = 24
	return float32(x>>(32-mantissaBits)) / float32(uint32(1)<<mantissaBits)
}

// Config configures the bulk uniform-stream generator.
type Config struct {
	WorkgroupSize uint32
}

func (c Config) Validate() error {
	if c.WorkgroupSize == 0 {
		return wrs.NewConfigError("sample/philox", "workgroupSize must be > 0")
	}
	return nil
}

// Buffers is the generator's output contract: S uniform floats in [0,1).
type Buffers struct {
	Samples wrs.Buffer
}

// Generator is a compiled bulk Philox uniform-stream pipeline.
type Generator struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// New compiles the Philox generator pipeline.
func New(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Generator, error) {
	log := wrs.ComponentLogger("sample.philox")
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("rejected philox config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "sample.philox", EntryPoint: "main", Source: shaders.Philox,
		Reference: referenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize,
	})
	if err != nil {
		return nil, fmt.Errorf("sample/philox: compile pipeline: %w", err)
	}
	return &Generator{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches ceil(s/workgroupSize) workgroups, one work item per
// uniform float, each work item's output bound to its own Philox counter
// stream so results are reproducible for a given (seed, s). No work item
// writes more than one float: there is no grid-stride loop, and only the
// first of the four Philox output lanes is used.
func (g *Generator) Run(cmd wrs.CommandBuffer, bufs Buffers, s uint32, seed uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("sample.philox")
	defer profiler.End()

	cmd.BindPipeline(g.pipeline)
	cmd.BindBuffers(bufs.Samples)
	push := make([]byte, 8)
	wire.PutUint32At(push, 0, s)
	wire.PutUint32At(push, 1, seed)
	cmd.PushConstants(push)

	workgroupCount := (s + g.cfg.WorkgroupSize - 1) / g.cfg.WorkgroupSize
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

func referenceKernel(cfg Config) wrs.ReferenceKernel {
	runner := gridrunner.New(0)

	return func(buffers [][]byte, push []byte) error {
		s := wire.Uint32At(push, 0)
		seed := wire.Uint32At(push, 1)
		key := Key2x32{seed, 0}

		samples := make([]float32, s)
		err := runner.Dispatch(context.Background(), s, false, func(_ context.Context, id uint32) error {
			out := Block(Counter4x32{id, 0, 0, 0}, key)
			samples[id] = Uniform24(out[0])
			return nil
		})
		if err != nil {
			return err
		}
		wire.PutFloats32(buffers[0], samples)
		return nil
	}
}
