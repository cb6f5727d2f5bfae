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

package pack

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa/split"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// SubgroupConfig configures the subgroup-cooperative pack pipeline: a
// subgroup handles subgroupSize/subgroupSplit splits at a time, with
// subgroupSplit threads cooperating on each one's fetches and shuffles.
type SubgroupConfig struct {
	WorkgroupSize uint32
	SplitSize     uint32
	SubgroupSplit uint32 // threads cooperating per split; must be a power of two
}

func (c SubgroupConfig) Validate(ctx wrs.Context) error {
	if c.WorkgroupSize == 0 {
		return wrs.NewConfigError("psa/pack/subgroup", "workgroupSize must be > 0")
	}
	if c.SplitSize == 0 {
		return wrs.NewConfigError("psa/pack/subgroup", "splitSize must be > 0")
	}
	if c.SubgroupSplit == 0 || c.SubgroupSplit&(c.SubgroupSplit-1) != 0 {
		return wrs.NewConfigError("psa/pack/subgroup", "subgroupSplit must be a power of two")
	}
	if c.SubgroupSplit > ctx.SubgroupSize() {
		return wrs.NewConfigError("psa/pack/subgroup", "subgroupSplit must be <= subgroupSize")
	}
	return nil
}

// Subgroup is a compiled subgroup-cooperative pack pipeline. Its reference
// kernel computes the identical per-split result as Scalar (see packSplit):
// only the real device kernel's cooperative fetch/shuffle pattern differs,
// never the arithmetic, which is what lets both variants agree
// bit-for-bit up to floating-point associativity in the weight
// accumulator.
type Subgroup struct {
	cfg      SubgroupConfig
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewSubgroup compiles the subgroup-cooperative pack pipeline.
func NewSubgroup(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg SubgroupConfig) (*Subgroup, error) {
	log := wrs.ComponentLogger("psa.pack.subgroup")
	if err := cfg.Validate(ctx); err != nil {
		log.WithError(err).Warn("rejected subgroup pack config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "psa.pack.subgroup", EntryPoint: "main", Source: shaders.PackSubgroup,
		Reference: subgroupReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize, "subgroupSplit": cfg.SubgroupSplit,
	})
	if err != nil {
		return nil, fmt.Errorf("psa/pack: compile subgroup pipeline: %w", err)
	}
	return &Subgroup{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches subgroupSize/subgroupSplit splits per subgroup, over
// [0, K).
func (sg *Subgroup) Run(cmd wrs.CommandBuffer, bufs Buffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	k := split.Config{SplitSize: sg.cfg.SplitSize}.SplitCount(n)

	profiler.Start("psa.pack.subgroup")
	defer profiler.End()

	cmd.BindPipeline(sg.pipeline)
	cmd.BindBuffers(bufs.PartitionIndices, bufs.PartitionElements, bufs.HeavyCount, bufs.Mean, bufs.Splits, bufs.AliasTable)
	push := make([]byte, 8)
	wire.PutUint32At(push, 0, k)
	wire.PutUint32At(push, 1, n)
	cmd.PushConstants(push)

	// Every subgroupSplit threads cooperate on one split, so the thread
	// count needed is k*subgroupSplit, not k.
	threadCount := k * sg.cfg.SubgroupSplit
	workgroupCount := (threadCount + sg.cfg.WorkgroupSize - 1) / sg.cfg.WorkgroupSize
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

func subgroupReferenceKernel(cfg SubgroupConfig) wrs.ReferenceKernel {
	runner := gridrunner.New(0)

	return func(buffers [][]byte, push []byte) error {
		k := wire.Uint32At(push, 0)
		n := wire.Uint32At(push, 1)
		sp := subproblem{
			partitionIndices: wire.Uint32s(buffers[0], int(n)),
			w:                wire.Floats32(buffers[1], int(n)),
			heavyCount:       wire.Uint32At(buffers[2], 0),
			mu:               wire.Float32At(buffers[3], 0),
			n:                n,
		}

		splits := make([]split.Entry, k+1)
		for idx := range splits {
			off := idx * 12
			splits[idx] = split.Entry{
				I:     wire.Uint32At(buffers[4][off:], 0),
				J:     wire.Uint32At(buffers[4][off:], 1),
				Spill: wire.Float32At(buffers[4][off:], 2),
			}
		}

		alias := make([]Entry, n)

		err := runner.Dispatch(context.Background(), k, false, func(_ context.Context, s uint32) error {
			packSplit(sp, splits[s].I, splits[s].J, splits[s].Spill, splits[s+1].I, splits[s+1].J, alias)
			return nil
		})
		if err != nil {
			return err
		}

		writeAliasTable(buffers[5], alias)
		return nil
	}
}
