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

// InlineConfig configures the fused split-pack pipeline.
type InlineConfig struct {
	WorkgroupSize uint32
	SplitSize     uint32
}

func (c InlineConfig) Validate() error {
	if c.WorkgroupSize <= 1 {
		return wrs.NewConfigError("psa/pack/inline", "workgroupSize must be > 1 (the last thread propagates boundary state)")
	}
	if c.SplitSize == 0 {
		return wrs.NewConfigError("psa/pack/inline", "splitSize must be > 0")
	}
	return nil
}

// InlineBuffers is the fused pipeline's input/output contract: no Splits
// buffer, since boundaries are computed online from PartitionPrefix.
type InlineBuffers struct {
	PartitionPrefix   wrs.Buffer
	PartitionIndices  wrs.Buffer
	PartitionElements wrs.Buffer
	HeavyCount        wrs.Buffer
	Mean              wrs.Buffer
	AliasTable        wrs.Buffer
}

// Inline is a compiled inline split-pack pipeline: each run of
// workgroupSize-1 splits is handled by one workgroup, whose last thread
// computes and propagates the run's trailing boundary to the next
// workgroup, so the split buffer never needs to round-trip through
// memory between a separate split and pack dispatch.
type Inline struct {
	cfg      InlineConfig
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewInline compiles the inline split-pack pipeline.
func NewInline(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg InlineConfig) (*Inline, error) {
	log := wrs.ComponentLogger("psa.pack.inline")
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("rejected inline split-pack config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "psa.pack.inline", EntryPoint: "main", Source: shaders.PackInline,
		Reference: inlineReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize,
	})
	if err != nil {
		return nil, fmt.Errorf("psa/pack: compile inline pipeline: %w", err)
	}
	return &Inline{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches one workgroup per run of (workgroupSize-1) splits.
func (il *Inline) Run(cmd wrs.CommandBuffer, bufs InlineBuffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	k := split.Config{SplitSize: il.cfg.SplitSize}.SplitCount(n)

	profiler.Start("psa.pack.inline")
	defer profiler.End()

	cmd.BindPipeline(il.pipeline)
	cmd.BindBuffers(bufs.PartitionPrefix, bufs.PartitionIndices, bufs.PartitionElements, bufs.HeavyCount, bufs.Mean, bufs.AliasTable)
	push := make([]byte, 8)
	wire.PutUint32At(push, 0, k)
	wire.PutUint32At(push, 1, n)
	cmd.PushConstants(push)

	splitsPerWorkgroup := il.cfg.WorkgroupSize - 1
	workgroupCount := (k + splitsPerWorkgroup - 1) / splitsPerWorkgroup
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

func inlineReferenceKernel(cfg InlineConfig) wrs.ReferenceKernel {
	runner := gridrunner.New(0)

	return func(buffers [][]byte, push []byte) error {
		k := wire.Uint32At(push, 0)
		n := wire.Uint32At(push, 1)

		partitionPrefix := wire.Floats32(buffers[0], int(n))
		sp := subproblem{
			partitionIndices: wire.Uint32s(buffers[1], int(n)),
			w:                wire.Floats32(buffers[2], int(n)),
			heavyCount:       wire.Uint32At(buffers[3], 0),
			mu:               wire.Float32At(buffers[4], 0),
			n:                n,
		}

		heavyPrefix, lightPrefix := split.PrefixArrays(n, sp.heavyCount, partitionPrefix, sp.w)

		h := sp.heavyCount
		l := n - h
		boundary := func(s uint32) split.Entry {
			switch s {
			case 0:
				return split.Entry{I: 0, J: 0, Spill: 0}
			case k:
				return split.Entry{I: l, J: h, Spill: 0}
			default:
				return split.Boundary(s, cfg.SplitSize, sp.mu, heavyPrefix, lightPrefix)
			}
		}

		alias := make([]Entry, n)
		err := runner.Dispatch(context.Background(), k, false, func(_ context.Context, s uint32) error {
			cur, next := boundary(s), boundary(s+1)
			packSplit(sp, cur.I, cur.J, cur.Spill, next.I, next.J, alias)
			return nil
		})
		if err != nil {
			return err
		}

		writeAliasTable(buffers[5], alias)
		return nil
	}
}
