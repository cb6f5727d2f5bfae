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

// Package pack converts each PSA split's bounded subproblem into its slice
// of a classic Walker alias table. A subproblem tracks a light cursor i
// (counting from the reversed light stream), a heavy cursor j, and a
// running weight accumulator w that either absorbs a light element's
// weight or spills the remainder of a heavy bucket into the next one.
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

// Entry is one alias-table slot: probability p and alias index a.
type Entry struct {
	P float32
	A uint32
}

// Config configures the scalar pack pipeline: one thread per split.
type Config struct {
	WorkgroupSize uint32
	SplitSize     uint32
}

func (c Config) Validate() error {
	if c.WorkgroupSize == 0 {
		return wrs.NewConfigError("psa/pack", "workgroupSize must be > 0")
	}
	if c.SplitSize == 0 {
		return wrs.NewConfigError("psa/pack", "splitSize must be > 0")
	}
	return nil
}

// Buffers is the scalar pack pipeline's input/output contract.
type Buffers struct {
	PartitionIndices  wrs.Buffer
	PartitionElements wrs.Buffer // W reordered to match PartitionIndices
	HeavyCount        wrs.Buffer
	Mean              wrs.Buffer
	Splits            wrs.Buffer // K+1 entries from package split
	AliasTable        wrs.Buffer // N entries of {p, a}
}

// Scalar is a compiled scalar pack pipeline.
type Scalar struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// NewScalar compiles the scalar pack pipeline.
func NewScalar(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Scalar, error) {
	log := wrs.ComponentLogger("psa.pack.scalar")
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("rejected scalar pack config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "psa.pack.scalar", EntryPoint: "main", Source: shaders.PackScalar,
		Reference: scalarReferenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize,
	})
	if err != nil {
		return nil, fmt.Errorf("psa/pack: compile scalar pipeline: %w", err)
	}
	return &Scalar{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches one thread per split, over [0, K).
func (s *Scalar) Run(cmd wrs.CommandBuffer, bufs Buffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	k := split.Config{SplitSize: s.cfg.SplitSize}.SplitCount(n)

	profiler.Start("psa.pack.scalar")
	defer profiler.End()

	cmd.BindPipeline(s.pipeline)
	cmd.BindBuffers(bufs.PartitionIndices, bufs.PartitionElements, bufs.HeavyCount, bufs.Mean, bufs.Splits, bufs.AliasTable)
	push := make([]byte, 8)
	wire.PutUint32At(push, 0, k)
	wire.PutUint32At(push, 1, n)
	cmd.PushConstants(push)

	workgroupCount := (k + s.cfg.WorkgroupSize - 1) / s.cfg.WorkgroupSize
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

// subproblem bundles the cursors and weight lookups every pack variant's
// per-split loop shares, so the scalar, subgroup-cooperative, and inline
// variants all walk exactly the same arithmetic and agree bit-for-bit.
type subproblem struct {
	partitionIndices []uint32
	w                []float32 // POSITION-indexed (PartitionElements)
	n, heavyCount    uint32
	mu               float32
}

func (sp subproblem) lightIdx(i uint32) uint32     { return sp.partitionIndices[sp.n-1-i] }
func (sp subproblem) heavyIdx(j uint32) uint32      { return sp.partitionIndices[j] }
func (sp subproblem) lightWeight(i uint32) float32 { return sp.w[sp.n-1-i] }
func (sp subproblem) heavyWeight(j uint32) float32 { return sp.w[j] }

// packSplit walks one split's (i0,j0,spill)..(i1,j1) subproblem, writing
// every alias-table entry it resolves into alias (indexed by ORIGINAL
// index, sized N).
func packSplit(sp subproblem, i0, j0 uint32, spill float32, i1, j1 uint32, alias []Entry) {
	mu, heavyCount := sp.mu, sp.heavyCount

	i, j := i0, j0
	var ww float32
	if spill != 0 {
		ww = spill
	} else if j0 < heavyCount {
		ww = sp.heavyWeight(j0)
	}

	for j != heavyCount {
		if ww > mu {
			if i >= i1 {
				for jj := j; jj < j1; jj++ {
					h := sp.heavyIdx(jj)
					alias[h] = Entry{P: 1, A: h}
				}
				return
			}
			l := sp.lightIdx(i)
			h := sp.heavyIdx(j)
			alias[l] = Entry{P: sp.lightWeight(i) / mu, A: h}
			ww = (ww + sp.lightWeight(i)) - mu
			i++
		} else {
			h := sp.heavyIdx(j)
			if j >= j1 {
				for ii := i; ii < i1; ii++ {
					l := sp.lightIdx(ii)
					alias[l] = Entry{P: 1, A: h}
				}
				return
			}
			prob := ww / mu
			if j+1 >= heavyCount {
				alias[h] = Entry{P: prob, A: h}
				ww -= mu
				for ii := i; ii < i1; ii++ {
					l := sp.lightIdx(ii)
					alias[l] = Entry{P: 1, A: h}
				}
				return
			}
			hnext := sp.heavyIdx(j + 1)
			alias[h] = Entry{P: prob, A: hnext}
			ww = (ww + sp.heavyWeight(j+1)) - mu
			j++
		}
	}
}

func scalarReferenceKernel(cfg Config) wrs.ReferenceKernel {
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

func writeAliasTable(buf []byte, alias []Entry) {
	for idx, e := range alias {
		off := idx * 8
		wire.PutFloat32At(buf[off:], 0, e.P)
		wire.PutUint32At(buf[off:], 1, e.A)
	}
}

