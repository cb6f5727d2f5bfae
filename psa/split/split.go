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

// Package split divides a heavy/light-partitioned input into K = ceil(N/k)
// packable subproblems of bounded work, each recorded as an (i, j, spill)
// boundary into the light/heavy streams.
package split

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// Config configures the scalar split pipeline.
type Config struct {
	WorkgroupSize uint32
	SplitSize     uint32 // k
}

func (c Config) Validate() error {
	if c.WorkgroupSize == 0 {
		return wrs.NewConfigError("psa/split", "workgroupSize must be > 0")
	}
	if c.SplitSize == 0 {
		return wrs.NewConfigError("psa/split", "splitSize must be > 0")
	}
	return nil
}

// SplitCount returns K = ceil(N/k).
func (c Config) SplitCount(n uint32) uint32 { return (n + c.SplitSize - 1) / c.SplitSize }

// Buffers is the split pipeline's input/output contract. PartitionElements
// holds W reordered to match PartitionIndices/PartitionPrefix — every
// Split implementation in this package requires it (see DESIGN.md): the
// minimal {partitionPrefix, heavyCount, mean} contract alone cannot recover
// the two streams' total masses from exclusive prefixes, since the
// boundary's own weight is never stored, so this package always wires
// PSAConfig.usePartitionElements to true when constructing a Split.
type Buffers struct {
	PartitionPrefix   wrs.Buffer
	PartitionElements wrs.Buffer
	HeavyCount        wrs.Buffer
	Mean              wrs.Buffer
	Splits            wrs.Buffer // K+1 entries of {i, j, spill}
}

// Scalar is a compiled scalar split pipeline: one thread per split index.
type Scalar struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// New compiles the scalar split pipeline.
func New(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Scalar, error) {
	log := wrs.ComponentLogger("psa.split")
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("rejected split config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name: "psa.split.scalar", EntryPoint: "main", Source: shaders.SplitScalar,
		Reference: referenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize": cfg.WorkgroupSize,
	})
	if err != nil {
		return nil, fmt.Errorf("psa/split: compile pipeline: %w", err)
	}
	return &Scalar{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches one thread per split index over [0, K].
func (s *Scalar) Run(cmd wrs.CommandBuffer, bufs Buffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	k := s.cfg.SplitCount(n)

	profiler.Start("psa.split")
	defer profiler.End()

	cmd.BindPipeline(s.pipeline)
	cmd.BindBuffers(bufs.PartitionPrefix, bufs.PartitionElements, bufs.HeavyCount, bufs.Mean, bufs.Splits)
	push := make([]byte, 8)
	wire.PutUint32At(push, 0, k)
	wire.PutUint32At(push, 1, n)
	cmd.PushConstants(push)

	// splits[0] and splits[K] are forced constants, so only K-1 threads
	// (the interior splits) are dispatched.
	interior := k - 1
	workgroupCount := (interior + s.cfg.WorkgroupSize - 1) / s.cfg.WorkgroupSize
	cmd.Dispatch(workgroupCount, 1, 1)
	return nil
}

// Entry mirrors layout.SplitEntryLayout's fields, for use by callers and
// tests that want typed access instead of raw bytes.
type Entry struct {
	I     uint32
	J     uint32
	Spill float32
}

// PrefixArrays rebuilds the heavy (ascending, front) and light (ascending
// from the back) inclusive-ish prefix arrays used to search for a split's
// boundary: heavyPrefix[j] is the exclusive sum of the first j heavy
// elements, lightPrefix[r] is the exclusive sum of the first r light
// elements counting from the end of the partition. Exported so the inline
// split-pack variant in psa/pack can search for a split's boundary without
// a mediating Splits buffer, sharing exactly this arithmetic with the
// scalar split kernel so every variant agrees bit-for-bit.
func PrefixArrays(n, heavyCount uint32, partitionPrefix, partitionElements []float32) (heavyPrefix, lightPrefix []float32) {
	h := int(heavyCount)
	l := int(n) - h

	heavyPrefix = make([]float32, h+1)
	for j := 0; j < h; j++ {
		heavyPrefix[j] = partitionPrefix[j]
	}
	for j := 0; j < h; j++ {
		heavyPrefix[j+1] = heavyPrefix[j] + partitionElements[j]
	}
	lightPrefix = make([]float32, l+1)
	for r := 0; r < l; r++ {
		lightPrefix[r+1] = lightPrefix[r] + partitionElements[int(n)-1-r]
	}
	return heavyPrefix, lightPrefix
}

// Boundary searches heavyPrefix/lightPrefix for split index s's (i, j,
// spill) boundary, the core of every split/inline-pack variant.
func Boundary(s, splitSize uint32, mu float32, heavyPrefix, lightPrefix []float32) Entry {
	h := len(heavyPrefix) - 1
	l := len(lightPrefix) - 1
	target := float32(s) * float32(splitSize) * mu

	j := 0
	for j < h && heavyPrefix[j+1] <= target {
		j++
	}
	remaining := target - heavyPrefix[j]
	if remaining < 0 {
		remaining = 0
	}
	i := 0
	for i < l && lightPrefix[i+1] <= remaining {
		i++
	}
	spill := remaining - lightPrefix[i]

	const tolFactor = 1.0 / (1 << 20)
	tol := mu * tolFactor
	if spill < tol || spill > mu-tol {
		if spill > mu-tol {
			spill = mu
		} else {
			spill = 0
		}
	}
	return Entry{I: uint32(i), J: uint32(j), Spill: spill}
}

func referenceKernel(cfg Config) wrs.ReferenceKernel {
	runner := gridrunner.New(0)

	return func(buffers [][]byte, push []byte) error {
		k := wire.Uint32At(push, 0)
		n := wire.Uint32At(push, 1)
		heavyCount := wire.Uint32At(buffers[2], 0)
		mu := wire.Float32At(buffers[3], 0)
		splitSize := cfg.SplitSize

		h := int(heavyCount)
		l := int(n) - h
		partitionPrefix := wire.Floats32(buffers[0], int(n))
		partitionElements := wire.Floats32(buffers[1], int(n))
		heavyPrefix, lightPrefix := PrefixArrays(n, heavyCount, partitionPrefix, partitionElements)

		splits := make([]Entry, k+1)
		splits[0] = Entry{I: 0, J: 0, Spill: 0}
		splits[k] = Entry{I: uint32(l), J: uint32(h), Spill: 0}

		err := runner.Dispatch(context.Background(), k-1, false, func(_ context.Context, idx uint32) error {
			s := idx + 1 // splits[1..K-1]
			splits[s] = Boundary(s, splitSize, mu, heavyPrefix, lightPrefix)
			return nil
		})
		if err != nil {
			return err
		}

		for idx, e := range splits {
			off := idx * 12
			wire.PutUint32At(buffers[4][off:], 0, e.I)
			wire.PutUint32At(buffers[4][off:], 1, e.J)
			wire.PutFloat32At(buffers[4][off:], 2, e.Spill)
		}
		return nil
	}
}

