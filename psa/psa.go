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

// Package psa composes the Partitioned Sweep Algorithm's four stages —
// Mean, PrefixPartition, Split, and Pack — into a single alias-table
// builder, picking between each stage's decoupled-lookback and block-wise
// variants based on what the device actually supports.
package psa

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/mean"
	"github.com/ajroetker/go-wrs/prefixpartition"
	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/psa/split"
	"github.com/ajroetker/go-wrs/wrs"
)

// Config configures every stage of the alias-table build. WorkgroupSize and
// Rows size the mean/prefix-partition tiles; SplitSize and the two
// workgroup sizes size the split and pack stages.
type Config struct {
	WorkgroupSize         uint32
	Rows                  uint32
	ParallelLookbackDepth uint32 // only consulted on the decoupled-lookback path
	MaxBlockCount         uint32 // only consulted on the block-wise fallback path
	SplitSize             uint32
	SplitWorkgroupSize    uint32
	PackWorkgroupSize     uint32
}

func (c Config) validateCommon() error {
	if c.WorkgroupSize == 0 || c.Rows == 0 {
		return wrs.NewConfigError("psa", "workgroupSize and rows must be > 0")
	}
	if c.SplitSize == 0 || c.SplitWorkgroupSize == 0 || c.PackWorkgroupSize == 0 {
		return wrs.NewConfigError("psa", "splitSize, splitWorkgroupSize and packWorkgroupSize must be > 0")
	}
	return nil
}

// Result is the alias-table build's output. HeavyCount and Mean are
// exposed mainly for diagnostics/tests; AliasTable is the N-entry table a
// sampler consumes.
type Result struct {
	AliasTable wrs.Buffer // N entries of pack.Entry {p, a}
	HeavyCount wrs.Buffer // single uint32
	Mean       wrs.Buffer // single float32
}

// PSA is a compiled alias-table build pipeline. Which mean/prefix-partition
// variant it drives is fixed at construction time based on
// ctx.SupportsForwardProgressGuarantee(): the decoupled-lookback path when
// true, the block-wise (and atomic-mean) path when false.
type PSA struct {
	cfg   Config
	alloc wrs.Allocator
	log   *logrus.Entry

	decoupled bool

	meanDecoupled *mean.Decoupled
	meanAtomic    *mean.Atomic

	partitionDecoupled *prefixpartition.Decoupled
	partitionBlockWise *prefixpartition.BlockWise

	split *split.Scalar
	pack  *pack.Scalar
}

// New picks the decoupled-lookback mean/prefix-partition pair when the
// device guarantees forward progress, and falls back to the atomic-mean +
// block-wise prefix-partition pair otherwise, compiling whichever pipelines
// that choice needs plus the (device-independent) split and pack stages.
func New(ctx wrs.Context, compiler wrs.ShaderCompiler, alloc wrs.Allocator, cfg Config) (*PSA, error) {
	log := wrs.ComponentLogger("psa")
	if err := cfg.validateCommon(); err != nil {
		log.WithError(err).Warn("rejected psa config")
		return nil, err
	}

	p := &PSA{cfg: cfg, alloc: alloc, log: log}

	if ctx.SupportsForwardProgressGuarantee() {
		p.decoupled = true
		md, err := mean.NewDecoupled(ctx, compiler, mean.Config{
			WorkgroupSize: cfg.WorkgroupSize, Rows: cfg.Rows, ParallelLookbackDepth: cfg.ParallelLookbackDepth,
		})
		if err != nil {
			return nil, fmt.Errorf("psa: compile decoupled mean: %w", err)
		}
		pd, err := prefixpartition.NewDecoupled(ctx, compiler, prefixpartition.DecoupledConfig{
			Config:                prefixpartition.Config{WorkgroupSize: cfg.WorkgroupSize, Rows: cfg.Rows},
			ParallelLookbackDepth: cfg.ParallelLookbackDepth,
		})
		if err != nil {
			return nil, fmt.Errorf("psa: compile decoupled prefix-partition: %w", err)
		}
		p.meanDecoupled, p.partitionDecoupled = md, pd
	} else {
		log.Warn("device lacks forward-progress guarantee; falling back to atomic mean + block-wise prefix-partition")
		ma, err := mean.NewAtomic(ctx, compiler, mean.Config{WorkgroupSize: cfg.WorkgroupSize, Rows: cfg.Rows})
		if err != nil {
			return nil, fmt.Errorf("psa: compile atomic mean: %w", err)
		}
		pb, err := prefixpartition.NewBlockWise(ctx, compiler, prefixpartition.BlockWiseConfig{
			Config:        prefixpartition.Config{WorkgroupSize: cfg.WorkgroupSize, Rows: cfg.Rows},
			MaxBlockCount: cfg.MaxBlockCount,
		})
		if err != nil {
			return nil, fmt.Errorf("psa: compile block-wise prefix-partition: %w", err)
		}
		p.meanAtomic, p.partitionBlockWise = ma, pb
	}

	sp, err := split.New(ctx, compiler, split.Config{WorkgroupSize: cfg.SplitWorkgroupSize, SplitSize: cfg.SplitSize})
	if err != nil {
		return nil, fmt.Errorf("psa: compile split: %w", err)
	}
	pk, err := pack.NewScalar(ctx, compiler, pack.Config{WorkgroupSize: cfg.PackWorkgroupSize, SplitSize: cfg.SplitSize})
	if err != nil {
		return nil, fmt.Errorf("psa: compile pack: %w", err)
	}
	p.split, p.pack = sp, pk

	return p, nil
}

func (p *PSA) allocBuf(byteSize uint64) (wrs.Buffer, error) {
	buf, err := p.alloc.AllocateBuffer(byteSize, wrs.BufferUsageStorage|wrs.BufferUsageHostVisible)
	if err != nil {
		return nil, fmt.Errorf("psa: allocate buffer: %w", err)
	}
	return buf, nil
}

// Run builds the alias table for elements[0:n], allocating every
// intermediate buffer the PSA stages need internally — only elements
// itself is caller-owned.
func (p *PSA) Run(cmd wrs.CommandBuffer, elements wrs.Buffer, n uint32, profiler wrs.Profiler) (Result, error) {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	profiler.Start("psa")
	defer profiler.End()

	meanBuf, err := p.allocBuf(4)
	if err != nil {
		return Result{}, err
	}
	partitionIndices, err := p.allocBuf(4 * uint64(n))
	if err != nil {
		return Result{}, err
	}
	partitionPrefix, err := p.allocBuf(4 * uint64(n))
	if err != nil {
		return Result{}, err
	}
	partitionElements, err := p.allocBuf(4 * uint64(n))
	if err != nil {
		return Result{}, err
	}
	heavyCountBuf, err := p.allocBuf(4)
	if err != nil {
		return Result{}, err
	}

	blockSize := p.cfg.WorkgroupSize * p.cfg.Rows
	blockCount := (n + blockSize - 1) / blockSize

	if p.decoupled {
		meanState, err := p.allocBuf(uint64(blockCount) * wrs.ScanDecoupledStateSize)
		if err != nil {
			return Result{}, err
		}
		if err := p.meanDecoupled.Run(cmd, mean.Buffers{Elements: elements, Mean: meanBuf, State: meanState}, n, profiler); err != nil {
			return Result{}, fmt.Errorf("psa: mean: %w", err)
		}

		partitionState, err := p.allocBuf(uint64(blockCount) * wrs.PartitionDecoupledStateSize)
		if err != nil {
			return Result{}, err
		}
		ppBufs := prefixpartition.Buffers{
			Elements: elements, Pivot: meanBuf,
			PartitionIndices: partitionIndices, PartitionPrefix: partitionPrefix,
			PartitionElements: partitionElements, HeavyCount: heavyCountBuf,
		}
		if err := p.partitionDecoupled.Run(cmd, ppBufs, partitionState, n, profiler); err != nil {
			return Result{}, fmt.Errorf("psa: prefix-partition: %w", err)
		}
	} else {
		if err := p.meanAtomic.Run(cmd, mean.Buffers{Elements: elements, Mean: meanBuf}, n, profiler); err != nil {
			return Result{}, fmt.Errorf("psa: mean: %w", err)
		}

		blockHeavyCount, err := p.allocBuf(4 * uint64(blockCount))
		if err != nil {
			return Result{}, err
		}
		blockHeavyReduction, err := p.allocBuf(4 * uint64(blockCount))
		if err != nil {
			return Result{}, err
		}
		blockLightReduction, err := p.allocBuf(4 * uint64(blockCount))
		if err != nil {
			return Result{}, err
		}
		bwBufs := prefixpartition.BlockWiseBuffers{
			Buffers: prefixpartition.Buffers{
				Elements: elements, Pivot: meanBuf,
				PartitionIndices: partitionIndices, PartitionPrefix: partitionPrefix,
				PartitionElements: partitionElements, HeavyCount: heavyCountBuf,
			},
			BlockHeavyCount: blockHeavyCount, BlockHeavyReduction: blockHeavyReduction, BlockLightReduction: blockLightReduction,
		}
		if err := p.partitionBlockWise.Run(cmd, bwBufs, n, profiler); err != nil {
			return Result{}, fmt.Errorf("psa: prefix-partition: %w", err)
		}
	}

	k := split.Config{SplitSize: p.cfg.SplitSize}.SplitCount(n)
	splitsBuf, err := p.allocBuf(12 * uint64(k+1))
	if err != nil {
		return Result{}, err
	}
	splitBufs := split.Buffers{
		PartitionPrefix: partitionPrefix, PartitionElements: partitionElements,
		HeavyCount: heavyCountBuf, Mean: meanBuf, Splits: splitsBuf,
	}
	if err := p.split.Run(cmd, splitBufs, n, profiler); err != nil {
		return Result{}, fmt.Errorf("psa: split: %w", err)
	}

	aliasTable, err := p.allocBuf(8 * uint64(n))
	if err != nil {
		return Result{}, err
	}
	packBufs := pack.Buffers{
		PartitionIndices: partitionIndices, PartitionElements: partitionElements,
		HeavyCount: heavyCountBuf, Mean: meanBuf, Splits: splitsBuf, AliasTable: aliasTable,
	}
	if err := p.pack.Run(cmd, packBufs, n, profiler); err != nil {
		return Result{}, fmt.Errorf("psa: pack: %w", err)
	}

	return Result{AliasTable: aliasTable, HeavyCount: heavyCountBuf, Mean: meanBuf}, nil
}
