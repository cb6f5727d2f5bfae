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

// Package blockscan implements the block-level inclusive/exclusive scan
// family: the primitive every device-wide prefix sum,
// prefix-partition, and mean reduction composes on top of. Four selectable
// strategies reach the same result via different lane-cooperation shapes —
// RAKING, RANKED, RANKED|STRIDED, and SUBGROUP_SCAN_SHFL — combinable with
// EXCLUSIVE/INCLUSIVE.
package blockscan

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/shaders"
	"github.com/ajroetker/go-wrs/wrs"
)

// Variant is a bitmask selecting a block-scan strategy and direction.
type Variant uint32

const (
	// Raking performs a shared-memory raking reduce-then-scan; no subgroup
	// shuffles required.
	Raking Variant = 1 << iota
	// Ranked gives each lane a per-thread register scan, then a subgroup
	// scan across lane leaders, then fan-out.
	Ranked
	// Strided modifies Ranked's per-thread data layout to coalesce global
	// loads; only meaningful combined with Ranked.
	Strided
	// SubgroupScanShfl replaces the built-in subgroup scan with an explicit
	// Kogge-Stone shuffle network.
	SubgroupScanShfl
	// Exclusive selects the exclusive scan. Mutually exclusive with Inclusive.
	Exclusive
	// Inclusive selects the inclusive scan. Mutually exclusive with Exclusive.
	Inclusive
)

func (v Variant) has(bit Variant) bool { return v&bit == bit }

// String renders the active flags for logging, e.g. "RANKED|STRIDED|EXCLUSIVE".
func (v Variant) String() string {
	names := []struct {
		bit  Variant
		name string
	}{
		{Raking, "RAKING"}, {Ranked, "RANKED"}, {Strided, "STRIDED"},
		{SubgroupScanShfl, "SUBGROUP_SCAN_SHFL"}, {Exclusive, "EXCLUSIVE"}, {Inclusive, "INCLUSIVE"},
	}
	s := ""
	for _, n := range names {
		if v.has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}

// Config configures one compiled block-scan pipeline.
type Config struct {
	WorkgroupSize        uint32
	Rows                 uint32
	Variant              Variant
	SequentialScanLength uint32
	WriteBlockReductions bool
}

// Validate rejects invalid variant combinations and size constraints at
// construction time, before any dispatch touches the device.
func (c Config) Validate(ctx wrs.Context) error {
	if c.WorkgroupSize == 0 {
		return wrs.NewConfigError("blockscan", "workgroupSize must be > 0")
	}
	if c.Rows == 0 {
		return wrs.NewConfigError("blockscan", "rows must be > 0")
	}
	if c.SequentialScanLength == 0 {
		return wrs.NewConfigError("blockscan", "sequentialScanLength must be >= 1")
	}
	if c.Variant.has(Strided) && c.Variant.has(Raking) {
		return wrs.NewConfigError("blockscan", "STRIDED|RAKING is not a valid combination")
	}
	if c.Variant.has(Raking) == c.Variant.has(Ranked) {
		return wrs.NewConfigError("blockscan", "variant must select exactly one of RAKING or RANKED")
	}
	if c.Variant.has(Exclusive) == c.Variant.has(Inclusive) {
		return wrs.NewConfigError("blockscan", "variant must select exactly one of EXCLUSIVE or INCLUSIVE")
	}
	if c.Variant.has(SubgroupScanShfl) && c.WorkgroupSize < ctx.SubgroupSize() {
		return wrs.NewConfigError("blockscan", "SUBGROUP_SCAN_SHFL requires workgroupSize >= device subgroup size")
	}
	return nil
}

// BlockSize is the number of elements one workgroup's tile covers.
func (c Config) BlockSize() uint32 {
	return c.WorkgroupSize * c.Rows * c.SequentialScanLength
}

// Buffers is the input/output buffer contract for a block scan: elements in, prefixes out, and an optional per-block reductions
// array sized to the number of blocks the caller will dispatch.
type Buffers struct {
	Elements   wrs.Buffer
	PrefixSum  wrs.Buffer
	Reductions wrs.Buffer // required iff Config.WriteBlockReductions
}

// Scan is a compiled block-scan pipeline, constructed once and reused
// across every run.
type Scan struct {
	cfg      Config
	pipeline wrs.Pipeline
	log      *logrus.Entry
}

// New validates cfg, builds the reference kernel for it, and compiles the
// pipeline via compiler.
func New(ctx wrs.Context, compiler wrs.ShaderCompiler, cfg Config) (*Scan, error) {
	log := wrs.ComponentLogger("blockscan")
	if err := cfg.Validate(ctx); err != nil {
		log.WithError(err).Warn("rejected block-scan config")
		return nil, err
	}

	source := wrs.ShaderSource{
		Name:       "blockscan." + cfg.Variant.String(),
		EntryPoint: "main",
		Source:     shaders.BlockScan,
		Reference:  referenceKernel(cfg),
	}
	pipeline, err := compiler.CompilePipeline(source, wrs.SpecializationConstants{
		"workgroupSize":        cfg.WorkgroupSize,
		"rows":                 cfg.Rows,
		"sequentialScanLength": cfg.SequentialScanLength,
	})
	if err != nil {
		return nil, fmt.Errorf("blockscan: compile pipeline: %w", err)
	}
	log.WithField("variant", cfg.Variant.String()).Debug("compiled block-scan pipeline")
	return &Scan{cfg: cfg, pipeline: pipeline, log: log}, nil
}

// Run dispatches one workgroup per tile of cfg.BlockSize() elements over
// [0, n). It does not submit or wait; the caller's command stream owns
// that.
func (s *Scan) Run(cmd wrs.CommandBuffer, bufs Buffers, n uint32, profiler wrs.Profiler) error {
	if profiler == nil {
		profiler = wrs.NoopProfiler()
	}
	if s.cfg.WriteBlockReductions && bufs.Reductions == nil {
		return wrs.NewConfigError("blockscan", "writeBlockReductions set but Reductions buffer is nil")
	}

	blockSize := s.cfg.BlockSize()
	blockCount := (n + blockSize - 1) / blockSize

	profiler.Start("blockscan")
	defer profiler.End()

	cmd.BindPipeline(s.pipeline)
	bound := []wrs.Buffer{bufs.Elements, bufs.PrefixSum}
	if bufs.Reductions != nil {
		bound = append(bound, bufs.Reductions)
	}
	cmd.BindBuffers(bound...)

	push := make([]byte, 4)
	wire.PutUint32At(push, 0, n)
	cmd.PushConstants(push)

	cmd.Dispatch(blockCount, 1, 1)
	return nil
}

// referenceKernel builds the CPU twin of the block-scan shader: it computes
// the exact same per-tile exclusive/inclusive scan every variant computes,
// dispatched one "workgroup" per tile via gridrunner so the reference
// device exercises the same grid shape a real dispatch would.
func referenceKernel(cfg Config) wrs.ReferenceKernel {
	runner := gridrunner.New(0)
	blockSize := cfg.BlockSize()
	inclusive := cfg.Variant.has(Inclusive)

	return func(buffers [][]byte, push []byte) error {
		n := wire.Uint32At(push, 0)
		elements := wire.Floats32(buffers[0], int(n))
		prefix := make([]float32, n)

		var reductions []float32
		writeReductions := cfg.WriteBlockReductions && len(buffers) > 2
		blockCount := (n + blockSize - 1) / blockSize
		if writeReductions {
			reductions = make([]float32, blockCount)
		}

		err := runner.Dispatch(context.Background(), blockCount, false, func(_ context.Context, block uint32) error {
			start := block * blockSize
			end := start + blockSize
			if end > n {
				end = n
			}
			var running float32
			for i := start; i < end; i++ {
				if inclusive {
					running += elements[i]
					prefix[i] = running
				} else {
					excl := running
					running += elements[i]
					prefix[i] = excl
				}
			}
			if writeReductions {
				reductions[block] = running
			}
			return nil
		})
		if err != nil {
			return err
		}

		wire.PutFloats32(buffers[1], prefix)
		if writeReductions {
			wire.PutFloats32(buffers[2], reductions)
		}
		return nil
	}
}

