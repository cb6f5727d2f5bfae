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

// Package refdevice is the pure-Go implementation of the wrs.Context /
// Allocator / ShaderCompiler / CommandBuffer surface. It executes every
// kernel's ReferenceKernel directly instead of compiling and submitting
// real shader work, so the whole library is exercisable and testable
// without a GPU. It plays the same role the scalar "fallback" target plays
// in a portable SIMD library.
package refdevice

import (
	"fmt"

	"github.com/ajroetker/go-wrs/wrs"
)

// Device bundles the handles a component constructor needs: it implements
// wrs.Context, wrs.Allocator, and wrs.ShaderCompiler all at once.
type Device struct {
	subgroupSize              uint32
	forwardProgressGuaranteed bool
	features                  map[string]bool
}

// Option configures a Device at construction.
type Option func(*Device)

// WithSubgroupSize overrides the default simulated subgroup size (32).
func WithSubgroupSize(n uint32) Option {
	return func(d *Device) { d.subgroupSize = n }
}

// WithoutForwardProgressGuarantee simulates a device that cannot
// concurrently schedule every dispatched workgroup, forcing callers to the
// block-wise path.
func WithoutForwardProgressGuarantee() Option {
	return func(d *Device) { d.forwardProgressGuaranteed = false }
}

// WithoutFeature marks a named capability (e.g. "float32.atomicAdd") as
// unsupported, for exercising FeatureError paths.
func WithoutFeature(name string) Option {
	return func(d *Device) { d.features[name] = false }
}

// New builds a reference Device with every feature enabled, a 32-wide
// subgroup, and the forward-progress guarantee decoupled-lookback kernels
// require.
func New(opts ...Option) *Device {
	d := &Device{
		subgroupSize:              32,
		forwardProgressGuaranteed: true,
		features:                  map[string]bool{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) SupportsFeature(name string) bool {
	if v, ok := d.features[name]; ok {
		return v
	}
	return true
}

func (d *Device) SubgroupSize() uint32 { return d.subgroupSize }

func (d *Device) SupportsForwardProgressGuarantee() bool { return d.forwardProgressGuaranteed }

func (d *Device) AllocateBuffer(byteSize uint64, usage wrs.BufferUsage) (wrs.Buffer, error) {
	return &buffer{bytes: make([]byte, byteSize), usage: usage}, nil
}

func (d *Device) CompilePipeline(source wrs.ShaderSource, spec wrs.SpecializationConstants) (wrs.Pipeline, error) {
	if source.Reference == nil {
		return nil, fmt.Errorf("refdevice: shader %q has no reference kernel", source.Name)
	}
	return &pipeline{name: source.Name, kernel: source.Reference, spec: spec}, nil
}

// pipeline wraps a ReferenceKernel as an opaque wrs.Pipeline.
type pipeline struct {
	name   string
	kernel wrs.ReferenceKernel
	spec   wrs.SpecializationConstants
}

func (p *pipeline) Name() string { return p.name }

// buffer is a host-resident, always-mappable wrs.Buffer.
type buffer struct {
	bytes []byte
	usage wrs.BufferUsage
}

func (b *buffer) Size() uint64 { return uint64(len(b.bytes)) }

func (b *buffer) Map() ([]byte, error) { return b.bytes, nil }

func (b *buffer) Unmap() error { return nil }
