package wrs

import "context"

// Context is the opaque handle to a GPU context: device selection, queue
// families, extension/feature table. Supplied by the host framework;
// go-wrs never constructs one.
type Context interface {
	// SupportsFeature reports whether the device backing this context
	// supports a named capability, e.g. "float32.atomicAdd",
	// "subgroup.shuffle", "subgroup.size=32".
	SupportsFeature(name string) bool

	// SubgroupSize returns the device's (fixed or minimum) subgroup size.
	SubgroupSize() uint32

	// SupportsForwardProgressGuarantee reports whether the device
	// guarantees concurrent scheduling of every dispatched workgroup.
	// Decoupled-lookback kernels busy-spin on predecessor state and
	// deadlock without this guarantee; components fall
	// back to a block-wise two/three-pass variant when it is false.
	SupportsForwardProgressGuarantee() bool
}

// Allocator creates device buffers. Owned by the caller; the stage
// components only ever receive already-allocated Buffer handles through
// Buffers structs. psa.PSA is the one exception: its Run allocates every
// intermediate buffer of the pipeline through the Allocator it was built
// with.
type Allocator interface {
	AllocateBuffer(byteSize uint64, usage BufferUsage) (Buffer, error)
}

// BufferUsage is a bitmask describing how a buffer will be bound: as a
// storage buffer read/written by compute shaders, as a transfer source or
// destination, or as host-visible mapped memory.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageTransferSrc
	BufferUsageTransferDst
	BufferUsageHostVisible
)

// ShaderCompiler turns shader source text (WGSL/GLSL) plus an entry point
// and specialization constants into a Pipeline. The library ships shader
// source (see the shaders package) but never compiles it on-device;
// compilation is entirely the host framework's responsibility.
type ShaderCompiler interface {
	CompilePipeline(source ShaderSource, spec SpecializationConstants) (Pipeline, error)
}

// ShaderSource is the compute shader text for one kernel variant plus
// metadata a ShaderCompiler needs to select an entry point.
type ShaderSource struct {
	Name       string
	EntryPoint string
	Source     string

	// Reference is the CPU implementation of this kernel, shipped
	// alongside its shader text. A real ShaderCompiler ignores it; the
	// pure-Go reference device (internal/refdevice) executes it directly,
	// and every GPU variant's output is checked against it in tests
	//.
	Reference ReferenceKernel
}

// ReferenceKernel is a kernel's CPU-executable twin. buffers holds each
// bound buffer's mapped bytes, in the same order BindBuffers received them;
// push is the raw push-constant bytes most recently set via PushConstants.
type ReferenceKernel func(buffers [][]byte, push []byte) error

// SpecializationConstants carries compile-time constants such as
// workgroupSize, rows, and parallelLookbackDepth into the shader compiler,
// analogous to Vulkan specialization constants.
type SpecializationConstants map[string]uint32

// Pipeline is an opaque compiled compute pipeline handle. Constructed once
// by a component's constructor and reused across every run.
type Pipeline interface {
	Name() string
}

// Buffer is an opaque device buffer handle. All device buffers are
// caller-owned; the library mutates only the buffers named in
// the Buffers struct passed to run.
type Buffer interface {
	Size() uint64

	// Map returns a host-visible view of the buffer's bytes for as long as
	// the buffer stays mapped; Unmap releases it. The reference device
	// (internal/refdevice) maps every buffer, whatever its usage bits.
	Map() ([]byte, error)
	Unmap() error
}

// CommandBuffer records dispatches and barriers. A run call only records
// into the caller's command buffer; it never submits or waits.
type CommandBuffer interface {
	context.Context // dispatches may be cancelled cooperatively by the caller

	BindPipeline(Pipeline)
	BindBuffers(buffers ...Buffer)
	PushConstants(data []byte)
	Dispatch(groupCountX, groupCountY, groupCountZ uint32)

	// Barrier inserts an execution + memory barrier of the given kind
	// between the previously recorded dispatch and the next one.
	Barrier(kind BarrierKind)

	// Fill records a device-side buffer clear (used to zero decoupled
	// state/scratch buffers before a dispatch that depends on them).
	Fill(buf Buffer, value uint32)

	// CopyBuffer records a device-to-device buffer copy.
	CopyBuffer(src, dst Buffer, byteSize uint64)
}

// BarrierKind enumerates the handful of barrier shapes go-wrs needs to
// express. The concrete stage/access masks are a host-framework concern;
// go-wrs only needs to say which transition it requires.
type BarrierKind int

const (
	BarrierComputeToCompute BarrierKind = iota
	BarrierTransferToCompute
	BarrierComputeToTransfer
	BarrierHostToCompute
	BarrierComputeToHost
)

// CommandPool and Queue are supplied by the host framework for completeness
// of the external interface surface; go-wrs never allocates
// from a CommandPool or submits to a Queue itself — only the caller does.
type CommandPool interface {
	Allocate() (CommandBuffer, error)
}

type Queue interface {
	Submit(CommandBuffer) error
}

// Profiler is an optional hook every component's Run accepts. A component
// wraps its dispatches with Start/End calls when non-nil.
type Profiler interface {
	Start(label string)
	End()
}

// noopProfiler is used when run is called with a nil Profiler.
type noopProfiler struct{}

func (noopProfiler) Start(string) {}
func (noopProfiler) End()         {}

// NoopProfiler returns a Profiler whose Start/End do nothing.
func NoopProfiler() Profiler { return noopProfiler{} }
