package refdevice

import (
	"context"
	"fmt"

	"github.com/ajroetker/go-wrs/wrs"
)

// CommandBuffer executes its recorded dispatches synchronously as they are
// recorded. A real host framework defers execution until Queue.Submit; the
// reference device has no async pipeline to defer to, so recording a
// dispatch and having it run are the same event here. Queue.Submit on this
// device consequently only reports the first error recorded (see queue.go).
type CommandBuffer struct {
	context.Context

	pipeline *pipeline
	buffers  []wrs.Buffer
	push     []byte
	firstErr error
}

// NewCommandBuffer wraps a context.Context (for cooperative cancellation)
// into a CommandBuffer ready to record against.
func NewCommandBuffer(ctx context.Context) *CommandBuffer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CommandBuffer{Context: ctx}
}

func (cb *CommandBuffer) BindPipeline(p wrs.Pipeline) {
	pp, ok := p.(*pipeline)
	if !ok {
		cb.fail(fmt.Errorf("refdevice: BindPipeline given a non-refdevice pipeline %T", p))
		return
	}
	cb.pipeline = pp
}

func (cb *CommandBuffer) BindBuffers(buffers ...wrs.Buffer) {
	cb.buffers = buffers
}

func (cb *CommandBuffer) PushConstants(data []byte) {
	cb.push = append([]byte(nil), data...)
}

// Dispatch invokes the bound pipeline's reference kernel against the bound
// buffers' mapped bytes. groupCountX/Y/Z are accepted for interface parity
// with a real CommandBuffer but otherwise unused: each component's
// ReferenceKernel already knows its own problem size from the same config
// its constructor used to compute the dispatch's group counts.
func (cb *CommandBuffer) Dispatch(groupCountX, groupCountY, groupCountZ uint32) {
	if cb.firstErr != nil {
		return
	}
	if cb.pipeline == nil {
		cb.fail(fmt.Errorf("refdevice: Dispatch called with no bound pipeline"))
		return
	}

	mapped := make([][]byte, len(cb.buffers))
	var unmap []wrs.Buffer
	for i, b := range cb.buffers {
		bytes, err := b.Map()
		if err != nil {
			cb.fail(fmt.Errorf("refdevice: mapping buffer %d for %q: %w", i, cb.pipeline.name, err))
			for _, u := range unmap {
				_ = u.Unmap()
			}
			return
		}
		mapped[i] = bytes
		unmap = append(unmap, b)
	}

	err := cb.pipeline.kernel(mapped, cb.push)

	for _, u := range unmap {
		if uerr := u.Unmap(); err == nil {
			err = uerr
		}
	}
	if err != nil {
		cb.fail(fmt.Errorf("refdevice: kernel %q: %w", cb.pipeline.name, err))
	}
}

// Barrier is a no-op on the reference device: every Dispatch above already
// runs to completion (with its effects visible to the next one) before
// Dispatch returns, so there is no pending memory transition to order.
func (cb *CommandBuffer) Barrier(wrs.BarrierKind) {}

func (cb *CommandBuffer) Fill(buf wrs.Buffer, value uint32) {
	if cb.firstErr != nil {
		return
	}
	bytes, err := buf.Map()
	if err != nil {
		cb.fail(fmt.Errorf("refdevice: mapping buffer for Fill: %w", err))
		return
	}
	defer buf.Unmap()

	v := [4]byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	for i := 0; i+4 <= len(bytes); i += 4 {
		copy(bytes[i:i+4], v[:])
	}
}

func (cb *CommandBuffer) CopyBuffer(src, dst wrs.Buffer, byteSize uint64) {
	if cb.firstErr != nil {
		return
	}
	srcBytes, err := src.Map()
	if err != nil {
		cb.fail(fmt.Errorf("refdevice: mapping src buffer for CopyBuffer: %w", err))
		return
	}
	defer src.Unmap()
	dstBytes, err := dst.Map()
	if err != nil {
		cb.fail(fmt.Errorf("refdevice: mapping dst buffer for CopyBuffer: %w", err))
		return
	}
	defer dst.Unmap()

	copy(dstBytes[:byteSize], srcBytes[:byteSize])
}

func (cb *CommandBuffer) fail(err error) {
	if cb.firstErr == nil {
		cb.firstErr = err
	}
}

// Err returns the first error encountered by any recorded command, if any.
// Queue.Submit surfaces this.
func (cb *CommandBuffer) Err() error { return cb.firstErr }
