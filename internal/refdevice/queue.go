package refdevice

import (
	"context"
	"fmt"

	"github.com/ajroetker/go-wrs/wrs"
)

// CommandPool allocates reference CommandBuffers. It carries no real pool
// state because the reference device never recycles command buffer
// storage.
type CommandPool struct{}

// NewCommandPool returns a ready-to-use CommandPool.
func NewCommandPool() *CommandPool { return &CommandPool{} }

func (p *CommandPool) Allocate() (wrs.CommandBuffer, error) {
	return NewCommandBuffer(context.Background()), nil
}

// Queue "submits" reference CommandBuffers. Every dispatch already ran
// synchronously as it was recorded (see CommandBuffer.Dispatch), so Submit
// only has to surface whatever error the recording phase accumulated.
type Queue struct{}

// NewQueue returns a ready-to-use Queue.
func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Submit(cmd wrs.CommandBuffer) error {
	rcb, ok := cmd.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("refdevice: Submit given a non-refdevice command buffer %T", cmd)
	}
	return rcb.Err()
}
