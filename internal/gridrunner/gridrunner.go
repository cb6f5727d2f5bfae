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

// Package gridrunner schedules the goroutines that stand in for GPU
// workgroups in the reference device (internal/refdevice). Real hardware
// guarantees that every dispatched workgroup is independently schedulable;
// decoupled-lookback kernels rely on that to busy-spin on a predecessor's
// state without deadlocking. A Runner reproduces that
// guarantee for Concurrent dispatches by giving every workgroup its own
// goroutine regardless of GOMAXPROCS, and falls back to a bounded pool for
// ordinary (non-lookback) dispatches where oversubscription would only add
// scheduling noise.
package gridrunner

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runner bounds how many non-lookback workgroups run concurrently.
// Concurrent dispatches (see Dispatch) ignore this bound entirely.
type Runner struct {
	maxParallelism int64
}

// New builds a Runner. maxParallelism <= 0 defaults to 2*GOMAXPROCS, a
// common default for CPU-bound worker pools.
func New(maxParallelism int) *Runner {
	if maxParallelism <= 0 {
		maxParallelism = 2 * runtime.GOMAXPROCS(0)
	}
	return &Runner{maxParallelism: int64(maxParallelism)}
}

// WorkgroupFunc executes one workgroup's kernel body. groupIndex is the
// workgroup's linear grid index; the function gets lane-level parallelism
// from the caller, not from the Runner.
type WorkgroupFunc func(ctx context.Context, groupIndex uint32) error

// Dispatch runs fn once per workgroup in [0, groupCount). When concurrent
// is true (every decoupled-lookback kernel in this library sets it), all
// groupCount goroutines are launched up front with no concurrency cap,
// modeling the GPU's forward-progress guarantee; a caller that needs that
// guarantee but finds Device.SupportsForwardProgressGuarantee false must
// pick a different (block-wise) component instead of calling Dispatch with
// concurrent=true. When concurrent is false, at most r.maxParallelism
// workgroups run at once.
//
// Dispatch returns the first error any workgroup returned (context
// cancellation included) after every workgroup has finished or been
// skipped.
func (r *Runner) Dispatch(ctx context.Context, groupCount uint32, concurrent bool, fn WorkgroupFunc) error {
	if groupCount == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if concurrent {
		for i := uint32(0); i < groupCount; i++ {
			i := i
			g.Go(func() error { return fn(gctx, i) })
		}
		return g.Wait()
	}

	sem := semaphore.NewWeighted(r.maxParallelism)
	for i := uint32(0); i < groupCount; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// BatchCounter is the process-wide monotonically increasing counter
// decoupled-lookback dispatches use to hand out block-ordering tickets
//. It must be zeroed before each dispatch
// that uses it, exactly like the decoupled-state scratch array.
type BatchCounter struct {
	v atomic.Uint32
}

// Next atomically claims and returns the next block index.
func (c *BatchCounter) Next() uint32 { return c.v.Add(1) - 1 }

// Reset zeroes the counter. Callers must do this before every dispatch
// that shares the counter across workgroups.
func (c *BatchCounter) Reset() { c.v.Store(0) }
