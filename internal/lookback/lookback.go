// Package lookback implements the decoupled-lookback scaffold shared by
// every single-dispatch device-wide primitive (device-wide prefix sum,
// decoupled mean, decoupled prefix-partition): each block publishes an
// aggregate, then walks predecessor blocks accumulating their published
// aggregate or (if already resolved) inclusive prefix, until it can publish
// its own inclusive prefix and unblock its successors.
//
// The payload type P is whatever a block aggregates (a float32 sum for
// prefix sum/mean, a heavy count plus heavy and light float sums for
// prefix-partition);
// Combine must be commutative and associative, which holds for every sum
// this library accumulates.
package lookback

import (
	"context"
	"runtime"
	"sync"

	"github.com/ajroetker/go-wrs/internal/gridrunner"
	"github.com/ajroetker/go-wrs/wrs"
)

type slot[P any] struct {
	mu        sync.Mutex
	aggregate P
	prefix    P
	state     wrs.LookbackState
}

func (s *slot[P]) publishAggregate(v P) {
	s.mu.Lock()
	s.aggregate = v
	s.state = wrs.StateAggregateReady
	s.mu.Unlock()
}

func (s *slot[P]) publishPrefix(v P) {
	s.mu.Lock()
	s.prefix = v
	s.state = wrs.StatePrefixReady
	s.mu.Unlock()
}

func (s *slot[P]) snapshot() (agg, prefix P, state wrs.LookbackState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregate, s.prefix, s.state
}

// Run dispatches one goroutine per block, concurrently, matching the
// real-hardware guarantee that every block is independently schedulable so
// predecessors eventually publish. compute returns a block's local
// aggregate; combine folds two payloads into one (commutative, associative);
// finalize receives the block's resolved exclusive and inclusive prefixes.
//
// depth bounds how many predecessor slots a single lookback step may
// inspect before re-checking its own state; the reference device does not
// need the batching a real shuffle-based lookback uses it for, but depth is
// still validated by callers against the device subgroup size
// so a config that would be invalid on real hardware is rejected here too.
func Run[P any](ctx context.Context, runner *gridrunner.Runner, blockCount uint32, depth uint32, identity P, compute func(block uint32) P, combine func(a, b P) P, finalize func(block uint32, exclusive, inclusive P)) error {
	if blockCount == 0 {
		return nil
	}
	slots := make([]*slot[P], blockCount)
	for i := range slots {
		slots[i] = &slot[P]{}
	}

	return runner.Dispatch(ctx, blockCount, true, func(_ context.Context, block uint32) error {
		agg := compute(block)
		slots[block].publishAggregate(agg)

		exclusive := identity
		for i := int(block) - 1; i >= 0; {
			predAgg, predPrefix, state := slots[i].snapshot()
			switch state {
			case wrs.StatePrefixReady:
				exclusive = combine(predPrefix, exclusive)
				i = -1
			case wrs.StateAggregateReady:
				exclusive = combine(predAgg, exclusive)
				i--
			default:
				runtime.Gosched()
			}
		}

		inclusive := combine(exclusive, agg)
		slots[block].publishPrefix(inclusive)
		finalize(block, exclusive, inclusive)
		return nil
	})
}
