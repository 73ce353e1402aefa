package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"authflow/pkg/logging"

	"golang.org/x/sync/semaphore"
)

// GateTimeoutError indicates no profile slot became free within the
// acquire timeout. Callers may retry later; the gate never queues
// beyond the timeout.
type GateTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *GateTimeoutError) Error() string {
	return fmt.Sprintf("no profile slot available within %s", e.Timeout)
}

// IsGateTimeout checks if an error is a GateTimeoutError.
func IsGateTimeout(err error) bool {
	var gte *GateTimeoutError
	return errors.As(err, &gte)
}

// Gate bounds the number of simultaneously active browser profiles.
// It is a fixed-size counting semaphore; waiters are served in FIFO
// order so a requester is never starved under sustained load.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
}

// Slot is a permit for one concurrent profile. It must be released
// exactly once; extra releases are logged and ignored rather than
// corrupting the count.
type Slot struct {
	gate     *Gate
	released atomic.Bool
}

// New creates a gate with the given capacity. The capacity is fixed for
// the lifetime of the gate.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or the timeout elapses. A nil
// error means the caller holds a slot and must release it exactly once.
// On timeout a GateTimeoutError is returned; if the parent context is
// cancelled first, its error is returned instead.
func (g *Gate) Acquire(ctx context.Context, timeout time.Duration) (*Slot, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := g.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GateTimeoutError{Timeout: timeout}
	}

	g.inUse.Add(1)
	return &Slot{gate: g}, nil
}

// Release returns the slot to the gate. Releasing twice is a
// programming error; it is guarded, logged, and ignored.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	if !s.released.CompareAndSwap(false, true) {
		logging.Warn("Gate", "slot released more than once, ignoring")
		return
	}
	s.gate.inUse.Add(-1)
	s.gate.sem.Release(1)
}

// Capacity returns the configured maximum number of concurrent slots.
func (g *Gate) Capacity() int {
	return g.capacity
}

// InUse returns the number of currently held slots.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}
