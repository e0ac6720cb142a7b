package sync

import (
	"sync/atomic"
	"time"

	"github.com/arrowgrove/shmipc/internal/futex"
)

// Cond is a generation-counter condition variable usable with Mutex[T] for
// any T. Its zero value is ready to use. All waiters of a given Cond must
// pass guards from the same Mutex; the library does not and cannot
// enforce this.
//
// Cond.Wait is a free function rather than a method because Go does not
// allow a method to introduce its own type parameter distinct from its
// receiver's.
type Cond struct {
	gen     uint32
	waiters uint32
}

// NewCond returns a ready-to-use Cond.
func NewCond() *Cond {
	return &Cond{}
}

// Wait atomically releases guard's mutex and blocks until notified, then
// reacquires the same mutex and returns its new guard. Spurious wakeups are
// possible; callers must re-test their condition in a loop.
func Wait[T any](c *Cond, guard *MutexGuard[T]) *MutexGuard[T] {
	atomic.AddUint32(&c.waiters, 1)
	gen := atomic.LoadUint32(&c.gen)

	mu := guard.mu
	guard.Unlock()

	logger.Debug().Msg("condvar wait")
	futex.Wait(&c.gen, gen)
	atomic.AddUint32(&c.waiters, ^uint32(0)) // -1

	return mu.Lock()
}

// WaitTimeout is like Wait but bounds the suspension to dur. It reports
// whether the deadline elapsed before a notification arrived.
func WaitTimeout[T any](c *Cond, guard *MutexGuard[T], dur time.Duration) (*MutexGuard[T], bool) {
	atomic.AddUint32(&c.waiters, 1)
	gen := atomic.LoadUint32(&c.gen)

	mu := guard.mu
	guard.Unlock()

	timedOut := futex.WaitTimeout(&c.gen, gen, dur)
	atomic.AddUint32(&c.waiters, ^uint32(0)) // -1

	return mu.Lock(), timedOut
}

// NotifyOne wakes one waiter, if any are currently waiting.
func (c *Cond) NotifyOne() {
	if atomic.LoadUint32(&c.waiters) == 0 {
		return
	}
	atomic.AddUint32(&c.gen, 1)
	futex.WakeOne(&c.gen)
}

// NotifyAll wakes every current waiter.
func (c *Cond) NotifyAll() {
	if atomic.LoadUint32(&c.waiters) == 0 {
		return
	}
	atomic.AddUint32(&c.gen, 1)
	futex.WakeAll(&c.gen)
}
