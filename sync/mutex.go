// Package sync provides mutual-exclusion, reader/writer, and condition-
// variable primitives built directly on the Linux futex wait/wake interface
// (see internal/futex), so they coordinate correctly when their state lives
// inside a shared-memory region mapped by more than one process. None of
// them embed the host runtime's own sync.Mutex/sync.Cond, which pass the
// futex-private flag and are therefore invisible outside the creating
// process.
package sync

import (
	"fmt"
	"sync/atomic"

	"github.com/arrowgrove/shmipc/internal/futex"
)

// Mutex states, following "Futexes Are Tricky" (Drepper).
const (
	mutexUnlocked  uint32 = 0
	mutexLocked    uint32 = 1
	mutexContended uint32 = 2
)

var defaultSpinCount int32 = 100

// SetDefaultSpinCount overrides the number of uncontended spin iterations a
// Mutex performs before falling back to a futex wait. It affects every
// Mutex[T] in the process, since a Mutex embedded in a shared region has no
// per-instance configuration hook at zero-value construction time.
func SetDefaultSpinCount(n int) {
	atomic.StoreInt32(&defaultSpinCount, int32(n))
}

// Mutex is a three-state mutual-exclusion lock guarding a value of type T.
// Its zero value is a valid, unlocked mutex holding T's zero value, so it
// may be embedded by value inside a shareable aggregate and default-
// constructed in place by the region lifecycle manager.
type Mutex[T any] struct {
	state uint32
	data  T
}

// NewMutex returns a Mutex initialized with value. Useful outside a shared
// region (e.g. in tests); inside one, rely on the zero value instead.
func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{data: value}
}

// MutexGuard grants exclusive access to the value a Mutex protects. Its
// lifetime must not outlive the mapping the Mutex lives in. Unlock must be
// called exactly once; failing to do so leaves the mutex permanently
// locked for every process sharing it.
type MutexGuard[T any] struct {
	mu *Mutex[T]
}

// Get returns a pointer to the guarded value, valid for the guard's
// lifetime.
func (g *MutexGuard[T]) Get() *T {
	return &g.mu.data
}

// Unlock releases the mutex. It is a programmer error to call it more than
// once on the same guard (undefined behavior, not deadlock-detected).
func (g *MutexGuard[T]) Unlock() {
	mu := g.mu
	g.mu = nil
	if atomic.SwapUint32(&mu.state, mutexUnlocked) == mutexContended {
		futex.WakeOne(&mu.state)
	}
}

// Unlock is a free-function alternative to guard.Unlock(), carried forward
// from the reference implementation's `Mutex::unlock(guard)` for callers
// who prefer an explicit call over a method on the guard.
func Unlock[T any](g *MutexGuard[T]) {
	g.Unlock()
}

// TryLock makes one attempt to acquire the mutex without blocking. It
// reports false if the mutex was already locked.
func (m *Mutex[T]) TryLock() (*MutexGuard[T], bool) {
	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		return &MutexGuard[T]{mu: m}, true
	}
	return nil, false
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex[T]) Lock() *MutexGuard[T] {
	if !atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		m.lockContended()
	}
	return &MutexGuard[T]{mu: m}
}

// lockContended handles the slow path: spin a small, fixed number of
// iterations in case the holder releases quickly (cheaper than a syscall
// for short critical sections), then mark the lock contended and
// futex-wait until woken.
func (m *Mutex[T]) lockContended() {
	spins := atomic.LoadInt32(&defaultSpinCount)
	for i := int32(0); i < spins && atomic.LoadUint32(&m.state) == mutexLocked; i++ {
		// busy-wait
	}
	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		return
	}

	for atomic.SwapUint32(&m.state, mutexContended) != mutexUnlocked {
		logger.Debug().Msg("mutex contended, futex waiting")
		futex.Wait(&m.state, mutexContended)
	}
}

// String implements fmt.Stringer, reporting the guarded value when the
// mutex is unlocked and "<locked>" otherwise, via a non-blocking
// try_lock. Carried forward from the reference implementation's Debug
// impl; never call this from a hot path.
func (m *Mutex[T]) String() string {
	if g, ok := m.TryLock(); ok {
		defer g.Unlock()
		return fmt.Sprintf("Mutex{%v}", *g.Get())
	}
	return "Mutex{<locked>}"
}
