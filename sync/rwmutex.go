package sync

import (
	"sync/atomic"

	"github.com/arrowgrove/shmipc/internal/futex"
)

// rwmutexMaxReaders bounds the number of concurrent readers and is the
// amount a writer subtracts from state, in one atomic step, to announce
// its intent. This is the scheme the Go standard library's sync.RWMutex
// uses and for the same reason: a load-then-CAS announcement (old design)
// can be invalidated by a concurrent reader's own CAS on the same word
// between the writer's load and its compare, and under a continuous
// stream of reader arrivals/departures that invalidation can repeat
// forever — the writer never gets to announce, let alone drain. An
// unconditional atomic.Add has no stale snapshot to invalidate: it always
// lands, regardless of how many readers are concurrently adding to or
// subtracting from the same word.
const rwmutexMaxReaders = 1 << 30

// addState adds delta (possibly negative) to *state and returns the new
// value, reinterpreted as signed. state is a uint32 so it stays
// futex-compatible; the two's-complement bit pattern produced by
// uint32(delta) for a negative delta is exactly the bit pattern
// int32 arithmetic would produce, so the reinterpretation is lossless.
func addState(state *uint32, delta int32) int32 {
	return int32(atomic.AddUint32(state, uint32(delta)))
}

// writerGate is a minimal unexported three-state mutex, the same scheme
// as Mutex[T] without the generic payload, used to serialize the
// announce-drain-hold sequence of concurrent WLock callers. Only the
// writer currently holding writerGate may add or subtract
// rwmutexMaxReaders from RWMutex.state, so two writers can never race on
// that arithmetic and clobber each other's announcement.
type writerGate struct {
	state uint32
}

func (g *writerGate) tryLock() bool {
	return atomic.CompareAndSwapUint32(&g.state, mutexUnlocked, mutexLocked)
}

func (g *writerGate) lock() {
	if g.tryLock() {
		return
	}
	for atomic.SwapUint32(&g.state, mutexContended) != mutexUnlocked {
		futex.Wait(&g.state, mutexContended)
	}
}

func (g *writerGate) unlock() {
	if atomic.SwapUint32(&g.state, mutexUnlocked) == mutexContended {
		futex.WakeOne(&g.state)
	}
}

// RWMutex is a multiple-reader/single-writer lock guarding a value of
// type T. Its zero value is a valid, idle lock holding T's zero value.
//
// state counts active readers while non-negative (read as int32). WLock
// announces intent by subtracting rwmutexMaxReaders from state in a
// single atomic step, driving it negative for as long as readers are
// draining and for the entire duration the writer holds the lock; new
// readers observe a negative state and block until the writer restores
// it. readerWait counts the readers that were already active at the
// moment a writer announced; each one's Unlock decrements it, and
// whichever decrement brings it to zero wakes the waiting writer via
// wgen.
type RWMutex[T any] struct {
	state      uint32
	readerWait uint32
	wgen       uint32
	writerGate writerGate
	data       T
}

// NewRWMutex returns an RWMutex initialized with value.
func NewRWMutex[T any](value T) *RWMutex[T] {
	return &RWMutex[T]{data: value}
}

// RLockGuard grants shared read access to the value an RWMutex protects.
type RLockGuard[T any] struct {
	rw *RWMutex[T]
}

// Get returns a pointer to the guarded value, valid for the guard's
// lifetime. Callers must not mutate through it; it is shared with any
// other concurrent readers.
func (g *RLockGuard[T]) Get() *T {
	return &g.rw.data
}

// Unlock releases this reader's hold on the lock.
func (g *RLockGuard[T]) Unlock() {
	rw := g.rw
	g.rw = nil
	if addState(&rw.state, -1) < 0 {
		rw.readerUnlockSlow()
	}
}

// readerUnlockSlow runs only for a reader that was already active when a
// writer announced intent (state is still negative at this reader's
// release). It reports its departure on readerWait; the reader that
// brings readerWait to zero wakes the draining writer.
func (m *RWMutex[T]) readerUnlockSlow() {
	if int32(atomic.AddUint32(&m.readerWait, ^uint32(0))) == 0 {
		atomic.AddUint32(&m.wgen, 1)
		futex.WakeOne(&m.wgen)
	}
}

// WLockGuard grants exclusive write access to the value an RWMutex
// protects.
type WLockGuard[T any] struct {
	rw *RWMutex[T]
}

// Get returns a pointer to the guarded value, valid for the guard's
// lifetime.
func (g *WLockGuard[T]) Get() *T {
	return &g.rw.data
}

// Unlock releases the writer's exclusive hold, restoring the reader
// count, waking any readers that arrived and blocked while the writer
// held the lock, and releasing writerGate for the next queued writer (if
// any — its own futex wake happens inside writerGate.unlock).
func (g *WLockGuard[T]) Unlock() {
	rw := g.rw
	g.rw = nil
	addState(&rw.state, rwmutexMaxReaders)
	futex.WakeAll(&rw.state)
	rw.writerGate.unlock()
}

// TryRLock makes one non-blocking attempt to acquire a read lock.
func (m *RWMutex[T]) TryRLock() (*RLockGuard[T], bool) {
	old := atomic.LoadUint32(&m.state)
	if int32(old) < 0 {
		return nil, false
	}
	if atomic.CompareAndSwapUint32(&m.state, old, old+1) {
		return &RLockGuard[T]{rw: m}, true
	}
	return nil, false
}

// RLock acquires the lock for shared read access, blocking while a writer
// holds or is queued for it.
func (m *RWMutex[T]) RLock() *RLockGuard[T] {
	if addState(&m.state, 1) < 0 {
		m.waitForReaderTurn()
	}
	return &RLockGuard[T]{rw: m}
}

func (m *RWMutex[T]) waitForReaderTurn() {
	for {
		old := atomic.LoadUint32(&m.state)
		if int32(old) >= 0 {
			return
		}
		logger.Debug().Msg("rwmutex reader waiting out a writer")
		futex.Wait(&m.state, old)
	}
}

// TryWLock makes one non-blocking attempt to acquire the write lock.
func (m *RWMutex[T]) TryWLock() (*WLockGuard[T], bool) {
	if !m.writerGate.tryLock() {
		return nil, false
	}
	if !atomic.CompareAndSwapUint32(&m.state, 0, uint32(int32(-rwmutexMaxReaders))) {
		m.writerGate.unlock()
		return nil, false
	}
	return &WLockGuard[T]{rw: m}, true
}

// WLock acquires the lock for exclusive write access, blocking until no
// readers and no other writer hold it.
func (m *RWMutex[T]) WLock() *WLockGuard[T] {
	m.writerGate.lock()

	// Announce intent unconditionally: this cannot be invalidated by any
	// number of concurrent reader arrivals/departures on the same word,
	// unlike a load-then-CAS announcement would be.
	after := addState(&m.state, -rwmutexMaxReaders)
	r := after + rwmutexMaxReaders // readers that were already active at announce time

	if r != 0 && atomic.AddUint32(&m.readerWait, uint32(r)) != 0 {
		for {
			gen := atomic.LoadUint32(&m.wgen)
			if atomic.LoadUint32(&m.readerWait) == 0 {
				break
			}
			logger.Debug().Msg("rwmutex writer draining readers")
			futex.Wait(&m.wgen, gen)
		}
	}

	return &WLockGuard[T]{rw: m}
}
