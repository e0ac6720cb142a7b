// Package futex is a thin wrapper over the Linux futex(2) wait/wake
// primitive, built directly on the shared (not process-private) variant so
// that waiters and wakers in different processes, mapped into the same
// shared-memory region, see each other.
//
// Every exported function operates on a *uint32 that must live inside a
// mapping visible to every participating process; none of them ever pass
// FUTEX_PRIVATE_FLAG, since doing so would make the kernel treat the address
// as meaningful only within the calling process's virtual address space.
package futex

import (
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.Nop()

// SetLogger installs a logger used for debug-level tracing of wait/wake
// calls. Passing nil restores the no-op logger.
func SetLogger(l *zerolog.Logger) {
	if l == nil {
		logger = zerolog.Nop()
		return
	}
	logger = *l
}

// Wait atomically checks that *addr == expected and, if so, suspends the
// calling thread until a matching Wake, a spurious wakeup, or (for
// WaitTimeout) a deadline. If *addr != expected it returns immediately.
// Spurious wakeups are permitted; callers must re-check their condition in a
// loop.
func Wait(addr *uint32, expected uint32) {
	wait(addr, expected)
}

// WaitTimeout is like Wait but bounds the suspension to dur from now,
// measured against the monotonic clock. It reports whether the deadline
// elapsed before the wait was satisfied or returned spuriously. Signal
// interruption (EINTR) is retried internally against the same absolute
// deadline; callers never observe it.
func WaitTimeout(addr *uint32, expected uint32, dur time.Duration) (timedOut bool) {
	return waitTimeout(addr, expected, dur)
}

// WakeOne wakes at most one waiter blocked on addr.
func WakeOne(addr *uint32) {
	wakeOne(addr)
}

// WakeAll wakes every waiter blocked on addr.
func WakeAll(addr *uint32) {
	wakeAll(addr)
}
