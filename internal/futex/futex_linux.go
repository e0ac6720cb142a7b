//go:build linux

package futex

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex(2) operation codes. Deliberately never OR'd with
// FUTEX_PRIVATE_FLAG (128): this library exists specifically to coordinate
// across process boundaries, and the private-flag fast path the host
// runtime's own sync primitives use is invisible to other processes mapping
// the same page.
const (
	futexWait       = 0
	futexWake       = 1
	futexWaitBitset = 9

	futexBitsetMatchAny = 0xffffffff
)

func wait(addr *uint32, expected uint32) {
	for {
		_, _, errno := unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			uintptr(futexWait),
			uintptr(expected),
			0, 0, 0,
		)
		switch errno {
		case 0, unix.EAGAIN:
			return
		case unix.EINTR:
			logger.Debug().Msg("futex wait interrupted, retrying")
			continue
		default:
			// No error is ever surfaced to callers (spec: sync
			// primitives cannot fail); treat anything unexpected
			// as a spurious return.
			logger.Debug().Err(errno).Msg("futex wait returned unexpected errno")
			return
		}
	}
}

func waitTimeout(addr *uint32, expected uint32, dur time.Duration) bool {
	var deadline unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &deadline); err != nil {
		// Can't compute a deadline; fail safe by not blocking at all.
		logger.Debug().Err(err).Msg("clock_gettime failed, skipping wait")
		return true
	}
	deadline = addDuration(deadline, dur)

	for {
		_, _, errno := unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			uintptr(futexWaitBitset),
			uintptr(expected),
			uintptr(unsafe.Pointer(&deadline)),
			0,
			uintptr(futexBitsetMatchAny),
		)
		switch errno {
		case 0, unix.EAGAIN:
			return false
		case unix.ETIMEDOUT:
			return true
		case unix.EINTR:
			logger.Debug().Msg("futex wait_timeout interrupted, retrying against same deadline")
			continue
		default:
			logger.Debug().Err(errno).Msg("futex wait_timeout returned unexpected errno")
			return false
		}
	}
}

func wakeOne(addr *uint32) {
	wake(addr, 1)
}

func wakeAll(addr *uint32) {
	wake(addr, int(^uint32(0)>>1))
}

func wake(addr *uint32, count int) {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWake),
		uintptr(count),
		0, 0, 0,
	)
	if errno != 0 {
		logger.Debug().Err(errno).Msg("futex wake returned unexpected errno")
	}
}

func addDuration(ts unix.Timespec, dur time.Duration) unix.Timespec {
	total := ts.Nano() + dur.Nanoseconds()
	return unix.NsecToTimespec(total)
}
