// Package region implements the named shared-memory region lifecycle: create
// or open a POSIX shared-memory object by name, size it, map it shared into
// the process, validate the mapping, and tear it down in the right order.
//
// It knows nothing about the type of the bytes it maps; that binding (size,
// alignment, default-construction) is the caller's responsibility, realized
// one layer up by the typed Shared[T] wrapper.
package region

import (
	"math"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Region is satisfied by both OwnerRegion and AttachedRegion, letting the
// typed layer hold either without caring which it got: the only behavioral
// difference between them (whether Close unlinks the name) is already
// baked into each type's Close method.
type Region interface {
	Addr() unsafe.Pointer
	Len() int
	Close() error
}

var logger = zerolog.Nop()

// SetLogger installs a logger used for debug-level tracing of region
// lifecycle events. Passing nil restores the no-op logger.
func SetLogger(l *zerolog.Logger) {
	if l == nil {
		logger = zerolog.Nop()
		return
	}
	logger = *l
}

// Sentinel errors, one per distinct failure kind this package can
// produce. Root-package errors.go re-exports these under the public API.
var (
	ErrNameInUse         = errors.New("shmipc: region already exists")
	ErrNoSuchName        = errors.New("shmipc: no region with that name")
	ErrResizeFailed      = errors.New("shmipc: failed to resize region")
	ErrMapFailed         = errors.New("shmipc: failed to map region")
	ErrAlignmentMismatch = errors.New("shmipc: mapped address does not satisfy required alignment")
	ErrLengthMismatch    = errors.New("shmipc: region length does not match requested type size")
	ErrInvalidLength     = errors.New("shmipc: requested length is not positive or exceeds the maximum representable size")
	ErrStatusFailed      = errors.New("shmipc: failed to query region length")
)

// MaxLength is the largest length a region may be sized to: the resize
// syscall's argument type is a signed 64-bit offset.
const MaxLength = math.MaxInt64

// DefaultPerm is the permission applied to a created region when the caller
// does not request otherwise.
const DefaultPerm os.FileMode = 0o600

// kindError pairs one of the sentinel error kinds above with the concrete
// OS error that caused it, so that a single returned error satisfies both
// errors.Is(err, ErrResizeFailed) and errors.As(err, &errnoVar).
type kindError struct {
	kind  error
	cause error
}

func wrapKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

// Is reports whether target is this error's kind, letting callers match on
// the sentinel regardless of which OS error caused it.
func (e *kindError) Is(target error) bool { return e.kind == target }

// Unwrap exposes the originating OS error as the cause.
func (e *kindError) Unwrap() error { return e.cause }
