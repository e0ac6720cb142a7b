package shmipc

import "github.com/arrowgrove/shmipc/internal/region"

// Error kinds returned by Create and Open. Use errors.Is to test a failure from Create
// or Open against one of these; use errors.As to recover the originating
// OS error, when there is one, as the cause.
var (
	// ErrNameInUse is returned by Create when a region by that name
	// already exists.
	ErrNameInUse = region.ErrNameInUse
	// ErrNoSuchName is returned by Open when no region by that name exists.
	ErrNoSuchName = region.ErrNoSuchName
	// ErrResizeFailed is returned by Create when the kernel refuses to
	// size the region to sizeof(T).
	ErrResizeFailed = region.ErrResizeFailed
	// ErrMapFailed is returned when the kernel refuses the shared mapping.
	ErrMapFailed = region.ErrMapFailed
	// ErrAlignmentMismatch is returned when the mapped address does not
	// satisfy T's required alignment.
	ErrAlignmentMismatch = region.ErrAlignmentMismatch
	// ErrLengthMismatch is returned by Open when the existing region's
	// size differs from sizeof(T).
	ErrLengthMismatch = region.ErrLengthMismatch
	// ErrInvalidLength is returned when sizeof(T) is zero or exceeds the
	// platform's signed 64-bit resize argument.
	ErrInvalidLength = region.ErrInvalidLength
	// ErrStatusFailed is returned by Open when the region's length could
	// not be queried.
	ErrStatusFailed = region.ErrStatusFailed
)
