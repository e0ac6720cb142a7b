//go:build linux

package region

import (
	"os"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// shmDir mirrors glibc's shm_open: POSIX shared-memory objects are ordinary
// files living on the tmpfs mounted at /dev/shm, named after the object name
// with its single leading slash stripped.
const shmDir = "/dev/shm/"

func shmPath(name string) string {
	return shmDir + strings.TrimPrefix(name, "/")
}

// Mapping is a process-local view of a region's bytes.
type Mapping struct {
	data []byte
}

// Addr returns the mapping's base address.
func (m *Mapping) Addr() unsafe.Pointer {
	return unsafe.Pointer(&m.data[0])
}

// Len returns the mapping's length in bytes.
func (m *Mapping) Len() int {
	return len(m.data)
}

func mapFD(fd int, length int64) (*Mapping, error) {
	data, err := unix.Mmap(fd, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, wrapKind(ErrMapFailed, err)
	}
	return &Mapping{data: data}, nil
}

func (m *Mapping) unmap() error {
	if len(m.data) == 0 {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		// Best-effort: shared memory is typically pure RAM, so a failed
		// sync is not a correctness dependency.
		logger.Debug().Err(err).Msg("msync failed during teardown, ignoring")
	}
	return unix.Munmap(m.data)
}

// OwnerRegion is a region created by this process: dropping it unmaps then
// unlinks the name, in that order, so a concurrent Open racing the unlink
// observes "no such name" rather than a stale zero-length region.
type OwnerRegion struct {
	name    string
	Mapping *Mapping
}

// Addr returns the region's base address.
func (r *OwnerRegion) Addr() unsafe.Pointer { return r.Mapping.Addr() }

// Len returns the region's length in bytes.
func (r *OwnerRegion) Len() int { return r.Mapping.Len() }

// Close unmaps the region and then unlinks its name.
func (r *OwnerRegion) Close() error {
	var unmapErr error
	if r.Mapping != nil {
		unmapErr = r.Mapping.unmap()
		r.Mapping = nil
	}
	if err := unix.Unlink(shmPath(r.name)); err != nil {
		logger.Debug().Err(err).Str("name", r.name).Msg("unlink failed during teardown")
		if unmapErr == nil {
			return errors.Wrap(err, "shmipc: failed to unlink region")
		}
	}
	return unmapErr
}

// AttachedRegion is a region opened (not created) by this process: dropping
// it only unmaps, never unlinks.
type AttachedRegion struct {
	Mapping *Mapping
}

// Addr returns the region's base address.
func (r *AttachedRegion) Addr() unsafe.Pointer { return r.Mapping.Addr() }

// Len returns the region's length in bytes.
func (r *AttachedRegion) Len() int { return r.Mapping.Len() }

// Close unmaps the region.
func (r *AttachedRegion) Close() error {
	if r.Mapping == nil {
		return nil
	}
	err := r.Mapping.unmap()
	r.Mapping = nil
	return err
}

func checkAlignment(addr unsafe.Pointer, align uintptr) error {
	if align == 0 {
		return nil
	}
	if uintptr(addr)%align != 0 {
		return ErrAlignmentMismatch
	}
	return nil
}

// Create creates a new named region of the given length, sized and mapped
// for the caller. It does not initialize the mapped bytes; that is the
// typed layer's job, since only it knows T's default value.
func Create(name string, length int64, align uintptr, perm os.FileMode) (*OwnerRegion, error) {
	if length <= 0 || length > MaxLength {
		return nil, ErrInvalidLength
	}

	fd, err := unix.Open(shmPath(name), unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, uint32(perm))
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, ErrNameInUse
		}
		return nil, errors.Wrap(err, "shmipc: failed to create region")
	}
	defer unix.Close(fd)

	owner := &OwnerRegion{name: name}
	fail := func(cause error) (*OwnerRegion, error) {
		if owner.Mapping != nil {
			owner.Mapping.unmap()
		}
		if unlinkErr := unix.Unlink(shmPath(name)); unlinkErr != nil {
			logger.Debug().Err(unlinkErr).Msg("unlink failed while unwinding a failed create")
		}
		return nil, cause
	}

	if err := unix.Ftruncate(fd, length); err != nil {
		return fail(wrapKind(ErrResizeFailed, err))
	}

	mapping, err := mapFD(fd, length)
	if err != nil {
		return fail(err)
	}
	owner.Mapping = mapping

	if err := checkAlignment(mapping.Addr(), align); err != nil {
		return fail(err)
	}
	if mapping.Len() != int(length) {
		return fail(ErrLengthMismatch)
	}

	logger.Debug().Str("name", name).Int64("length", length).Msg("region created")
	return owner, nil
}

// Open attaches to an existing named region. length is the caller's
// expected sizeof(T); it must match the region's actual size exactly.
func Open(name string, length int64, align uintptr) (*AttachedRegion, error) {
	fd, err := unix.Open(shmPath(name), unix.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, ErrNoSuchName
		}
		return nil, errors.Wrap(err, "shmipc: failed to open region")
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, wrapKind(ErrStatusFailed, err)
	}
	if stat.Size != length {
		return nil, ErrLengthMismatch
	}

	mapping, err := mapFD(fd, length)
	if err != nil {
		return nil, err
	}
	if err := checkAlignment(mapping.Addr(), align); err != nil {
		mapping.unmap()
		return nil, err
	}

	logger.Debug().Str("name", name).Int64("length", length).Msg("region opened")
	return &AttachedRegion{Mapping: mapping}, nil
}
