package shmipc

import (
	"reflect"
	"unsafe"

	"github.com/arrowgrove/shmipc/internal/region"
)

// Initializer may be implemented by a pointer receiver of a Shareable type
// to run custom default-construction logic beyond Go's all-zero zero
// value, e.g. a field whose documented default is a non-zero constant.
// Create calls Init exactly once, in place at the mapped address, before
// returning the handle; Open never calls it, since the region already
// holds whatever the creator initialized.
type Initializer interface {
	Init()
}

// Shared binds a Shareable type T to a named region. Get yields a plain *T
// into the mapping; another process may be mutating the same bytes
// concurrently, so coordinated mutation goes through T's interior-mutable
// fields (atomics, Mutex[T], RWMutex[T], Cond).
type Shared[T Shareable] struct {
	region region.Region
	ptr    *T
}

// Get returns a pointer to the mapped T, valid for the handle's lifetime.
// The pointer is not read-only: a write through it lands directly in the
// shared bytes, with no synchronization against other processes.
func (s *Shared[T]) Get() *T {
	return s.ptr
}

// Close tears down this process's mapping. On a handle returned by Create
// this also unlinks the region's name; on a handle returned by Open it
// only unmaps.
func (s *Shared[T]) Close() error {
	return s.region.Close()
}

func sizeAndAlign[T any]() (int64, uintptr) {
	var zero T
	return int64(unsafe.Sizeof(zero)), unsafe.Alignof(zero)
}

// Create creates a new named region sized and aligned for T, default-
// constructs T in place, and returns an owning handle. name must not
// already be in use; callers must publish name to other processes only
// after Create returns successfully.
func Create[T Shareable](name string, opts ...Option) (*Shared[T], error) {
	var zero T
	if err := validateShareable(reflect.TypeOf(zero)); err != nil {
		return nil, err
	}

	size, align := sizeAndAlign[T]()
	cfg := resolveOptions(opts)

	r, err := region.Create(name, size, align, cfg.perm)
	if err != nil {
		return nil, err
	}

	ptr := (*T)(r.Addr())
	*ptr = zero // belt-and-braces: the kernel already zero-fills a fresh object.
	if init, ok := any(ptr).(Initializer); ok {
		init.Init()
	}

	return &Shared[T]{region: r, ptr: ptr}, nil
}

// Open attaches to an existing named region created for the same T. It
// must only be called after some Create(name) has returned successfully;
// it never initializes the mapped bytes.
func Open[T Shareable](name string, opts ...Option) (*Shared[T], error) {
	var zero T
	if err := validateShareable(reflect.TypeOf(zero)); err != nil {
		return nil, err
	}

	size, align := sizeAndAlign[T]()
	_ = resolveOptions(opts) // permissions are a Create-only concern; still honor logger/spin overrides

	r, err := region.Open(name, size, align)
	if err != nil {
		return nil, err
	}

	return &Shared[T]{region: r, ptr: (*T)(r.Addr())}, nil
}
