package shmipc

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Shareable documents the contract every T passed to Create/Open must
// satisfy: a fixed-layout aggregate built only from
// booleans, fixed-width integers and floats, fixed-size arrays of shareable fields,
// nested shareable aggregates, and the sync package's Mutex[T]/RWMutex[T]/
// Cond. No field anywhere in T's tree may be a pointer, string, slice, map,
// channel, function, or interface value — anything whose byte image is not
// entirely self-contained.
//
// Go's type system cannot express this constraint at compile time (there
// is no trait bound for "no transitive pointers"), so Shareable is simply
// an alias for any, and the caller's use of Create/Open is their
// attestation that T qualifies. Create and Open back that attestation with
// the best compile-time-adjacent check Go does offer: a reflect-based walk
// of T's field tree, performed once up front, that rejects any
// disallowed kind before a single byte is mapped or written.
type Shareable = any

// ErrNotShareable is returned by Create or Open when T's field tree
// contains a kind the shareable contract forbids.
var ErrNotShareable = errors.New("shmipc: type is not shareable")

func validateShareable(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Array:
		return validateShareable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := validateShareable(f.Type); err != nil {
				return fmt.Errorf("field %s.%s: %w", t.Name(), f.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has kind %s", ErrNotShareable, t, t.Kind())
	}
}
