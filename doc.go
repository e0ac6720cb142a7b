// Package shmipc provides typed, process-shared memory regions with
// inter-process synchronization primitives, on Linux.
//
// Two or more unrelated processes agree on a name and a type T describing
// the region's layout. One calls Create(name) to stand up the region; the
// others call Open(name) to attach to it. Every participant then sees the
// same bytes at the same offsets through Shared[T].Get, and coordinates
// access through T's own atomic fields or embedded Mutex[T]/RWMutex[T]/Cond
// fields from the sync subpackage — no RPC, no serialization, no kernel
// round-trip on the fast path.
//
// T must be Shareable: a fixed-layout aggregate with no transitive
// pointers, strings, slices, maps, channels, interfaces, or function
// values anywhere in its field tree. See Shareable for the precise rule
// and the runtime check Create/Open perform on T's behalf.
package shmipc
