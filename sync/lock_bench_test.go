package sync

import "testing"

// workloads lists the concurrency/write-ratio combinations the Benchmark*
// functions of Mutex[T] and RWMutex[T] are named after. Those functions
// pass their values directly and do not read this table. BenchmarkRWMutex*
// covers every entry; BenchmarkMutex* covers the four entries without
// HeavyWrites and takes the lock for a write on every operation.
var workloads = []struct {
	name        string
	concurrency int
	writeRatio  float32
}{
	{"Serial", 1, 0.10},
	{"SerialHeavyWrites", 1, 0.50},
	{"LowConcurrency", 2, 0.10},
	{"MediumConcurrency", 10, 0.10},
	{"HighConcurrency", 20, 0.10},
	{"HighConcurrencyHeavyWrites", 20, 0.50},
}

// testNonDecreasing asserts that values, collected from a run where every
// write increments a shared counter under a lock, never goes backwards:
// any decrease would mean two writers' critical sections interleaved.
func testNonDecreasing(b *testing.B, values []uint64) {
	for i := 1; i < len(values); i++ {
		if values[i-1] > values[i] {
			b.Fatalf("value went backwards at index %d: %d then %d", i, values[i-1], values[i])
		}
	}
}
