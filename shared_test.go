package shmipc

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shmsync "github.com/arrowgrove/shmipc/sync"
)

type counterPayload struct {
	count uint32
}

type biggerCounterPayload struct {
	count uint32
	_     [64]byte
}

type mutexPayload struct {
	mu shmsync.Mutex[int]
}

type atomicAndMutexPayload struct {
	a  atomic.Uint64
	mu shmsync.Mutex[uint64]
}

type defaultedPayload struct {
	flag byte
}

func (d *defaultedPayload) Init() {
	d.flag = 0xA5
}

var regionCounter int32

func uniqueRegionName(t *testing.T) string {
	t.Helper()
	n := atomic.AddInt32(&regionCounter, 1)
	return fmt.Sprintf("/shmipc-shared-test-%d-%d", os.Getpid(), n)
}

func TestCreateThenOpenShareState(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[counterPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	owner.Get().count = 5

	opener, err := Open[counterPayload](name)
	require.NoError(t, err)
	defer opener.Close()

	assert.Equal(t, uint32(5), opener.Get().count)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[counterPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	_, err = Create[counterPayload](name)
	assert.ErrorIs(t, err, ErrNameInUse)
}

func TestOpenRejectsMissingName(t *testing.T) {
	_, err := Open[counterPayload](uniqueRegionName(t))
	assert.ErrorIs(t, err, ErrNoSuchName)
}

func TestCreateRejectsNonShareableType(t *testing.T) {
	type notShareable struct {
		s string
	}
	_, err := Create[notShareable](uniqueRegionName(t))
	assert.ErrorIs(t, err, ErrNotShareable)
}

func TestCreateRunsInitializerForNonZeroDefaults(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[defaultedPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	assert.Equal(t, byte(0xA5), owner.Get().flag)
}

func TestOpenNeverRunsInitializer(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[defaultedPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	owner.Get().flag = 0x00

	opener, err := Open[defaultedPayload](name)
	require.NoError(t, err)
	defer opener.Close()

	assert.Equal(t, byte(0x00), opener.Get().flag, "Open must not re-run Init over the creator's state")
}

func TestSharedMutexCoordinatesAcrossHandles(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[mutexPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	opener, err := Open[mutexPayload](name)
	require.NoError(t, err)
	defer opener.Close()

	g := owner.Get().mu.Lock()
	*g.Get() = 42
	g.Unlock()

	g2 := opener.Get().mu.Lock()
	assert.Equal(t, 42, *g2.Get())
	g2.Unlock()
}

// TestMultiProcessSharedMutex re-executes this test binary as a child
// process and coordinates with it over a named region, the standard Go
// idiom for exercising behavior that a single `go test` process cannot: a
// futex whose whole purpose is being visible across address spaces.
func TestMultiProcessSharedMutex(t *testing.T) {
	if os.Getenv("SHMIPC_HELPER_PROCESS") == "1" {
		t.Skip("running as the re-exec helper, not as a test")
	}

	name := uniqueRegionName(t)
	owner, err := Create[mutexPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	g := owner.Get().mu.Lock()
	*g.Get() = 7
	g.Unlock()

	cmd := exec.Command(os.Args[0], "-test.run=TestMultiProcessSharedMutexHelper")
	cmd.Env = append(os.Environ(), "SHMIPC_HELPER_PROCESS=1", "SHMIPC_REGION_NAME="+name)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "helper process failed: %s", out)

	g2 := owner.Get().mu.Lock()
	assert.Equal(t, 8, *g2.Get(), "helper process should have incremented the shared counter")
	g2.Unlock()
}

// TestMultiProcessSharedMutexHelper is never run directly by `go test`; it
// is invoked as a subprocess by TestMultiProcessSharedMutex, matched via
// -test.run.
func TestMultiProcessSharedMutexHelper(t *testing.T) {
	if os.Getenv("SHMIPC_HELPER_PROCESS") != "1" {
		t.Skip("only runs as the re-exec helper")
	}

	name := os.Getenv("SHMIPC_REGION_NAME")
	require.NotEmpty(t, name)

	opener, err := Open[mutexPayload](name)
	require.NoError(t, err)
	defer opener.Close()

	g := opener.Get().mu.Lock()
	*g.Get()++
	g.Unlock()
}

func TestOpenRejectsSizeMismatch(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[counterPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	_, err = Open[biggerCounterPayload](name)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestAtomicAndMutexFieldsBothReachTwiceN(t *testing.T) {
	const n = 2000

	name := uniqueRegionName(t)
	owner, err := Create[atomicAndMutexPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	run := func() {
		for i := 0; i < n; i++ {
			owner.Get().a.Add(1)
			g := owner.Get().mu.Lock()
			*g.Get()++
			g.Unlock()
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); run() }()
	go func() { defer wg.Done(); run() }()
	wg.Wait()

	assert.Equal(t, uint64(2*n), owner.Get().a.Load())
	g := owner.Get().mu.Lock()
	assert.Equal(t, uint64(2*n), *g.Get())
	g.Unlock()
}

func TestCloseOnOwnerUnlinksRegion(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[counterPayload](name)
	require.NoError(t, err)
	require.NoError(t, owner.Close())

	_, err = Open[counterPayload](name)
	assert.ErrorIs(t, err, ErrNoSuchName)
}

func TestWithPermissionsOption(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[counterPayload](name, WithPermissions(0o600))
	require.NoError(t, err)
	defer owner.Close()
}

func TestWithSpinCountOptionDoesNotError(t *testing.T) {
	name := uniqueRegionName(t)

	owner, err := Create[counterPayload](name, WithSpinCount(0))
	require.NoError(t, err)
	defer owner.Close()

	// restore the package default so other tests in this process are
	// unaffected by this test's override.
	shmsync.SetDefaultSpinCount(100)
}

func TestGetReturnsStablePointerAcrossCalls(t *testing.T) {
	name := uniqueRegionName(t)
	owner, err := Create[counterPayload](name)
	require.NoError(t, err)
	defer owner.Close()

	p1 := owner.Get()
	time.Sleep(time.Millisecond)
	p2 := owner.Get()
	assert.Same(t, p1, p2)
}
