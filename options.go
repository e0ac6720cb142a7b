package shmipc

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/arrowgrove/shmipc/internal/futex"
	"github.com/arrowgrove/shmipc/internal/region"
	shmsync "github.com/arrowgrove/shmipc/sync"
)

// config holds the resolved settings for a single Create/Open call,
// following the LoopOption/applyLoop pattern used for Loop configuration
// in the corpus's event-loop package: an interface-backed option type
// applied in sequence against a private config struct.
type config struct {
	perm      os.FileMode
	spinCount int
}

// Option configures a Create or Open call.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithPermissions sets the permission bits passed to the backing
// shared-memory object when it is created. It has no effect on Open.
// Default: 0600.
func WithPermissions(mode os.FileMode) Option {
	return optionFunc(func(c *config) { c.perm = mode })
}

// WithSpinCount overrides the number of uncontended spin iterations any
// Mutex[T] performs before blocking, for the process's lifetime. It is a
// process-wide setting (see shmsync.SetDefaultSpinCount) because a
// Mutex[T] embedded in a shared region is default-constructed in place and
// has no per-instance configuration hook.
func WithSpinCount(n int) Option {
	return optionFunc(func(c *config) { c.spinCount = n })
}

// WithLogger installs l as the process-wide debug logger, exactly as
// SetLogger does. The setting is not scoped to this call: it stays in
// effect for every later call until replaced.
func WithLogger(l *zerolog.Logger) Option {
	return optionFunc(func(c *config) { SetLogger(l) })
}

// SetLogger installs a logger used for debug-level tracing across every
// layer of this module: futex wait/wake, region lifecycle, and mutex/
// rwlock/condvar contention. Passing nil restores the no-op logger.
func SetLogger(l *zerolog.Logger) {
	futex.SetLogger(l)
	region.SetLogger(l)
	shmsync.SetLogger(l)
}

func resolveOptions(opts []Option) config {
	cfg := config{
		perm:      region.DefaultPerm,
		spinCount: -1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&cfg)
	}
	if cfg.spinCount >= 0 {
		shmsync.SetDefaultSpinCount(cfg.spinCount)
	}
	return cfg
}
