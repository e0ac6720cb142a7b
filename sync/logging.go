package sync

import "github.com/rs/zerolog"

var logger = zerolog.Nop()

// SetLogger installs a logger used for debug-level tracing of contention
// and wait/notify events across every primitive in this package. Passing
// nil restores the no-op logger.
func SetLogger(l *zerolog.Logger) {
	if l == nil {
		logger = zerolog.Nop()
		return
	}
	logger = *l
}
