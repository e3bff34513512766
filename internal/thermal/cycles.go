package thermal

import (
	"time"

	"go.uber.org/zap"
)

// CycleCounter abstracts access to a CPU cycle counter. On ARM this is
// PMCCNTR_EL0 via the kernel's perf interface; where the PMU is
// inaccessible, a wall-clock approximation at an assumed base frequency
// stands in. Downstream proof validation is tolerance-based either way.
type CycleCounter interface {
	ReadCycles() uint64
	Supported() bool
	Close() error
}

// assumedFreqGHz is the clock assumed by the wall-clock fallback.
const assumedFreqGHz = 2

// clockCounter approximates cycles from the monotonic clock
type clockCounter struct {
	base time.Time
}

func newClockCounter() *clockCounter {
	return &clockCounter{base: time.Now()}
}

func (c *clockCounter) ReadCycles() uint64 {
	return uint64(time.Since(c.base).Nanoseconds()) * assumedFreqGHz
}

func (c *clockCounter) Supported() bool { return false }

func (c *clockCounter) Close() error { return nil }

// NewCycleCounter returns the best cycle counter available on this
// host. PMU denial is not an error; the fallback is silently used.
func NewCycleCounter(logger *zap.Logger) CycleCounter {
	if counter, err := newPMUCounter(); err == nil {
		logger.Debug("Using hardware cycle counter")
		return counter
	} else {
		logger.Debug("PMU cycle counter unavailable, using clock approximation",
			zap.Error(err),
			zap.Int("assumed_freq_ghz", assumedFreqGHz),
		)
	}
	return newClockCounter()
}
