package scheduler

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/shellmining/mobilex/internal/hardware"
)

// Scheduler binds units of work to subsets of a big.LITTLE core
// topology. Affinity is best effort: on hosts that deny
// sched_setaffinity the work still runs on the current thread and the
// caller is told binding failed. The activation mask is never
// corrupted by a failed bind.
type Scheduler struct {
	logger *zap.Logger
	topo   hardware.CoreTopology

	mu           sync.Mutex
	activeBig    int
	activeLittle int
}

// New creates a scheduler over the detected topology with no cores
// active. Call Configure before dispatching work.
func New(logger *zap.Logger, topo hardware.CoreTopology) *Scheduler {
	return &Scheduler{logger: logger, topo: topo}
}

// Configure records the desired activation, clamped to the topology.
func (s *Scheduler) Configure(bigCount, littleCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeBig = clamp(bigCount, 0, s.topo.BigCount())
	s.activeLittle = clamp(littleCount, 0, s.topo.LittleCount())

	s.logger.Debug("Core activation configured",
		zap.Int("big", s.activeBig),
		zap.Int("little", s.activeLittle),
	)
}

// ActiveCores returns the current (big, little) activation counts.
func (s *Scheduler) ActiveCores() (big, little int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBig, s.activeLittle
}

// RunOnBig executes work with thread affinity set to the active big
// cores. The returned bool reports whether binding succeeded; the work
// runs either way.
func (s *Scheduler) RunOnBig(work func()) bool {
	return s.runOn(s.bigSet(), work)
}

// RunOnLittle executes work with thread affinity set to the active
// little cores.
func (s *Scheduler) RunOnLittle(work func()) bool {
	return s.runOn(s.littleSet(), work)
}

// ReduceIntensity deactivates one core, big cores first. At least one
// core stays active.
func (s *Scheduler) ReduceIntensity() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.activeBig > 0 && s.activeBig+s.activeLittle > 1:
		s.activeBig--
	case s.activeLittle > 1:
		s.activeLittle--
	default:
		return
	}

	s.logger.Debug("Reduced core activation",
		zap.Int("big", s.activeBig),
		zap.Int("little", s.activeLittle),
	)
}

// IncreaseIntensity activates one more core, little cores first.
func (s *Scheduler) IncreaseIntensity() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.activeLittle < s.topo.LittleCount():
		s.activeLittle++
	case s.activeBig < s.topo.BigCount():
		s.activeBig++
	default:
		return
	}

	s.logger.Debug("Increased core activation",
		zap.Int("big", s.activeBig),
		zap.Int("little", s.activeLittle),
	)
}

// ActiveCoreBitmap returns a u32 with bit i set iff core i is active.
// Cores with id >= 32 are not representable and are omitted.
func (s *Scheduler) ActiveCoreBitmap() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mask uint32
	for _, id := range firstN(s.topo.BigIDs, s.activeBig) {
		if id < 32 {
			mask |= 1 << uint(id)
		}
	}
	for _, id := range firstN(s.topo.LittleIDs, s.activeLittle) {
		if id < 32 {
			mask |= 1 << uint(id)
		}
	}
	return mask
}

func (s *Scheduler) bigSet() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return firstN(s.topo.BigIDs, s.activeBig)
}

func (s *Scheduler) littleSet() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return firstN(s.topo.LittleIDs, s.activeLittle)
}

func (s *Scheduler) runOn(cores []int, work func()) bool {
	if len(cores) == 0 {
		work()
		return false
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	bound := true
	if err := setAffinity(cores); err != nil {
		s.logger.Debug("Thread affinity unavailable", zap.Error(err))
		bound = false
	}
	defer func() {
		if bound {
			if err := clearAffinity(s.topo.Total); err != nil {
				s.logger.Debug("Failed to restore thread affinity", zap.Error(err))
			}
		}
	}()

	work()
	return bound
}

func firstN(ids []int, n int) []int {
	if n > len(ids) {
		n = len(ids)
	}
	return ids[:n]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
