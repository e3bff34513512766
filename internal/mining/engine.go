package mining

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shellmining/mobilex/internal/npu"
	"github.com/shellmining/mobilex/internal/power"
	"github.com/shellmining/mobilex/internal/randomx"
	"github.com/shellmining/mobilex/internal/scheduler"
	"github.com/shellmining/mobilex/internal/thermal"
)

const (
	headerSize = 80

	// proofInterval is the per-worker hash cadence of thermal proof
	// embedding.
	proofInterval = 1000
)

// Engine drives the mining session: one worker per active core, each
// owning a hasher over the shared cache. Workers observe the shutdown
// flag at every hash boundary and exit within one hash.
type Engine struct {
	logger      *zap.Logger
	cache       *randomx.Cache
	npu         *npu.Engine
	sched       *scheduler.Scheduler
	verifier    *thermal.Verifier
	useVector   bool
	npuInterval uint64
	sessionID   uuid.UUID

	totalHashes atomic.Uint64
	innerNanos  atomic.Int64
	mobileNanos atomic.Int64
	lastProof   atomic.Uint64
	shutdown    atomic.Bool

	mu             sync.Mutex
	mining         bool
	intensity      power.Intensity
	startTime      time.Time
	workerOverride int
	wg             sync.WaitGroup
}

// NewEngine assembles a mining engine. verifier may be nil to disable
// thermal proof embedding.
func NewEngine(logger *zap.Logger, cache *randomx.Cache, npuEngine *npu.Engine, sched *scheduler.Scheduler, verifier *thermal.Verifier, useVector bool, npuInterval uint64) *Engine {
	return &Engine{
		logger:      logger,
		cache:       cache,
		npu:         npuEngine,
		sched:       sched,
		verifier:    verifier,
		useVector:   useVector,
		npuInterval: npuInterval,
		sessionID:   uuid.New(),
	}
}

// SessionID identifies this mining session.
func (e *Engine) SessionID() string { return e.sessionID.String() }

// SetWorkerOverride fixes the worker count regardless of the intensity
// core budget. Zero restores intensity-derived sizing. Takes effect on
// the next start or intensity change.
func (e *Engine) SetWorkerOverride(workers int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if workers < 0 {
		workers = 0
	}
	e.workerOverride = workers
}

// Start begins mining at the given intensity.
func (e *Engine) Start(intensity power.Intensity) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mining {
		return fmt.Errorf("mining already running")
	}
	if intensity == power.IntensityDisabled {
		return fmt.Errorf("cannot start mining at intensity DISABLED")
	}

	e.startWorkersLocked(intensity)

	e.logger.Info("Mining started",
		zap.String("session", e.sessionID.String()),
		zap.String("intensity", intensity.String()),
	)
	return nil
}

// Stop halts mining and waits for all workers to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.mining {
		e.mu.Unlock()
		return
	}
	e.stopWorkersLocked()
	e.mu.Unlock()

	e.logger.Info("Mining stopped",
		zap.Uint64("total_hashes", e.totalHashes.Load()),
	)
}

// UpdateIntensity reconfigures the worker set to match a new intensity.
// DISABLED stops mining; other levels restart the workers with the new
// core activation.
func (e *Engine) UpdateIntensity(intensity power.Intensity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mining || intensity == e.intensity {
		return
	}

	e.stopWorkersLocked()
	if intensity == power.IntensityDisabled {
		e.logger.Info("Mining disabled by policy")
		return
	}
	e.startWorkersLocked(intensity)

	e.logger.Info("Mining intensity applied",
		zap.String("intensity", intensity.String()),
	)
}

// IsMining reports whether workers are currently running.
func (e *Engine) IsMining() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mining
}

// Intensity returns the current mining intensity, or DISABLED when
// stopped.
func (e *Engine) Intensity() power.Intensity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mining {
		return power.IntensityDisabled
	}
	return e.intensity
}

// TotalHashes returns the hash count since the workers were last
// started; Start and every intensity change reset it.
func (e *Engine) TotalHashes() uint64 { return e.totalHashes.Load() }

// HashRate returns hashes per second since the current start, or 0.0
// when not mining.
func (e *Engine) HashRate() float64 {
	e.mu.Lock()
	mining, start := e.mining, e.startTime
	e.mu.Unlock()

	if !mining {
		return 0.0
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(e.totalHashes.Load()) / elapsed
}

// RandomXHashRate returns the share of the hash rate attributable to
// the inner hash, split by measured per-stage time.
func (e *Engine) RandomXHashRate() float64 {
	return e.HashRate() * e.innerShare()
}

// MobileXHashRate returns the share of the hash rate attributable to
// the preprocess, mixing, and neural stages.
func (e *Engine) MobileXHashRate() float64 {
	return e.HashRate() * (1.0 - e.innerShare())
}

// LastThermalProof returns the most recently embedded proof value, or
// zero before the first embedding.
func (e *Engine) LastThermalProof() uint64 { return e.lastProof.Load() }

func (e *Engine) innerShare() float64 {
	inner := float64(e.innerNanos.Load())
	mobile := float64(e.mobileNanos.Load())
	if inner+mobile <= 0 {
		return 0.0
	}
	return inner / (inner + mobile)
}

func (e *Engine) startWorkersLocked(intensity power.Intensity) {
	big, little := intensity.Cores()
	e.sched.Configure(big, little)
	activeBig, activeLittle := e.sched.ActiveCores()
	if activeBig+activeLittle == 0 {
		activeBig = 1
	}
	workers := activeBig + activeLittle
	if e.workerOverride > 0 {
		workers = e.workerOverride
	}

	e.shutdown.Store(false)
	e.mining = true
	e.intensity = intensity
	e.startTime = time.Now()
	e.totalHashes.Store(0)
	e.innerNanos.Store(0)
	e.mobileNanos.Store(0)

	for i := 0; i < workers; i++ {
		onBig := i < activeBig
		worker := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			run := e.sched.RunOnLittle
			if onBig {
				run = e.sched.RunOnBig
			}
			run(func() { e.mineLoop(worker) })
		}()
	}
}

func (e *Engine) stopWorkersLocked() {
	e.shutdown.Store(true)
	e.wg.Wait()
	e.mining = false
}

// mineLoop is the per-worker hash loop. The header carries the session
// id and worker index; the nonce advances every hash and the trailing
// 8 bytes hold the latest thermal proof.
func (e *Engine) mineLoop(worker int) {
	hasher := NewHasher(e.cache, e.npu, e.useVector, e.npuInterval)

	var header [headerSize]byte
	copy(header[:16], e.sessionID[:])
	binary.LittleEndian.PutUint32(header[16:20], uint32(worker))

	var nonce uint64
	for !e.shutdown.Load() {
		binary.LittleEndian.PutUint64(header[20:28], nonce)

		if e.verifier != nil && nonce%proofInterval == 0 {
			proof := e.verifier.GenerateProof(header[:headerSize-8])
			binary.LittleEndian.PutUint64(header[headerSize-8:], proof.Encoded)
			e.lastProof.Store(proof.Encoded)
		}

		start := time.Now()
		_, innerNanos := hasher.ComputeTimed(header[:])
		total := time.Since(start).Nanoseconds()

		e.innerNanos.Add(innerNanos)
		e.mobileNanos.Add(total - innerNanos)
		e.totalHashes.Add(1)
		nonce++
	}
}
