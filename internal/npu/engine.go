package npu

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics summarizes accelerator usage since engine creation.
type Metrics struct {
	UtilizationPct float64
	PowerWatts     float64
	TotalOps       uint64
	AvgLatencyMs   float64
}

// Engine executes the fixed-shape convolution, preferring a platform
// accelerator and falling back to the CPU reference implementation.
// Once a platform inference fails the engine latches onto the fallback
// for the rest of the session. All access is serialized: platform
// backends are not required to be reentrant.
type Engine struct {
	logger   *zap.Logger
	platform Backend
	cpu      Backend

	mu            sync.Mutex
	usingFallback bool
	totalOps      uint64
	avgLatencyMs  float64
	utilization   float64
	powerWatts    float64
}

// NewEngine creates an NPU engine. platform may be nil, in which case
// the CPU reference backend serves every op from the start.
func NewEngine(logger *zap.Logger, platform Backend) *Engine {
	e := &Engine{
		logger:   logger,
		platform: platform,
		cpu:      newCPUBackend(),
	}
	if platform == nil {
		e.usingFallback = true
		logger.Info("No platform neural backend, using CPU reference")
	} else {
		logger.Info("Platform neural backend active",
			zap.String("backend", platform.Name()),
		)
	}
	return e
}

// Execute runs one inference. It always returns a valid output tensor;
// a platform failure switches to the CPU backend transparently.
func (e *Engine) Execute(input Tensor) Tensor {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	if !e.usingFallback {
		out, err := e.platform.Infer(input)
		if err == nil {
			e.updateMetricsLocked(time.Since(start), false)
			return out
		}
		e.usingFallback = true
		e.logger.Warn("Platform neural inference failed, latching CPU fallback",
			zap.Error(err),
		)
	}

	out, _ := e.cpu.Infer(input)
	e.updateMetricsLocked(time.Since(start), true)
	return out
}

// ProcessState runs the leading 3072 bytes of vmState through the
// convolution and returns the resulting 2048-byte state.
func (e *Engine) ProcessState(vmState []byte) []byte {
	return TensorToState(e.Execute(StateToTensor(vmState)))
}

// PlatformName identifies the backend currently serving ops.
func (e *Engine) PlatformName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.usingFallback {
		return e.cpu.Name()
	}
	return e.platform.Name()
}

// UsingFallback reports whether the CPU backend is serving ops.
func (e *Engine) UsingFallback() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usingFallback
}

// Metrics returns a snapshot of the usage counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Metrics{
		UtilizationPct: e.utilization,
		PowerWatts:     e.powerWatts,
		TotalOps:       e.totalOps,
		AvgLatencyMs:   e.avgLatencyMs,
	}
}

// Close releases backend resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.platform != nil {
		if err := e.platform.Close(); err != nil {
			return err
		}
	}
	return e.cpu.Close()
}

func (e *Engine) updateMetricsLocked(latency time.Duration, fallback bool) {
	e.totalOps++
	ms := float64(latency.Microseconds()) / 1000.0
	e.avgLatencyMs += (ms - e.avgLatencyMs) / float64(e.totalOps)

	if fallback {
		e.utilization = 100.0
		e.powerWatts = 1.0
	} else {
		e.utilization = min(100.0, e.utilization+1.0)
		e.powerWatts = 2.0
	}
}
