package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shellmining/mobilex/internal/config"
	"github.com/shellmining/mobilex/internal/power"
)

// registry maps opaque handles to live miners. Handle zero is never
// issued; it is the sentinel for creation failure.
var registry = struct {
	mu     sync.Mutex
	miners map[uint64]*Miner
	next   uint64
}{miners: make(map[uint64]*Miner), next: 1}

func lookup(handle uint64) *Miner {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.miners[handle]
}

// Create builds a miner from cfg and returns its handle, or zero on
// failure. A nil cfg uses the defaults.
func Create(logger *zap.Logger, cfg *config.Config) uint64 {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	m, err := NewMiner(logger, cfg)
	if err != nil {
		logger.Error("Miner creation failed", zap.Error(err))
		return 0
	}

	registry.mu.Lock()
	handle := registry.next
	registry.next++
	registry.miners[handle] = m
	registry.mu.Unlock()
	return handle
}

// Destroy stops and releases the miner behind handle. Unknown handles
// are ignored.
func Destroy(handle uint64) {
	registry.mu.Lock()
	m := registry.miners[handle]
	delete(registry.miners, handle)
	registry.mu.Unlock()

	if m != nil {
		m.Close()
	}
}

// StartMining begins a session at the wire intensity (0..3). Returns
// false for unknown handles, invalid intensities, or policy refusal.
func StartMining(handle uint64, intensity int) bool {
	m := lookup(handle)
	if m == nil {
		return false
	}
	if intensity < int(power.IntensityLight) || intensity > int(power.IntensityFull) {
		return false
	}
	return m.StartMining(power.Intensity(intensity)) == nil
}

// StopMining halts the session. Returns false for unknown handles.
func StopMining(handle uint64) bool {
	m := lookup(handle)
	if m == nil {
		return false
	}
	m.StopMining()
	return true
}

// GetHashRate returns the total hash rate, or 0.0.
func GetHashRate(handle uint64) float64 {
	if m := lookup(handle); m != nil {
		return m.Engine.HashRate()
	}
	return 0.0
}

// GetRandomXHashRate returns the inner-hash share of the rate, or 0.0.
func GetRandomXHashRate(handle uint64) float64 {
	if m := lookup(handle); m != nil {
		return m.Engine.RandomXHashRate()
	}
	return 0.0
}

// GetMobileXHashRate returns the mobile-stage share of the rate, or 0.0.
func GetMobileXHashRate(handle uint64) float64 {
	if m := lookup(handle); m != nil {
		return m.Engine.MobileXHashRate()
	}
	return 0.0
}

// GetCurrentTempC returns the current device temperature, or 0.0.
func GetCurrentTempC(handle uint64) float64 {
	if m := lookup(handle); m != nil {
		return m.Monitor.CurrentTempC()
	}
	return 0.0
}

// GetNPUUtilization returns the neural backend utilization in percent,
// or 0.0.
func GetNPUUtilization(handle uint64) float64 {
	if m := lookup(handle); m != nil {
		return m.NPU.Metrics().UtilizationPct
	}
	return 0.0
}

// IsMining reports whether the session is active. Unknown handles read
// as false.
func IsMining(handle uint64) bool {
	if m := lookup(handle); m != nil {
		return m.Engine.IsMining()
	}
	return false
}

// GenerateThermalProof produces a fresh proof over the session header
// and returns its encoded form, or zero.
func GenerateThermalProof(handle uint64) uint64 {
	m := lookup(handle)
	if m == nil {
		return 0
	}
	header := []byte(m.Engine.SessionID())
	return m.Verifier.GenerateProof(header).Encoded
}

// ConfigureNPU reports whether a platform backend is serving ops for
// the session. It does not probe the accelerator again; once the
// engine has latched the CPU fallback it reports false.
func ConfigureNPU(handle uint64) bool {
	m := lookup(handle)
	if m == nil {
		return false
	}
	return !m.NPU.UsingFallback()
}
