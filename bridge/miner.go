// Package bridge exposes the mining stack through an opaque-handle
// surface consumable by host applications across a foreign-function
// boundary. No failure unwinds across the boundary: creation returns a
// zero handle on error and every other operation tolerates zero or
// stale handles by returning a zero value.
package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shellmining/mobilex/internal/config"
	"github.com/shellmining/mobilex/internal/hardware"
	"github.com/shellmining/mobilex/internal/mining"
	"github.com/shellmining/mobilex/internal/npu"
	"github.com/shellmining/mobilex/internal/power"
	"github.com/shellmining/mobilex/internal/randomx"
	"github.com/shellmining/mobilex/internal/scheduler"
	"github.com/shellmining/mobilex/internal/thermal"
)

// Miner is the assembled device mining stack. Host applications
// normally reach it through the handle functions; the CLI embeds it
// directly.
type Miner struct {
	logger *zap.Logger

	Probe      *hardware.Probe
	Topology   hardware.CoreTopology
	Features   hardware.ArmFeatures
	Monitor    *thermal.Monitor
	Verifier   *thermal.Verifier
	Controller *power.Controller
	NPU        *npu.Engine
	Engine     *mining.Engine

	counter        thermal.CycleCounter
	cheatThreshold float64
}

// NewMiner builds the full stack from configuration. It fails only
// when core topology detection or the cache allocation fails.
func NewMiner(logger *zap.Logger, cfg *config.Config) (*Miner, error) {
	probe := hardware.NewProbe(logger)
	topo, err := hardware.DetectTopology(logger, nil)
	if err != nil {
		return nil, fmt.Errorf("topology detection: %w", err)
	}
	features := hardware.DetectFeatures(logger, topo.Total)

	cache, err := randomx.NewCache(logger, []byte(cfg.Mining.Seed), cfg.Mining.CacheSizeMB*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("cache init: %w", err)
	}

	var platform npu.Backend
	if cfg.NPU.Enabled {
		platform = npu.PlatformBackend(logger)
	}
	npuEngine := npu.NewEngine(logger, platform)
	sched := scheduler.New(logger, topo)

	monitor := thermal.NewMonitor(logger,
		func() []float64 { return []float64{probe.SoCTempC(), probe.BatteryTempC()} },
		cfg.Thermal.ThrottleTempC, cfg.Thermal.MaxTempC, cfg.Thermal.PollInterval)

	counter := thermal.NewCycleCounter(logger)
	verifier := thermal.NewVerifier(logger, counter, monitor.CurrentTempC,
		cfg.Thermal.BaseFrequencyMHz, cfg.Thermal.TolerancePct)

	engine := mining.NewEngine(logger, cache, npuEngine, sched, verifier,
		features.HasNEON, cfg.Mining.NPUInterval)
	if cfg.Mining.Threads > 0 {
		engine.SetWorkerOverride(cfg.Mining.Threads)
	}

	m := &Miner{
		logger:         logger,
		Probe:          probe,
		Topology:       topo,
		Features:       features,
		Monitor:        monitor,
		Verifier:       verifier,
		NPU:            npuEngine,
		Engine:         engine,
		counter:        counter,
		cheatThreshold: cfg.Thermal.CheatThreshold,
	}

	m.Controller = power.NewController(logger, m.snapshot, cfg.Power.PollInterval,
		func(old, new power.Intensity) { engine.UpdateIntensity(new) })

	return m, nil
}

// snapshot assembles the policy inputs from live hardware state.
func (m *Miner) snapshot() power.Snapshot {
	return power.Snapshot{
		BatteryPct: m.Probe.BatteryPercent(),
		Charging:   m.Probe.Charging(),
		TempC:      m.Monitor.CurrentTempC(),
	}
}

// StartMining begins a session at the requested intensity after the
// policy confirms conditions allow it.
func (m *Miner) StartMining(intensity power.Intensity) error {
	if !m.Controller.CanStartMining() {
		return fmt.Errorf("mining conditions not met: %+v", m.snapshot())
	}

	m.Monitor.Poll()
	if err := m.Monitor.Start(); err != nil {
		return err
	}
	if err := m.Engine.Start(intensity); err != nil {
		m.Monitor.Stop()
		return err
	}
	if err := m.Controller.Start(); err != nil {
		m.Engine.Stop()
		m.Monitor.Stop()
		return err
	}
	return nil
}

// SuspectProofs returns the history indices of thermal proofs whose
// temperature z-score exceeds the configured cheat threshold.
func (m *Miner) SuspectProofs() []int {
	return m.Verifier.DetectCheating(m.cheatThreshold)
}

// StopMining halts the session and all background tasks.
func (m *Miner) StopMining() {
	m.Controller.Stop()
	m.Engine.Stop()
	m.Monitor.Stop()
}

// Close releases everything the miner holds.
func (m *Miner) Close() {
	m.StopMining()
	if err := m.NPU.Close(); err != nil {
		m.logger.Debug("NPU close failed", zap.Error(err))
	}
	if err := m.counter.Close(); err != nil {
		m.logger.Debug("Cycle counter close failed", zap.Error(err))
	}
}
