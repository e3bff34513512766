package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shellmining/mobilex/bridge"
	"github.com/shellmining/mobilex/internal/config"
	"github.com/shellmining/mobilex/internal/logging"
	"github.com/shellmining/mobilex/internal/monitoring"
	"github.com/shellmining/mobilex/internal/power"
)

var startIntensity string

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mining engine",
	Long: `Start the mining engine with the configured intensity policy.

Examples:
  # Start with default config
  mobilex start

  # Start with a specific config file
  mobilex start --config mobilex.yaml

  # Force a starting intensity instead of the policy decision
  mobilex start --intensity light`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startIntensity, "intensity", "", "starting intensity (light, medium, full); default follows the power policy")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	factory, err := logging.NewFactory(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer factory.Sync()
	logger := factory.Root()

	miner, err := bridge.NewMiner(factory.GetLogger("miner"), cfg)
	if err != nil {
		return fmt.Errorf("failed to build mining stack: %w", err)
	}
	defer miner.Close()

	logger.Info("Hardware detected",
		zap.Int("cores", miner.Topology.Total),
		zap.Int("big_cores", miner.Topology.BigCount()),
		zap.Int("little_cores", miner.Topology.LittleCount()),
		zap.Bool("neon", miner.Features.HasNEON),
		zap.String("npu_backend", miner.NPU.PlatformName()))

	var exporter *monitoring.MetricsExporter
	if cfg.Monitoring.Enabled {
		exporter = monitoring.NewMetricsExporter(factory.GetLogger("metrics"),
			monitoring.MetricsConfig{Enabled: true, ListenAddr: cfg.Monitoring.ListenAddr},
			metricsSources(miner))
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("failed to start metrics exporter: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			exporter.Stop(ctx)
		}()
	}

	watcher, err := config.NewWatcher(factory.GetLogger("config"), configPath())
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		if err := watcher.Start(func(updated *config.Config) {
			miner.Monitor.SetLimits(updated.Thermal.ThrottleTempC, updated.Thermal.MaxTempC)
		}); err != nil {
			logger.Warn("Config watcher start failed", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	intensity, err := resolveIntensity(miner)
	if err != nil {
		return err
	}
	if intensity == power.IntensityDisabled {
		return fmt.Errorf("power policy refuses to mine (battery %d%%, charging %t, %.1fC)",
			miner.Probe.BatteryPercent(), miner.Probe.Charging(), miner.Monitor.CurrentTempC())
	}

	if err := miner.StartMining(intensity); err != nil {
		return fmt.Errorf("failed to start mining: %w", err)
	}
	logger.Info("Mining started", zap.String("intensity", intensity.String()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("Shutting down", zap.String("signal", s.String()))

	miner.StopMining()
	logger.Info("Mining stopped",
		zap.Uint64("total_hashes", miner.Engine.TotalHashes()),
		zap.Int("thermal_proofs", miner.Verifier.HistoryLen()),
		zap.Int("suspect_proofs", len(miner.SuspectProofs())))
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "./config.yaml"
}

func resolveIntensity(miner *bridge.Miner) (power.Intensity, error) {
	if startIntensity == "" {
		return miner.Controller.Evaluate(), nil
	}
	switch startIntensity {
	case "light":
		return power.IntensityLight, nil
	case "medium":
		return power.IntensityMedium, nil
	case "full":
		return power.IntensityFull, nil
	default:
		return power.IntensityDisabled, fmt.Errorf("unknown intensity %q (want light, medium, or full)", startIntensity)
	}
}

func metricsSources(miner *bridge.Miner) monitoring.Sources {
	return monitoring.Sources{
		HashRate:        miner.Engine.HashRate,
		RandomXHashRate: miner.Engine.RandomXHashRate,
		MobileXHashRate: miner.Engine.MobileXHashRate,
		TotalHashes:     miner.Engine.TotalHashes,
		Mining:          miner.Engine.IsMining,
		Intensity:       func() int { return int(miner.Engine.Intensity()) },
		TemperatureC:    miner.Monitor.CurrentTempC,
		ThermalState:    func() int { return int(miner.Monitor.CurrentState()) },
		BatteryPercent:  miner.Probe.BatteryPercent,
		Charging:        miner.Probe.Charging,
		NPULatencyMs:    func() float64 { return miner.NPU.Metrics().AvgLatencyMs },
		NPUUtilization:  func() float64 { return miner.NPU.Metrics().UtilizationPct },
		NPUOps:          func() uint64 { return miner.NPU.Metrics().TotalOps },
		ProofCount:      miner.Verifier.HistoryLen,
	}
}
