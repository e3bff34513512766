package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsConfig defines metrics exporter configuration
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ListenAddr     string        `yaml:"listen_addr"`
	MetricsPath    string        `yaml:"metrics_path"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	Namespace      string        `yaml:"namespace"`
}

// Sources supplies the live values sampled on every update tick. Nil
// members are skipped.
type Sources struct {
	HashRate        func() float64
	RandomXHashRate func() float64
	MobileXHashRate func() float64
	TotalHashes     func() uint64
	Mining          func() bool
	Intensity       func() int
	TemperatureC    func() float64
	ThermalState    func() int
	BatteryPercent  func() int
	Charging        func() bool
	NPULatencyMs    func() float64
	NPUUtilization  func() float64
	NPUOps          func() uint64
	ProofCount      func() int
}

// MetricsExporter serves device mining metrics over Prometheus.
type MetricsExporter struct {
	logger   *zap.Logger
	config   MetricsConfig
	sources  Sources
	registry *prometheus.Registry
	server   *http.Server

	hashrate        prometheus.Gauge
	randomxHashrate prometheus.Gauge
	mobilexHashrate prometheus.Gauge
	totalHashes     prometheus.Gauge
	mining          prometheus.Gauge
	intensity       prometheus.Gauge
	temperature     prometheus.Gauge
	thermalState    prometheus.Gauge
	batteryPercent  prometheus.Gauge
	charging        prometheus.Gauge
	npuLatency      prometheus.Gauge
	npuUtilization  prometheus.Gauge
	npuOps          prometheus.Gauge
	proofCount      prometheus.Gauge

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewMetricsExporter creates a metrics exporter over the given sources
func NewMetricsExporter(logger *zap.Logger, config MetricsConfig, sources Sources) *MetricsExporter {
	if config.ListenAddr == "" {
		config.ListenAddr = ":9090"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = 10 * time.Second
	}
	if config.Namespace == "" {
		config.Namespace = "mobilex"
	}

	e := &MetricsExporter{
		logger:   logger,
		config:   config,
		sources:  sources,
		registry: prometheus.NewRegistry(),
	}
	e.initMetrics()
	return e
}

func (e *MetricsExporter) initMetrics() {
	ns := e.config.Namespace
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      name,
			Help:      help,
		})
		e.registry.MustRegister(g)
		return g
	}

	e.hashrate = gauge("hashrate", "Total hash rate in hashes per second")
	e.randomxHashrate = gauge("randomx_hashrate", "Hash rate share of the inner hash stage")
	e.mobilexHashrate = gauge("mobilex_hashrate", "Hash rate share of the mobile stages")
	e.totalHashes = gauge("hashes_total", "Total hashes this session")
	e.mining = gauge("mining", "1 while mining, 0 otherwise")
	e.intensity = gauge("mining_intensity", "Mining intensity level (0=disabled..3=full)")
	e.temperature = gauge("temperature_celsius", "Device temperature in Celsius")
	e.thermalState = gauge("thermal_state", "Thermal state (0=normal,1=throttle,2=critical)")
	e.batteryPercent = gauge("battery_percent", "Battery charge percentage")
	e.charging = gauge("charging", "1 while charging, 0 otherwise")
	e.npuLatency = gauge("npu_latency_ms", "Average neural op latency in milliseconds")
	e.npuUtilization = gauge("npu_utilization_pct", "Neural accelerator utilization percentage")
	e.npuOps = gauge("npu_ops_total", "Total neural ops this session")
	e.proofCount = gauge("thermal_proofs", "Thermal proofs recorded this session")
}

// Start launches the HTTP server and the update loop
func (e *MetricsExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("metrics exporter already running")
	}
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	mux := http.NewServeMux()
	mux.Handle(e.config.MetricsPath, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{
		Addr:    e.config.ListenAddr,
		Handler: mux,
	}

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go e.updateLoop(e.stop, e.done)

	e.logger.Info("Metrics exporter started",
		zap.String("addr", e.config.ListenAddr),
		zap.String("path", e.config.MetricsPath),
	)
	return nil
}

// Stop shuts down the server and the update loop
func (e *MetricsExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	stop, done := e.stop, e.done
	server := e.server
	e.mu.Unlock()

	close(stop)
	<-done

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	e.logger.Info("Metrics exporter stopped")
	return nil
}

func (e *MetricsExporter) updateLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.config.UpdateInterval)
	defer ticker.Stop()

	e.Update()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Update()
		}
	}
}

// Update samples every wired source once
func (e *MetricsExporter) Update() {
	s := e.sources
	if s.HashRate != nil {
		e.hashrate.Set(s.HashRate())
	}
	if s.RandomXHashRate != nil {
		e.randomxHashrate.Set(s.RandomXHashRate())
	}
	if s.MobileXHashRate != nil {
		e.mobilexHashrate.Set(s.MobileXHashRate())
	}
	if s.TotalHashes != nil {
		e.totalHashes.Set(float64(s.TotalHashes()))
	}
	if s.Mining != nil {
		e.mining.Set(boolValue(s.Mining()))
	}
	if s.Intensity != nil {
		e.intensity.Set(float64(s.Intensity()))
	}
	if s.TemperatureC != nil {
		e.temperature.Set(s.TemperatureC())
	}
	if s.ThermalState != nil {
		e.thermalState.Set(float64(s.ThermalState()))
	}
	if s.BatteryPercent != nil {
		e.batteryPercent.Set(float64(s.BatteryPercent()))
	}
	if s.Charging != nil {
		e.charging.Set(boolValue(s.Charging()))
	}
	if s.NPULatencyMs != nil {
		e.npuLatency.Set(s.NPULatencyMs())
	}
	if s.NPUUtilization != nil {
		e.npuUtilization.Set(s.NPUUtilization())
	}
	if s.NPUOps != nil {
		e.npuOps.Set(float64(s.NPUOps()))
	}
	if s.ProofCount != nil {
		e.proofCount.Set(float64(s.ProofCount()))
	}
}

// Registry exposes the underlying registry for tests and embedding
func (e *MetricsExporter) Registry() *prometheus.Registry {
	return e.registry
}

func boolValue(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
