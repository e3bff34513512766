package hardware

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Safe fallbacks used when every source for a reading is unavailable.
const (
	fallbackBatteryPct = 85
	fallbackTempC      = 35.0

	minTempC = 10.0
	maxTempC = 100.0
)

// SensorSource maps a sysfs path to an integer reading. The second
// return value reports whether the path could be read. Production code
// uses ReadSysfsInt; tests substitute deterministic sources.
type SensorSource func(path string) (int64, bool)

// ReadSysfsInt reads a whitespace-trimmed integer from a sysfs file
func ReadSysfsInt(path string) (int64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ReadSysfsString reads a whitespace-trimmed string from a sysfs file
func ReadSysfsString(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

var (
	batteryCapacityPaths = []string{
		"/sys/class/power_supply/battery/capacity",
		"/sys/class/power_supply/BAT0/capacity",
		"/sys/class/power_supply/BAT1/capacity",
		"/proc/sys/kernel/battery_capacity",
	}

	chargingStatusPath = "/sys/class/power_supply/battery/status"

	chargerOnlinePaths = []string{
		"/sys/class/power_supply/ac/online",
		"/sys/class/power_supply/usb/online",
		"/sys/class/power_supply/wireless/online",
	}

	batteryTempPath = "/sys/class/power_supply/battery/temp"

	socTempPaths = []string{
		"/sys/class/thermal/thermal_zone0/temp",
		"/sys/class/thermal/thermal_zone1/temp",
		"/sys/class/thermal/thermal_zone2/temp",
		"/sys/class/thermal/thermal_zone3/temp",
		"/sys/devices/virtual/thermal/thermal_zone0/temp",
		"/sys/devices/virtual/thermal/thermal_zone1/temp",
	}
)

// Probe reads battery, charging and temperature state from the
// platform's sysfs interfaces. It holds no mutable state; every reading
// is taken fresh. A failed read is not an error, it falls through the
// source chain and ends at a documented safe value.
type Probe struct {
	logger     *zap.Logger
	source     SensorSource
	readString func(path string) (string, bool)
}

// Option customizes a Probe
type Option func(*Probe)

// WithSensorSource substitutes the integer sensor source
func WithSensorSource(source SensorSource) Option {
	return func(p *Probe) {
		p.source = source
	}
}

// WithStringSource substitutes the string sensor source
func WithStringSource(read func(path string) (string, bool)) Option {
	return func(p *Probe) {
		p.readString = read
	}
}

// NewProbe creates a hardware probe
func NewProbe(logger *zap.Logger, opts ...Option) *Probe {
	p := &Probe{
		logger:     logger,
		source:     ReadSysfsInt,
		readString: ReadSysfsString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BatteryPercent returns the battery charge level in [0, 100]
func (p *Probe) BatteryPercent() int {
	for _, path := range batteryCapacityPaths {
		if value, ok := p.source(path); ok {
			return clampInt(int(value), 0, 100)
		}
	}

	p.logger.Debug("Battery level unavailable, assuming fallback",
		zap.Int("fallback_pct", fallbackBatteryPct))
	return fallbackBatteryPct
}

// Charging reports whether any power source is connected
func (p *Probe) Charging() bool {
	if status, ok := p.readString(chargingStatusPath); ok {
		return status == "Charging" || status == "Full"
	}

	for _, path := range chargerOnlinePaths {
		if online, ok := p.source(path); ok && online == 1 {
			return true
		}
	}

	p.logger.Debug("Charging state unavailable, assuming not charging")
	return false
}

// BatteryTempC returns the battery temperature in Celsius
func (p *Probe) BatteryTempC() float64 {
	if value, ok := p.source(batteryTempPath); ok {
		// Battery temperature is reported in tenths of a degree.
		return clampTemp(float64(value) / 10.0)
	}

	return p.SoCTempC()
}

// SoCTempC returns the hottest SoC thermal-zone reading in Celsius
func (p *Probe) SoCTempC() float64 {
	best, found := 0.0, false
	for _, path := range socTempPaths {
		value, ok := p.source(path)
		if !ok {
			continue
		}
		temp := convertZoneTemp(path, value)
		if temp < minTempC || temp > maxTempC {
			continue
		}
		if !found || temp > best {
			best, found = temp, true
		}
	}

	if !found {
		p.logger.Debug("No thermal zones readable, assuming fallback",
			zap.Float64("fallback_temp_c", fallbackTempC))
		return fallbackTempC
	}
	return best
}

// convertZoneTemp converts a raw thermal reading to Celsius. Battery
// zones report tenths of a degree; thermal zones report millidegrees.
func convertZoneTemp(path string, raw int64) float64 {
	if strings.Contains(path, "battery") {
		return float64(raw) / 10.0
	}
	return float64(raw) / 1000.0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampTemp(t float64) float64 {
	if t < minTempC {
		return minTempC
	}
	if t > maxTempC {
		return maxTempC
	}
	return t
}
