package hardware

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func mapSource(values map[string]int64) SensorSource {
	return func(path string) (int64, bool) {
		v, ok := values[path]
		return v, ok
	}
}

func mapStringSource(values map[string]string) func(string) (string, bool) {
	return func(path string) (string, bool) {
		v, ok := values[path]
		return v, ok
	}
}

func TestBatteryPercent(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]int64
		want   int
	}{
		{
			name:   "primary path",
			values: map[string]int64{"/sys/class/power_supply/battery/capacity": 73},
			want:   73,
		},
		{
			name:   "laptop fallback path",
			values: map[string]int64{"/sys/class/power_supply/BAT0/capacity": 42},
			want:   42,
		},
		{
			name:   "clamped above 100",
			values: map[string]int64{"/sys/class/power_supply/battery/capacity": 150},
			want:   100,
		},
		{
			name:   "clamped below 0",
			values: map[string]int64{"/sys/class/power_supply/battery/capacity": -5},
			want:   0,
		},
		{
			name:   "no source readable",
			values: map[string]int64{},
			want:   85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProbe(zaptest.NewLogger(t), WithSensorSource(mapSource(tt.values)))
			if got := p.BatteryPercent(); got != tt.want {
				t.Errorf("BatteryPercent() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCharging(t *testing.T) {
	tests := []struct {
		name   string
		status map[string]string
		ints   map[string]int64
		want   bool
	}{
		{
			name:   "status Charging",
			status: map[string]string{"/sys/class/power_supply/battery/status": "Charging"},
			want:   true,
		},
		{
			name:   "status Full counts as charging",
			status: map[string]string{"/sys/class/power_supply/battery/status": "Full"},
			want:   true,
		},
		{
			name:   "status Discharging",
			status: map[string]string{"/sys/class/power_supply/battery/status": "Discharging"},
			want:   false,
		},
		{
			name: "ac online fallback",
			ints: map[string]int64{"/sys/class/power_supply/ac/online": 1},
			want: true,
		},
		{
			name: "usb online fallback",
			ints: map[string]int64{"/sys/class/power_supply/usb/online": 1},
			want: true,
		},
		{
			name: "charger present but offline",
			ints: map[string]int64{"/sys/class/power_supply/ac/online": 0},
			want: false,
		},
		{
			name: "nothing readable",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProbe(zaptest.NewLogger(t),
				WithSensorSource(mapSource(tt.ints)),
				WithStringSource(mapStringSource(tt.status)))
			if got := p.Charging(); got != tt.want {
				t.Errorf("Charging() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestBatteryTempC(t *testing.T) {
	p := NewProbe(zaptest.NewLogger(t), WithSensorSource(mapSource(map[string]int64{
		"/sys/class/power_supply/battery/temp": 385,
	})))
	if got := p.BatteryTempC(); got != 38.5 {
		t.Errorf("BatteryTempC() = %f, want 38.5", got)
	}
}

func TestBatteryTempFallsBackToSoC(t *testing.T) {
	p := NewProbe(zaptest.NewLogger(t), WithSensorSource(mapSource(map[string]int64{
		"/sys/class/thermal/thermal_zone0/temp": 41000,
	})))
	if got := p.BatteryTempC(); got != 41.0 {
		t.Errorf("BatteryTempC() = %f, want 41.0", got)
	}
}

func TestSoCTempPicksHottestZone(t *testing.T) {
	p := NewProbe(zaptest.NewLogger(t), WithSensorSource(mapSource(map[string]int64{
		"/sys/class/thermal/thermal_zone0/temp": 36000,
		"/sys/class/thermal/thermal_zone1/temp": 44500,
		"/sys/class/thermal/thermal_zone2/temp": 39000,
	})))
	if got := p.SoCTempC(); got != 44.5 {
		t.Errorf("SoCTempC() = %f, want 44.5", got)
	}
}

func TestSoCTempIgnoresImplausibleReadings(t *testing.T) {
	p := NewProbe(zaptest.NewLogger(t), WithSensorSource(mapSource(map[string]int64{
		"/sys/class/thermal/thermal_zone0/temp": 250000,
		"/sys/class/thermal/thermal_zone1/temp": 1000,
		"/sys/class/thermal/thermal_zone2/temp": 37000,
	})))
	if got := p.SoCTempC(); got != 37.0 {
		t.Errorf("SoCTempC() = %f, want 37.0", got)
	}
}

func TestSoCTempFallback(t *testing.T) {
	p := NewProbe(zaptest.NewLogger(t), WithSensorSource(mapSource(nil)))
	if got := p.SoCTempC(); got != fallbackTempC {
		t.Errorf("SoCTempC() = %f, want %f", got, fallbackTempC)
	}
}
