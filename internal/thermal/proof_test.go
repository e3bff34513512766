package thermal

import (
	"math"
	"testing"

	"go.uber.org/zap/zaptest"
)

func fixedTemp(t float64) TempFunc {
	return func() float64 { return t }
}

// stepCounter advances by a fixed amount on every read, making cycle
// deltas reproducible across proof generations.
type stepCounter struct {
	n    uint64
	step uint64
}

func (c *stepCounter) ReadCycles() uint64 {
	c.n += c.step
	return c.n
}

func (c *stepCounter) Supported() bool { return true }
func (c *stepCounter) Close() error    { return nil }

func newTestVerifier(t *testing.T, temp float64) *Verifier {
	t.Helper()
	return NewVerifier(zaptest.NewLogger(t), newClockCounter(), fixedTemp(temp), 2000, 5.0)
}

func TestGenerateProofFields(t *testing.T) {
	v := newTestVerifier(t, 38.0)
	header := make([]byte, 80)
	for i := range header {
		header[i] = byte(i)
	}

	proof := v.GenerateProof(header)

	if proof.CycleCount == 0 {
		t.Error("cycle count should be nonzero")
	}
	if proof.FrequencyMHz == 0 {
		t.Error("effective frequency should be nonzero")
	}
	if proof.TempC != 38.0 {
		t.Errorf("TempC = %.1f, want 38.0", proof.TempC)
	}
	if proof.Encoded == 0 {
		t.Error("encoded proof should be nonzero")
	}
	if proof.ExpectedCycles != 32*workloadIters {
		t.Errorf("ExpectedCycles = %d, want %d", proof.ExpectedCycles, 32*workloadIters)
	}
	if v.HistoryLen() != 1 {
		t.Errorf("history length = %d, want 1", v.HistoryLen())
	}
}

func TestThermalMultiplier(t *testing.T) {
	tests := []struct {
		temp float64
		want float64
	}{
		{40.0, 1.0},
		{35.0, 1.0},
		{45.0, 1.0},
		{50.0, 1.10},
		{47.0, 1.04},
		{30.0, 0.95},
		{25.0, 0.90},
	}
	for _, tt := range tests {
		got := thermalMultiplier(tt.temp)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("thermalMultiplier(%.1f) = %f, want %f", tt.temp, got, tt.want)
		}
	}
}

func TestExpectedCyclesScaleWithTemperature(t *testing.T) {
	header := make([]byte, 32)

	hot := newTestVerifier(t, 50.0).GenerateProof(header)
	norm := newTestVerifier(t, 40.0).GenerateProof(header)
	cold := newTestVerifier(t, 25.0).GenerateProof(header)

	if hot.ExpectedCycles <= norm.ExpectedCycles {
		t.Errorf("hot expected cycles %d should exceed normal %d", hot.ExpectedCycles, norm.ExpectedCycles)
	}
	if cold.ExpectedCycles >= norm.ExpectedCycles {
		t.Errorf("cold expected cycles %d should be below normal %d", cold.ExpectedCycles, norm.ExpectedCycles)
	}
}

func TestEncodeProofDeterministic(t *testing.T) {
	p := Proof{
		CycleCount:     123456,
		ExpectedCycles: 3200,
		FrequencyMHz:   1987,
		TempC:          41.37,
	}
	a := encodeProof(p)
	b := encodeProof(p)
	if a != b {
		t.Errorf("encodeProof not deterministic: %d != %d", a, b)
	}

	p.TempC = 41.38
	if c := encodeProof(p); c == a {
		t.Error("distinct temperature should change encoded proof")
	}
}

func TestValidateAcceptsOwnProof(t *testing.T) {
	// step 100 keeps the measured frequency at a deterministic 0 MHz,
	// so a wide tolerance band is needed for the frequency check to
	// pass while the regenerated encoding stays byte-identical.
	v := NewVerifier(zaptest.NewLogger(t), &stepCounter{step: 100}, fixedTemp(38.0), 2000, 100.0)
	header := make([]byte, 80)

	proof := v.GenerateProof(header[:len(header)-8])
	if !v.Validate(proof.Encoded, header) {
		t.Error("freshly generated proof should validate")
	}
}

func TestValidateRejectsFrequencyOutOfBand(t *testing.T) {
	v := NewVerifier(zaptest.NewLogger(t), &stepCounter{step: 100}, fixedTemp(38.0), 2000, 5.0)
	header := make([]byte, 80)

	proof := v.GenerateProof(header[:len(header)-8])
	if v.Validate(proof.Encoded, header) {
		t.Error("proof measured far below base frequency should be rejected")
	}
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		claimed  uint64
		expected uint64
		pct      float64
		want     bool
	}{
		{100, 100, 5.0, true},
		{105, 100, 5.0, true},
		{95, 100, 5.0, true},
		{106, 100, 5.0, false},
		{94, 100, 5.0, false},
		{0, 0, 5.0, true},
		{1, 0, 5.0, false},
	}
	for _, tt := range tests {
		if got := withinTolerance(tt.claimed, tt.expected, tt.pct); got != tt.want {
			t.Errorf("withinTolerance(%d, %d, %.1f) = %t, want %t",
				tt.claimed, tt.expected, tt.pct, got, tt.want)
		}
	}
}

func TestFrequencyInBand(t *testing.T) {
	v := NewVerifier(zaptest.NewLogger(t), newClockCounter(), fixedTemp(38.0), 2000, 5.0)
	tests := []struct {
		freq uint64
		want bool
	}{
		{2000, true},
		{2100, true},
		{1900, true},
		{2101, false},
		{1899, false},
		{0, false},
	}
	for _, tt := range tests {
		if got := v.frequencyInBand(tt.freq); got != tt.want {
			t.Errorf("frequencyInBand(%d) = %t, want %t", tt.freq, got, tt.want)
		}
	}
}

func TestDetectCheatingNeedsSamples(t *testing.T) {
	v := newTestVerifier(t, 38.0)
	header := make([]byte, 32)
	for i := 0; i < minCheatSamples-1; i++ {
		v.GenerateProof(header)
	}
	if got := v.DetectCheating(2.0); got != nil {
		t.Errorf("DetectCheating with %d samples = %v, want nil", minCheatSamples-1, got)
	}
}

func TestDetectCheatingUniformTemps(t *testing.T) {
	v := newTestVerifier(t, 38.0)
	header := make([]byte, 32)
	for i := 0; i < 20; i++ {
		v.GenerateProof(header)
	}
	if got := v.DetectCheating(2.0); got != nil {
		t.Errorf("uniform temperatures should yield no outliers, got %v", got)
	}
}

func TestDetectCheatingFlagsOutlier(t *testing.T) {
	temp := 38.0
	v := NewVerifier(zaptest.NewLogger(t), newClockCounter(), func() float64 { return temp }, 2000, 5.0)
	header := make([]byte, 32)

	for i := 0; i < 19; i++ {
		v.GenerateProof(header)
	}
	temp = 80.0
	v.GenerateProof(header)

	outliers := v.DetectCheating(2.0)
	if len(outliers) != 1 || outliers[0] != 19 {
		t.Errorf("outliers = %v, want [19]", outliers)
	}

	if got := v.DetectCheating(10.0); len(got) != 0 {
		t.Errorf("loose threshold should flag nothing, got %v", got)
	}
}

func TestStats(t *testing.T) {
	temp := 36.0
	v := NewVerifier(zaptest.NewLogger(t), newClockCounter(), func() float64 { return temp }, 2000, 5.0)
	header := make([]byte, 32)

	if s := v.Stats(); s.Samples != 0 {
		t.Errorf("empty stats samples = %d, want 0", s.Samples)
	}

	v.GenerateProof(header)
	temp = 40.0
	v.GenerateProof(header)

	s := v.Stats()
	if s.Samples != 2 {
		t.Errorf("samples = %d, want 2", s.Samples)
	}
	if s.MinTempC != 36.0 || s.MaxTempC != 40.0 {
		t.Errorf("min/max = %.1f/%.1f, want 36.0/40.0", s.MinTempC, s.MaxTempC)
	}
	if math.Abs(s.AvgTempC-38.0) > 1e-9 {
		t.Errorf("avg temp = %.2f, want 38.0", s.AvgTempC)
	}
	if s.AvgFreqMHz <= 0 {
		t.Error("average frequency should be positive")
	}
}

func TestClockCounterMonotonic(t *testing.T) {
	c := newClockCounter()
	a := c.ReadCycles()
	b := c.ReadCycles()
	if b < a {
		t.Errorf("clock counter went backwards: %d then %d", a, b)
	}
	if c.Supported() {
		t.Error("clock counter should report unsupported")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
