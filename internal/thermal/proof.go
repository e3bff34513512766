package thermal

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

const (
	// workloadIters is the number of chained hash rounds in the
	// verification workload.
	workloadIters = 100

	// workloadDelay paces the workload at roughly half speed so the
	// cycle measurement spans a meaningful wall-clock interval.
	workloadDelay = 100 * time.Microsecond

	maxProofHistory = 1000

	minCheatSamples = 10
)

// TempFunc supplies the temperature used when generating a proof.
type TempFunc func() float64

// Proof captures one measured verification run. The Encoded value is
// what travels with a share; the remaining fields support validation
// and statistics.
type Proof struct {
	CycleCount     uint64
	ExpectedCycles uint64
	FrequencyMHz   uint64
	TempC          float64
	TimestampMs    int64
	WorkHash       [32]byte
	Encoded        uint64
}

// Verifier generates and checks thermal compliance proofs. A proof
// binds a measured cycle count for a fixed workload to the temperature
// at which it ran; a device running hotter or colder than it claims
// produces cycle counts outside the accepted tolerance.
type Verifier struct {
	logger  *zap.Logger
	counter CycleCounter
	temp    TempFunc

	baseFreqMHz  uint64
	tolerancePct float64

	mu      sync.Mutex
	history []Proof
}

// NewVerifier creates a thermal proof verifier. baseFreqMHz is the
// nominal clock used when deriving expected cycle counts and
// tolerancePct the accepted deviation during validation.
func NewVerifier(logger *zap.Logger, counter CycleCounter, temp TempFunc, baseFreqMHz uint64, tolerancePct float64) *Verifier {
	if baseFreqMHz == 0 {
		baseFreqMHz = 2000
	}
	if tolerancePct <= 0 {
		tolerancePct = 5.0
	}
	return &Verifier{
		logger:       logger,
		counter:      counter,
		temp:         temp,
		baseFreqMHz:  baseFreqMHz,
		tolerancePct: tolerancePct,
	}
}

// GenerateProof runs the verification workload against the leading
// bytes of header and returns the resulting proof. The proof is
// recorded in the bounded history for cheat analysis.
func (v *Verifier) GenerateProof(header []byte) Proof {
	workload := header
	if len(workload) > 32 {
		workload = workload[:32]
	}

	startCycles := v.counter.ReadCycles()
	startTime := time.Now()

	time.Sleep(workloadDelay)

	hash := sha256.Sum256(workload)
	for i := 1; i < workloadIters; i++ {
		hash = sha256.Sum256(hash[:])
	}

	cycleDelta := v.counter.ReadCycles() - startCycles
	elapsed := time.Since(startTime)

	tempC := v.temp()

	var freqMHz uint64
	if secs := elapsed.Seconds(); secs > 0 {
		freqMHz = uint64(float64(cycleDelta) / secs / 1e6)
	}

	expected := uint64(float64(len(workload)*workloadIters) * thermalMultiplier(tempC))

	proof := Proof{
		CycleCount:     cycleDelta,
		ExpectedCycles: expected,
		FrequencyMHz:   freqMHz,
		TempC:          tempC,
		TimestampMs:    startTime.UnixMilli(),
		WorkHash:       hash,
	}
	proof.Encoded = encodeProof(proof)

	v.mu.Lock()
	v.history = append(v.history, proof)
	if over := len(v.history) - maxProofHistory; over > 0 {
		v.history = v.history[over:]
	}
	v.mu.Unlock()

	if !v.frequencyInBand(freqMHz) {
		v.logger.Warn("Measured frequency outside nominal band",
			zap.Uint64("freq_mhz", freqMHz),
			zap.Uint64("base_freq_mhz", v.baseFreqMHz),
			zap.Float64("tolerance_pct", v.tolerancePct),
		)
	}
	v.logger.Debug("Generated thermal proof",
		zap.Uint64("cycles", cycleDelta),
		zap.Uint64("expected_cycles", expected),
		zap.Uint64("freq_mhz", freqMHz),
		zap.Float64("temp_c", tempC),
	)
	return proof
}

// Validate regenerates a proof for the header's work portion and
// accepts the claimed encoded value if it falls within the configured
// tolerance of the regenerated encoding. Headers carrying a trailing
// 8-byte proof slot have it stripped before re-measurement. A proof
// whose measured frequency falls outside the band around the nominal
// clock is rejected regardless of the encoded value.
func (v *Verifier) Validate(claimed uint64, header []byte) bool {
	work := header
	if len(work) >= 8 {
		work = work[:len(work)-8]
	}

	fresh := v.GenerateProof(work)

	if !v.frequencyInBand(fresh.FrequencyMHz) {
		v.logger.Warn("Thermal proof rejected, frequency out of band",
			zap.Uint64("freq_mhz", fresh.FrequencyMHz),
			zap.Uint64("base_freq_mhz", v.baseFreqMHz),
			zap.Float64("tolerance_pct", v.tolerancePct),
		)
		return false
	}

	ok := withinTolerance(claimed, fresh.Encoded, v.tolerancePct)
	if !ok {
		v.logger.Warn("Thermal proof rejected",
			zap.Uint64("claimed", claimed),
			zap.Uint64("expected", fresh.Encoded),
			zap.Float64("tolerance_pct", v.tolerancePct),
		)
	}
	return ok
}

// withinTolerance reports whether claimed lies inside the window
// expected ± expected*pct/100.
func withinTolerance(claimed, expected uint64, pct float64) bool {
	return math.Abs(float64(claimed)-float64(expected)) <= float64(expected)*pct/100
}

// frequencyInBand reports whether a measured clock is within the
// tolerance band around the nominal base frequency.
func (v *Verifier) frequencyInBand(freqMHz uint64) bool {
	return math.Abs(float64(freqMHz)-float64(v.baseFreqMHz)) <= float64(v.baseFreqMHz)*v.tolerancePct/100
}

// DetectCheating flags proofs whose temperature deviates from the
// population by more than threshold standard deviations. Fewer than
// ten recorded proofs yields no verdict.
func (v *Verifier) DetectCheating(threshold float64) []int {
	if threshold <= 0 {
		threshold = 2.0
	}

	v.mu.Lock()
	temps := make([]float64, len(v.history))
	for i, p := range v.history {
		temps[i] = p.TempC
	}
	v.mu.Unlock()

	if len(temps) < minCheatSamples {
		return nil
	}

	mean := stat.Mean(temps, nil)
	n := float64(len(temps))
	popStd := math.Sqrt(stat.Variance(temps, nil) * (n - 1) / n)
	if popStd == 0 {
		return nil
	}

	var outliers []int
	for i, t := range temps {
		if math.Abs(t-mean)/popStd > threshold {
			outliers = append(outliers, i)
		}
	}

	if len(outliers) > 0 {
		v.logger.Warn("Thermal cheat indicators detected",
			zap.Int("outliers", len(outliers)),
			zap.Int("samples", len(temps)),
			zap.Float64("threshold", threshold),
		)
	}
	return outliers
}

// Statistics summarizes the recorded proof history.
type Statistics struct {
	Samples    int
	AvgTempC   float64
	MinTempC   float64
	MaxTempC   float64
	StdDevTemp float64
	AvgFreqMHz float64
}

// Stats computes aggregate statistics over the proof history.
func (v *Verifier) Stats() Statistics {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Statistics{Samples: len(v.history)}
	if s.Samples == 0 {
		return s
	}

	temps := make([]float64, len(v.history))
	var freqSum float64
	s.MinTempC = v.history[0].TempC
	s.MaxTempC = v.history[0].TempC
	for i, p := range v.history {
		temps[i] = p.TempC
		freqSum += float64(p.FrequencyMHz)
		if p.TempC < s.MinTempC {
			s.MinTempC = p.TempC
		}
		if p.TempC > s.MaxTempC {
			s.MaxTempC = p.TempC
		}
	}

	s.AvgTempC = stat.Mean(temps, nil)
	n := float64(len(temps))
	s.StdDevTemp = math.Sqrt(stat.Variance(temps, nil) * (n - 1) / n)
	s.AvgFreqMHz = freqSum / n
	return s
}

// HistoryLen reports how many proofs are currently recorded.
func (v *Verifier) HistoryLen() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.history)
}

// thermalMultiplier scales expected work by operating temperature.
// Hot silicon is allowed more cycles, cold silicon slightly fewer.
func thermalMultiplier(tempC float64) float64 {
	switch {
	case tempC > 45:
		return 1.0 + (tempC-45)*0.02
	case tempC < 35:
		return 1.0 - (35-tempC)*0.01
	default:
		return 1.0
	}
}

// encodeProof packs the measured quantities and hashes them into the
// compact 8-byte form carried alongside a share.
func encodeProof(p Proof) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], p.CycleCount)
	binary.LittleEndian.PutUint64(buf[8:16], p.ExpectedCycles)
	binary.LittleEndian.PutUint64(buf[16:24], p.FrequencyMHz)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(p.TempC*100))
	sum := sha256.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}
