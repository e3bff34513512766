package mining

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
	"time"

	"github.com/shellmining/mobilex/internal/npu"
	"github.com/shellmining/mobilex/internal/randomx"
)

// DefaultNPUInterval is the hash cadence of the neural step.
const DefaultNPUInterval = 150

const (
	mixSeed      = 0x12345678
	npuStateSize = 2048
	npuSkipMod   = 1000
)

// VectorHash folds data into 32 bytes over 16-byte lanes. Full chunks
// alternate between the two result halves; trailing bytes fold at
// their index mod 32. On NEON hardware the fold maps to two quad
// registers; this scalar form is byte-identical.
func VectorHash(data []byte) [32]byte {
	var result [32]byte

	full := len(data) / 16
	for i := 0; i < full; i++ {
		lane := (i % 2) * 16
		chunk := data[i*16 : i*16+16]
		for j := 0; j < 16; j++ {
			result[lane+j] ^= chunk[j]
		}
	}
	for j := full * 16; j < len(data); j++ {
		result[j%32] ^= data[j]
	}
	return result
}

// MobileMix diffuses a 32-byte digest through word-level rotate and
// shift mixing, chains each word against a rotating core state, and
// finalizes with SHA-256.
func MobileMix(v [32]byte) [32]byte {
	var words [8]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(v[i*4 : i*4+4])
	}

	for i, w := range words {
		w = bits.RotateLeft32(w, 13)
		w ^= w >> 7
		w ^= w << 17
		words[i] = bits.ReverseBytes32(w)
	}

	core := uint32(mixSeed)
	for i := range words {
		words[i] ^= core
		core = bits.RotateLeft32(core, 1)
	}

	var out [32]byte
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], w)
	}
	return sha256.Sum256(out[:])
}

// Hasher computes the full mobile digest pipeline for one mining
// thread. Each thread owns a Hasher; the sequence of neural steps is
// deterministic given the initial counter.
type Hasher struct {
	vm          *randomx.VM
	npu         *npu.Engine
	useVector   bool
	npuInterval uint64
	counter     uint64
}

// NewHasher creates a hasher over a shared cache. useVector selects the
// lane-fold preprocess; interval controls the neural step cadence and
// defaults to DefaultNPUInterval when zero.
func NewHasher(cache *randomx.Cache, engine *npu.Engine, useVector bool, interval uint64) *Hasher {
	if interval == 0 {
		interval = DefaultNPUInterval
	}
	return &Hasher{
		vm:          randomx.NewVM(cache),
		npu:         engine,
		useVector:   useVector,
		npuInterval: interval,
	}
}

// Counter returns the current hash counter.
func (h *Hasher) Counter() uint64 { return h.counter }

// Compute runs one header through the pipeline and returns the 32-byte
// digest. The neural step fires when the pre-increment counter is a
// multiple of the interval; its output skips the counter forward.
func (h *Hasher) Compute(header []byte) [32]byte {
	digest, _ := h.ComputeTimed(header)
	return digest
}

// ComputeTimed is Compute plus the nanoseconds spent in the inner
// hash, letting callers attribute time across pipeline stages.
func (h *Hasher) ComputeTimed(header []byte) ([32]byte, int64) {
	var pre []byte
	if h.useVector {
		p := VectorHash(header)
		pre = p[:]
	} else {
		pre = header
	}

	innerStart := time.Now()
	inner := h.vm.Hash(pre)
	innerNanos := time.Since(innerStart).Nanoseconds()

	digest := MobileMix(inner)

	if h.counter%h.npuInterval == 0 {
		state := deriveNPUState(h.counter)
		out := h.npu.ProcessState(state)
		skip := binary.LittleEndian.Uint32(out[:4]) % npuSkipMod
		h.counter += uint64(skip)
	}
	h.counter++

	return digest, innerNanos
}

// deriveNPUState builds the 2048-byte neural input for a counter value:
// the counter in the first 8 bytes, then the SHA-256 of those bytes
// repeated to fill.
func deriveNPUState(counter uint64) []byte {
	state := make([]byte, npuStateSize)
	binary.LittleEndian.PutUint64(state[:8], counter)

	fill := sha256.Sum256(state[:8])
	for off := 8; off < npuStateSize; off += len(fill) {
		copy(state[off:], fill[:])
	}
	return state
}
