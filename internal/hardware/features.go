package hardware

import (
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"go.uber.org/zap"
)

// ArmFeatures captures the ARM ISA extensions and cache geometry the
// hash pipeline cares about. Immutable after detection.
type ArmFeatures struct {
	HasNEON       bool
	HasSVE        bool
	HasSVE2       bool
	HasDotProduct bool
	HasFP16       bool
	HasAtomics    bool
	HasAES        bool
	HasSHA256     bool

	CacheLineSize int
	L1CacheSize   int
	L2CacheSize   int
	L3CacheSize   int
}

// DetectFeatures probes the CPU for ARM feature bits and cache sizes.
// On non-ARM hosts the vector bits read false and the scalar paths with
// identical semantics are used instead.
func DetectFeatures(logger *zap.Logger, coreCount int) ArmFeatures {
	f := ArmFeatures{
		HasNEON:       cpuid.CPU.Supports(cpuid.ASIMD),
		HasSVE:        cpuid.CPU.Supports(cpuid.SVE),
		HasDotProduct: cpuid.CPU.Supports(cpuid.ASIMDDP),
		HasFP16:       cpuid.CPU.Supports(cpuid.FPHP),
		HasAtomics:    cpuid.CPU.Supports(cpuid.ATOMICS),
		HasAES:        cpuid.CPU.Supports(cpuid.AESARM),
		HasSHA256:     cpuid.CPU.Supports(cpuid.SHA2),
	}

	// SVE2 is not surfaced as a distinct feature bit everywhere; fall
	// back to the kernel's cpuinfo flags.
	if f.HasSVE {
		f.HasSVE2 = cpuinfoHasFlag("sve2")
	}

	f.CacheLineSize = cpuid.CPU.CacheLine
	f.L1CacheSize = cpuid.CPU.Cache.L1D
	f.L2CacheSize = cpuid.CPU.Cache.L2
	f.L3CacheSize = cpuid.CPU.Cache.L3

	applyCacheDefaults(&f, coreCount)

	logger.Debug("Detected CPU features",
		zap.Bool("neon", f.HasNEON),
		zap.Bool("sve", f.HasSVE),
		zap.Bool("sve2", f.HasSVE2),
		zap.Bool("dotprod", f.HasDotProduct),
		zap.Bool("aes", f.HasAES),
		zap.Bool("sha256", f.HasSHA256),
		zap.Int("l2_cache", f.L2CacheSize),
	)
	return f
}

// applyCacheDefaults sets a 64-byte cache line when none was detected.
// When either the L1 or the L2 size is unknown, it replaces the L1, L2
// and L3 sizes with a typical mobile SoC profile keyed by core count.
func applyCacheDefaults(f *ArmFeatures, coreCount int) {
	if f.CacheLineSize <= 0 {
		f.CacheLineSize = 64
	}
	if f.L1CacheSize > 0 && f.L2CacheSize > 0 {
		return
	}

	switch {
	case coreCount >= 8:
		// Flagship SoC tier.
		f.L1CacheSize = 64 * 1024
		f.L2CacheSize = 512 * 1024
		f.L3CacheSize = 3 * 1024 * 1024
	case coreCount >= 4:
		f.L1CacheSize = 32 * 1024
		f.L2CacheSize = 256 * 1024
		f.L3CacheSize = 1024 * 1024
	default:
		f.L1CacheSize = 32 * 1024
		f.L2CacheSize = 128 * 1024
		f.L3CacheSize = 0
	}
}

func cpuinfoHasFlag(flag string) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	content, ok := ReadSysfsString("/proc/cpuinfo")
	if !ok {
		return false
	}
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "Features") && !strings.HasPrefix(line, "flags") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if field == flag {
				return true
			}
		}
	}
	return false
}
