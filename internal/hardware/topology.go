package hardware

import (
	"fmt"
	"sort"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"
)

// CoreTopology describes the heterogeneous core arrangement. Detected
// once at startup and immutable thereafter.
type CoreTopology struct {
	Total     int
	BigIDs    []int
	LittleIDs []int
}

// BigCount returns the number of performance cores
func (t CoreTopology) BigCount() int { return len(t.BigIDs) }

// LittleCount returns the number of efficiency cores
func (t CoreTopology) LittleCount() int { return len(t.LittleIDs) }

// DetectTopology discovers the CPU core layout. big/LITTLE clusters are
// discriminated by per-core maximum frequency where the platform exposes
// it; otherwise the lower half of core indices is treated as little.
func DetectTopology(logger *zap.Logger, source SensorSource) (CoreTopology, error) {
	if source == nil {
		source = ReadSysfsInt
	}

	total, err := cpu.Counts(true)
	if err != nil || total <= 0 {
		// ghw as the secondary source before giving up.
		if info, ghwErr := ghw.CPU(); ghwErr == nil && info.TotalThreads > 0 {
			total = int(info.TotalThreads)
		} else {
			return CoreTopology{}, fmt.Errorf("failed to detect core count: %w", err)
		}
	}

	topo := CoreTopology{Total: total}

	if big, little, ok := splitByMaxFrequency(total, source); ok {
		topo.BigIDs, topo.LittleIDs = big, little
		logger.Info("Detected heterogeneous core topology",
			zap.Int("total", total),
			zap.Int("big", len(big)),
			zap.Int("little", len(little)),
		)
		return topo, nil
	}

	// Lower half little, upper half big.
	half := total / 2
	for i := 0; i < half; i++ {
		topo.LittleIDs = append(topo.LittleIDs, i)
	}
	for i := half; i < total; i++ {
		topo.BigIDs = append(topo.BigIDs, i)
	}

	logger.Debug("Core clusters not discriminable, using index split",
		zap.Int("total", total),
		zap.Int("big", len(topo.BigIDs)),
		zap.Int("little", len(topo.LittleIDs)),
	)
	return topo, nil
}

// splitByMaxFrequency groups cores by cpuinfo_max_freq. Cores at the
// highest frequency tier are big; everything slower is little.
func splitByMaxFrequency(total int, source SensorSource) (big, little []int, ok bool) {
	freqs := make(map[int]int64, total)
	var maxFreq int64

	for i := 0; i < total; i++ {
		path := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cpufreq/cpuinfo_max_freq", i)
		freq, readable := source(path)
		if !readable {
			return nil, nil, false
		}
		freqs[i] = freq
		if freq > maxFreq {
			maxFreq = freq
		}
	}

	for i := 0; i < total; i++ {
		if freqs[i] == maxFreq {
			big = append(big, i)
		} else {
			little = append(little, i)
		}
	}

	// A uniform cluster means the split carries no information.
	if len(little) == 0 {
		return nil, nil, false
	}

	sort.Ints(big)
	sort.Ints(little)
	return big, little, true
}
