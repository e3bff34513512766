package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shellmining/mobilex/internal/hardware"
	"github.com/shellmining/mobilex/internal/power"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device mining readiness",
	Long:  `Probe the device and display core topology, CPU features, battery and thermal state, and the intensity the power policy would choose.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()

	probe := hardware.NewProbe(logger)
	topo, err := hardware.DetectTopology(logger, nil)
	if err != nil {
		return fmt.Errorf("topology detection failed: %w", err)
	}
	features := hardware.DetectFeatures(logger, topo.Total)

	snap := power.Snapshot{
		BatteryPct: probe.BatteryPercent(),
		Charging:   probe.Charging(),
		TempC:      probe.SoCTempC(),
	}
	decided := power.Decide(snap)

	fmt.Println("=== MobileX Device Status ===")
	fmt.Println()
	fmt.Println("Hardware:")
	fmt.Printf("  Cores:          %d (%d big / %d little)\n", topo.Total, topo.BigCount(), topo.LittleCount())
	fmt.Printf("  Features:       %s\n", featureList(features))
	fmt.Printf("  Cache line:     %s\n", humanize.IBytes(uint64(features.CacheLineSize)))
	fmt.Printf("  L2 cache:       %s\n", humanize.IBytes(uint64(features.L2CacheSize)))
	fmt.Println()
	fmt.Println("Power:")
	fmt.Printf("  Battery:        %d%%\n", snap.BatteryPct)
	fmt.Printf("  Charging:       %t\n", snap.Charging)
	fmt.Printf("  SoC temp:       %.1fC\n", snap.TempC)
	fmt.Printf("  Battery temp:   %.1fC\n", probe.BatteryTempC())
	fmt.Println()
	fmt.Println("Policy:")
	fmt.Printf("  Can mine:       %t\n", power.CanMine(snap))
	fmt.Printf("  Intensity:      %s\n", decided)
	big, little := decided.Cores()
	fmt.Printf("  Cores to use:   %d big / %d little\n", big, little)

	return nil
}

func featureList(f hardware.ArmFeatures) string {
	var have []string
	for _, fb := range []struct {
		name string
		ok   bool
	}{
		{"NEON", f.HasNEON},
		{"SVE", f.HasSVE},
		{"SVE2", f.HasSVE2},
		{"DotProd", f.HasDotProduct},
		{"FP16", f.HasFP16},
		{"Atomics", f.HasAtomics},
		{"AES", f.HasAES},
		{"SHA256", f.HasSHA256},
	} {
		if fb.ok {
			have = append(have, fb.name)
		}
	}
	if len(have) == 0 {
		return "none (scalar paths)"
	}
	return strings.Join(have, ", ")
}
