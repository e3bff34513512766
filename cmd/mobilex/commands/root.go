package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mobilex",
	Short: "ARM-optimized mobile proof-of-work mining engine",
	Long: `MobileX is a proof-of-work mining engine built for ARM64 devices. It
combines a memory-hard inner hash with mobile-specific mixing, neural
accelerator steps, and thermal compliance proofs, while a power policy
keeps mining within battery and temperature limits.`,
	Version: Version,
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(benchmarkCmd)
}
