package commands

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shellmining/mobilex/internal/hardware"
	"github.com/shellmining/mobilex/internal/mining"
	"github.com/shellmining/mobilex/internal/npu"
	"github.com/shellmining/mobilex/internal/randomx"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run a hash throughput benchmark",
	Long:  "Run the full hash pipeline on synthetic headers and report total throughput, time spent in the inner hash, and neural op statistics.",
	RunE:  runBenchmark,
}

var (
	benchDuration    time.Duration
	benchWorkers     int
	benchCacheSizeMB int
)

func init() {
	benchmarkCmd.Flags().DurationVar(&benchDuration, "duration", 10*time.Second, "Benchmark duration")
	benchmarkCmd.Flags().IntVar(&benchWorkers, "workers", runtime.NumCPU(), "Number of concurrent workers")
	benchmarkCmd.Flags().IntVar(&benchCacheSizeMB, "cache-mb", 16, "Cache size in MiB")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()

	features := hardware.DetectFeatures(logger, runtime.NumCPU())

	fmt.Println("Starting MobileX hash benchmark")
	fmt.Printf("Duration: %s, Workers: %d, Cache: %s, NEON: %t\n\n",
		benchDuration, benchWorkers, humanize.IBytes(uint64(benchCacheSizeMB)*1024*1024), features.HasNEON)

	cache, err := randomx.NewCache(logger, []byte("benchmark seed"), benchCacheSizeMB*1024*1024)
	if err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}
	npuEngine := npu.NewEngine(logger, nil)
	defer npuEngine.Close()

	var (
		totalHashes uint64
		innerNanos  int64
		wg          sync.WaitGroup
	)
	deadline := time.Now().Add(benchDuration)

	for w := 0; w < benchWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			hasher := mining.NewHasher(cache, npuEngine, features.HasNEON, mining.DefaultNPUInterval)
			header := make([]byte, 80)
			binary.LittleEndian.PutUint32(header, uint32(worker))

			var nonce uint64
			for time.Now().Before(deadline) {
				binary.LittleEndian.PutUint64(header[8:], nonce)
				_, inner := hasher.ComputeTimed(header)
				atomic.AddUint64(&totalHashes, 1)
				atomic.AddInt64(&innerNanos, inner)
				nonce++
			}
		}(w)
	}

	start := time.Now()
	wg.Wait()
	elapsed := time.Since(start).Seconds()

	hashes := atomic.LoadUint64(&totalHashes)
	rate := float64(hashes) / elapsed
	npuMetrics := npuEngine.Metrics()

	fmt.Println("=== Results ===")
	fmt.Printf("Total hashes:     %s\n", humanize.Comma(int64(hashes)))
	fmt.Printf("Hash rate:        %.2f H/s\n", rate)
	fmt.Printf("Inner hash time:  %s\n", time.Duration(atomic.LoadInt64(&innerNanos)))
	fmt.Printf("NPU ops:          %s (avg %.3f ms)\n", humanize.Comma(int64(npuMetrics.TotalOps)), npuMetrics.AvgLatencyMs)
	return nil
}
