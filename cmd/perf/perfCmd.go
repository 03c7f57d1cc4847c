package perf

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/lmstore/cmd/util"
	"github.com/ValentinKolb/lmstore/lib/common"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for the layer metadata store",
		Long: `Runs concurrent put and get load against the store and prints latency percentiles.
The test layers stay on disk, use a scratch root directory.`,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfLayerPrefix = "__perf"
	perfNumThreads  = 10
	perfKeySpread   = 100
	perfLayers      = 10
	perfDuration    = 5 * time.Second
	perfReadPercent = 80
	perfSkip        = make([]string, 0)

	log = logger.GetLogger(common.LoggerCmd)
)

func init() {
	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Tests to skip (comma separated - e.g. put,get)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for each test"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use per layer"))
	key = "layers"
	PerfCmd.Flags().Int(key, 10, util.WrapString("How many different layers to use"))
	key = "duration"
	PerfCmd.Flags().Duration(key, 5*time.Second, util.WrapString("How long each test runs"))
	key = "read-percent"
	PerfCmd.Flags().Int(key, 80, util.WrapString("Share of reads in the mixed test (0-100)"))
	key = "metrics"
	PerfCmd.Flags().Bool(key, false, util.WrapString("Print the store metrics in the prometheus format after the tests"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfKeySpread = viper.GetInt("keys")
	perfLayers = viper.GetInt("layers")
	perfDuration = viper.GetDuration("duration")
	perfReadPercent = viper.GetInt("read-percent")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumThreads <= 0 || perfKeySpread <= 0 || perfLayers <= 0 {
		return fmt.Errorf("threads, keys and layers must be positive")
	}
	if perfReadPercent < 0 || perfReadPercent > 100 {
		return fmt.Errorf("read-percent must be between 0 and 100, got %d", perfReadPercent)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the layer metadata store")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	config := util.GetStoreConfig()
	fmt.Println(config.String())
	fmt.Printf("Threads: %d, Layers: %d, Keys: %d, Duration: %s\n", perfNumThreads, perfLayers, perfKeySpread, perfDuration)
	fmt.Println()

	ctx, stop := util.ShutdownContext()
	defer stop()

	return util.WithStore(func(s store.IStore) error {
		registry := metrics.NewRegistry()
		fmt.Println("starting tests...")

		runTest(ctx, registry, "put", func(r *rand.Rand) error {
			layer, key := randomEntry(r)
			return s.PutEntry(layer, key, fmt.Sprintf("value-%d", r.Int()))
		})

		runTest(ctx, registry, "get", func(r *rand.Rand) error {
			layer, key := randomEntry(r)
			_, _, err := s.GetEntry(layer, key)
			return err
		})

		runTest(ctx, registry, "put-same", func(r *rand.Rand) error {
			layer, key := randomEntry(r)
			return s.PutEntry(layer, key, "same")
		})

		runTest(ctx, registry, "mixed", func(r *rand.Rand) error {
			layer, key := randomEntry(r)
			if r.Intn(100) < perfReadPercent {
				_, _, err := s.GetEntry(layer, key)
				return err
			}
			return s.PutEntry(layer, key, fmt.Sprintf("value-%d", r.Int()))
		})

		runTest(ctx, registry, "flush", func(r *rand.Rand) error {
			layer, key := randomEntry(r)
			if err := s.PutEntry(layer, key, fmt.Sprintf("value-%d", r.Int())); err != nil {
				return err
			}
			return s.Flush()
		})

		stats := s.Stats()
		fmt.Println()
		fmt.Println("Store:")
		fmt.Printf("cached layers: %d, pending writes: %d, loads: %d, flush cycles: %d, commits: %d, failed writes: %d, cas retries: %d, evictions: %d\n",
			stats.CachedLayers, stats.PendingWrites, stats.Loads, stats.FlushCycles,
			stats.Commits, stats.FailedWrites, stats.CASRetries, stats.Evictions)

		if viper.GetBool("metrics") {
			if w, ok := s.(interface{ WritePrometheus(io.Writer) }); ok {
				fmt.Println()
				w.WritePrometheus(os.Stdout)
			}
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// randomEntry returns a random test layer and key
func randomEntry(r *rand.Rand) (string, string) {
	layer := fmt.Sprintf("%s:layer-%d", perfLayerPrefix, r.Intn(perfLayers))
	key := fmt.Sprintf("key-%d", r.Intn(perfKeySpread))
	return layer, key
}

// runTest runs op on perfNumThreads goroutines for perfDuration (or until ctx is done)
// and prints the latency of op
func runTest(ctx context.Context, registry metrics.Registry, test string, op func(r *rand.Rand) error) {
	if shouldSkip(test) {
		fmt.Printf("%-12sskipped\n", test)
		return
	}
	if ctx.Err() != nil {
		fmt.Printf("%-12scancelled\n", test)
		return
	}

	timer := metrics.GetOrRegisterTimer(test, registry)
	failures := metrics.GetOrRegisterCounter(test+".errors", registry)

	testCtx, cancel := context.WithTimeout(ctx, perfDuration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < perfNumThreads; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for testCtx.Err() == nil {
				opStart := time.Now()
				if err := op(r); err != nil {
					failures.Inc(1)
					log.Warningf("(%s) - error: %v", test, err)
				}
				timer.UpdateSince(opStart)
			}
		}(start.UnixNano() + int64(i))
	}
	wg.Wait()

	printResult(test, timer, failures.Count(), time.Since(start))
}

// printResult prints the result of a test in a formatted way
func printResult(test string, timer metrics.Timer, failures int64, elapsed time.Duration) {
	if timer.Count() == 0 {
		fmt.Printf("%-12sno operations\n", test)
		return
	}

	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	opsPerSec := float64(timer.Count()) / elapsed.Seconds()

	fmt.Printf("%-12s%10d ops\t%.0f ops/sec\tmean %s\tp50 %s\tp95 %s\tp99 %s\tmax %s\terrors %d\n",
		test, timer.Count(), opsPerSec,
		time.Duration(timer.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		time.Duration(timer.Max()), failures)
}
