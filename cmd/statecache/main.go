// Spins up the state cache soak binary: simulated operator partitions churn
// keyed state under the shared watermark while the memory controller, the
// Prometheus endpoint and the RESP console run alongside.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/maurofama99/risingwave/pkg/config"
	"github.com/maurofama99/risingwave/pkg/epoch"
	"github.com/maurofama99/risingwave/pkg/memory"
	"github.com/maurofama99/risingwave/pkg/port"
	"github.com/maurofama99/risingwave/pkg/state"
	"github.com/maurofama99/risingwave/pkg/utils"
)

var (
	printVersion    = flag.Bool("print_version", false, "Print the version and exit.")
	metricsAddress  = flag.String("metrics_address", ":9090", "The ip:port to serve Prometheus metrics on.")
	partitions      = flag.Int("partitions", 4, "Number of simulated operator partitions.")
	barrierInterval = flag.Duration("barrier_interval", 250*time.Millisecond, "How often each partition seals its epoch.")
	churnKeys       = flag.Int("churn_keys", 10_000, "Distinct keys each partition cycles through.")
)

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)
	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	slog.Info("Starting state cache.",
		"version", utils.Version, "commit", utils.Commit, "partitions", *partitions)
	watermark := epoch.NewWatermark(epoch.Now())
	store := state.NewMemStore()
	controller := memory.NewController(watermark)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		controller.Run(groupCtx)
		return nil
	})
	group.Go(func() error { return port.RunConsole(groupCtx, watermark) })
	group.Go(func() error { return runMetricsServer(groupCtx) })
	for i := 0; i < *partitions; i++ {
		group.Go(func() error { return runPartition(groupCtx, i, watermark, store) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("State cache stopped.", "err", err)
		os.Exit(1)
	}
}

// runMetricsServer serves the Prometheus scrape endpoint until ctx is cancelled.
func runMetricsServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: *metricsAddress, Handler: mux}

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	slog.Info("Metrics listening.", "address", *metricsAddress)
	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErrSignal:
		return fmt.Errorf("metrics server stopped unexpectedly: %w", err)
	}
}

// runPartition simulates one operator: it owns a state table, stamps writes
// with its current epoch, seals the epoch on the barrier ticker and evicts
// whatever the watermark has passed.
func runPartition(ctx context.Context, id int, watermark *epoch.Watermark, store state.Store) error {
	table := state.NewTable(uint32(id) /*tableID*/, uint32(id) /*actorID*/, fmt.Sprintf("demo-partition-%02d", id), watermark, store)
	defer table.Close()
	table.BeginEpoch(epoch.Now())

	rnd := rand.New(rand.NewSource(int64(id)))
	barriers := time.NewTicker(*barrierInterval)
	defer barriers.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-barriers.C:
			table.BeginEpoch(epoch.Now())
			table.Evict()
		default:
			if err := churnOnce(ctx, table, rnd); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("partition %d churn failed: %w", id, err)
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// churnOnce runs one random state operation: mostly writes, some reads and
// the occasional delete, over a bounded key space so keys get revisited.
func churnOnce(ctx context.Context, table *state.Table, rnd *rand.Rand) error {
	key := fmt.Sprintf("key-%06d", rnd.Intn(*churnKeys))
	switch {
	case rnd.Intn(16) == 0:
		return table.Delete(ctx, key)
	case rnd.Intn(4) == 0:
		if _, err := table.Get(ctx, key); err != nil && !errors.Is(err, state.ErrKeyNotFound) {
			return err
		}
		return nil
	default:
		payload := make([]byte, 64+rnd.Intn(192))
		rnd.Read(payload)
		return table.Put(ctx, key, payload)
	}
}
