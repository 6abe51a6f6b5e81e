// The memory controller is the single writer of the shared eviction
// watermark. It samples the process heap on a fixed tick and maps usage onto
// an eviction lag: how far behind wall clock the watermark is allowed to
// trail. Relaxed memory keeps the lag at its configured maximum, pressure
// shrinks it step by step, and critical pressure drops it to zero so caches
// evict everything not touched in the in-flight epoch. The watermark itself
// only ever moves forward; the lag is the knob.

package memory

import (
	"context"
	"flag"
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maurofama99/risingwave/pkg/epoch"
	"github.com/maurofama99/risingwave/pkg/utils"
)

var (
	budgetBytesFlag     = flag.Uint64("memory_budget_bytes", 1<<30, "Heap budget the controller steers towards.")
	tickIntervalFlag    = flag.Duration("memory_tick_interval", time.Second, "How often the controller samples the heap.")
	gracefulRatioFlag   = flag.Float64("memory_graceful_ratio", 0.7, "Budget fraction above which the eviction lag starts shrinking.")
	aggressiveRatioFlag = flag.Float64("memory_aggressive_ratio", 0.9, "Budget fraction above which the eviction lag drops to zero.")
	maxEvictionLagFlag  = flag.Duration("max_eviction_lag", time.Minute, "Watermark lag behind wall clock under relaxed memory.")
	evictionLagStepFlag = flag.Duration("eviction_lag_step", 5*time.Second, "Lag reduction per tick under graceful pressure.")
)

var (
	heapBytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memory_controller_heap_bytes",
		Help: "Process heap bytes sampled by the memory controller",
	})
	evictionLagGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memory_controller_eviction_lag_seconds",
		Help: "Current watermark lag behind wall clock",
	})
	watermarkTimeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memory_controller_watermark_time_ms",
		Help: "Physical time in milliseconds of the shared eviction watermark",
	})
)

// pressureTier classifies sampled usage against the budget.
type pressureTier int

const (
	tierRelaxed pressureTier = iota
	tierGraceful
	tierAggressive
)

func (t pressureTier) String() string {
	switch t {
	case tierRelaxed:
		return "relaxed"
	case tierGraceful:
		return "graceful"
	case tierAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// Controller advances the shared eviction watermark according to memory
// pressure. It is the watermark's only writer besides explicit console
// overrides.
type Controller struct {
	watermark  *epoch.Watermark
	budget     uint64
	interval   time.Duration
	graceful   float64
	aggressive float64
	maxLag     time.Duration
	lagStep    time.Duration

	lag  time.Duration
	tier pressureTier

	// Swapped out by tests.
	sampleHeap func() uint64
	now        func() time.Time
}

// NewController builds a controller over the shared watermark from the
// memory flags. Must run after flag.Parse.
func NewController(watermark *epoch.Watermark) *Controller {
	c := &Controller{
		watermark:  watermark,
		budget:     *budgetBytesFlag,
		interval:   *tickIntervalFlag,
		graceful:   *gracefulRatioFlag,
		aggressive: *aggressiveRatioFlag,
		maxLag:     *maxEvictionLagFlag,
		lagStep:    *evictionLagStepFlag,
		sampleHeap: heapInUse,
		now:        time.Now,
	}
	c.lag = c.maxLag
	if c.budget == 0 {
		utils.RaiseInvariant("memory", "zero_budget",
			"Got a zero memory budget, falling back to the default.", "default", uint64(1<<30))
		c.budget = 1 << 30
	}
	if c.aggressive < c.graceful {
		utils.RaiseInvariant("memory", "inverted_pressure_ratios",
			"The aggressive ratio must not be below the graceful ratio.",
			"graceful", c.graceful, "aggressive", c.aggressive)
		c.aggressive = c.graceful
	}
	return c
}

func heapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// classify maps sampled heap bytes onto a pressure tier.
func (c *Controller) classify(usage uint64) pressureTier {
	switch {
	case float64(usage) >= c.aggressive*float64(c.budget):
		return tierAggressive
	case float64(usage) >= c.graceful*float64(c.budget):
		return tierGraceful
	default:
		return tierRelaxed
	}
}

// tick samples the heap, adjusts the lag and pushes the watermark forward to
// now minus lag. The watermark ignores targets behind its current value, so
// a growing lag never moves it backwards.
func (c *Controller) tick(now time.Time) {
	usage := c.sampleHeap()
	tier := c.classify(usage)
	switch tier {
	case tierRelaxed:
		c.lag = c.maxLag
	case tierGraceful:
		c.lag = max(0, c.lag-c.lagStep)
	case tierAggressive:
		c.lag = 0
	}
	if tier != c.tier {
		slog.Info("Memory pressure tier changed.",
			"from", c.tier.String(), "to", tier.String(), "heapBytes", usage, "lag", c.lag)
		c.tier = tier
	}

	c.watermark.Advance(epoch.FromTime(now.Add(-c.lag)))

	heapBytesGauge.Set(float64(usage))
	evictionLagGauge.Set(c.lag.Seconds())
	watermarkTimeGauge.Set(float64(c.watermark.Load().PhysicalMillis()))
}

// Run drives the controller until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	slog.Info("Memory controller started.",
		"budgetBytes", c.budget, "interval", c.interval, "maxLag", c.maxLag)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Memory controller stopped.")
			return
		case <-ticker.C:
			c.tick(c.now())
		}
	}
}
