package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo_LabelValues(t *testing.T) {
	info := NewInfo(1002, 7, "hash_agg")
	assert.Equal(t, []string{"1002", "7", "hash_agg"}, info.labels())
	assert.Equal(t, "table 1002 actor 7 (hash_agg)", info.String())
}

func TestInfo_GaugeRoundTrip(t *testing.T) {
	info := NewInfo(1, 2, "gauge_round_trip")
	gauge := info.MemoryUsageGauge()
	gauge.Set(4096)
	assert.Equal(t, float64(4096), GaugeValue(gauge))

	gauge.Set(0)
	assert.Zero(t, GaugeValue(gauge))
}

func TestInfo_DistinctLabelSetsAreIndependent(t *testing.T) {
	first := NewInfo(1, 1, "independent").MemoryUsageGauge()
	second := NewInfo(1, 2, "independent").MemoryUsageGauge()
	first.Set(100)
	second.Set(200)
	assert.Equal(t, float64(100), GaugeValue(first))
	assert.Equal(t, float64(200), GaugeValue(second))
}

func TestInfo_CounterAccumulates(t *testing.T) {
	counter := NewInfo(3, 3, "counter_accumulates").EvictedEntriesCounter()
	before := CounterValue(counter)
	counter.Add(5)
	counter.Inc()
	require.Equal(t, before+6, CounterValue(counter))
}
