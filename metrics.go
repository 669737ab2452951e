package rewardboard

import (
	"expvar"
	"runtime"
	"runtime/metrics"
	"strconv"
)

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

const (
	fetchOutcomeOK      = "ok"
	fetchOutcomeError   = "error"
	fetchOutcomeMessage = "message"
)

var (
	appResponseCounts      = expvar.NewMap("app_http_responses_total")
	externalResponseCounts = expvar.NewMap("external_http_responses_total")
	rewardsFetchCounts     = expvar.NewMap("rewards_fetch_total")
	priceFetchCounts       = expvar.NewMap("price_fetch_total")
	walletSummaryHits      = expvar.NewInt("wallet_summary_cache_hits")
	pageViews              = expvar.NewMap("page_views_total")

	knownRuntimeMetrics = buildRuntimeMetricSet()
)

func init() {
	expvar.Publish("process_mem_bytes", expvar.Func(func() any { return readProcessMemory() }))
	expvar.Publish("heap_inuse_bytes", expvar.Func(func() any { return readHeapInUse() }))
	expvar.Publish("runtime_heap_objects_bytes", expvar.Func(func() any { return readRuntimeHeapObjects() }))
}

func buildRuntimeMetricSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, sample := range metrics.All() {
		set[sample.Name] = struct{}{}
	}
	return set
}

func readProcessMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

func readHeapInUse() uint64 {
	if value, ok := readRuntimeUint64("/memory/classes/heap/used:bytes"); ok {
		return value
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapInuse
}

func readRuntimeHeapObjects() uint64 {
	if value, ok := readRuntimeUint64(heapObjectsMetric); ok {
		return value
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

func readRuntimeUint64(name string) (uint64, bool) {
	if _, ok := knownRuntimeMetrics[name]; !ok {
		return 0, false
	}

	samples := []metrics.Sample{{Name: name}}
	metrics.Read(samples)

	switch samples[0].Value.Kind() {
	case metrics.KindUint64:
		return samples[0].Value.Uint64(), true
	case metrics.KindFloat64:
		return uint64(samples[0].Value.Float64()), true
	default:
		return 0, false
	}
}

func incrementResponseCount(counter *expvar.Map, code int) {
	if counter == nil {
		return
	}
	counter.Add(strconv.Itoa(code), 1)
}

func incrementOutcome(counter *expvar.Map, chainID int64, outcome string) {
	if counter == nil {
		return
	}
	counter.Add(strconv.FormatInt(chainID, 10)+"/"+outcome, 1)
}
