package assetcache

import "github.com/prometheus/client_golang/prometheus"

// loadResult labels the outcome of a Load call for the load counter.
type loadResult string

const (
	loadResultHit   loadResult = "hit"
	loadResultMiss  loadResult = "miss"
	loadResultError loadResult = "error"
)

// reloadResult labels the outcome of a hot-reload attempt.
type reloadResult string

const (
	reloadResultOK    reloadResult = "ok"
	reloadResultError reloadResult = "error"
)

// cacheMetrics wraps the Prometheus collectors registered for one
// AssetCache. A single cache instance serves every asset type, so there
// is one metrics struct per AssetCache, not per type.
type cacheMetrics struct {
	loads   *prometheus.CounterVec
	reloads *prometheus.CounterVec
	entries prometheus.GaugeFunc
}

func newCacheMetrics(reg prometheus.Registerer, namespace string, sizeFn func() int) *cacheMetrics {
	m := &cacheMetrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assetcache_load_total",
			Help:      "Asset load attempts by outcome.",
		}, []string{"result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assetcache_reload_total",
			Help:      "Hot-reload attempts by outcome.",
		}, []string{"result"}),
	}
	m.entries = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "assetcache_entries",
		Help:      "Number of entries currently held by the cache.",
	}, func() float64 { return float64(sizeFn()) })

	if reg != nil {
		reg.MustRegister(m.loads, m.reloads, m.entries)
	}
	return m
}

func (c *AssetCache) observeLoad(r loadResult) {
	if c.metrics == nil {
		return
	}
	c.metrics.loads.WithLabelValues(string(r)).Inc()
}

func (c *AssetCache) observeReload(r reloadResult) {
	if c.metrics == nil {
		return
	}
	c.metrics.reloads.WithLabelValues(string(r)).Inc()
}
