package assetcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// config holds AssetCache/HotReloader construction state assembled from
// Option values.
type config struct {
	logger *zap.Logger

	registry  prometheus.Registerer
	namespace string

	hotReload     bool
	debounce      time.Duration
	reloadWorkers int
}

func defaultConfig() config {
	return config{
		logger:        zap.NewNop(),
		debounce:      100 * time.Millisecond,
		reloadWorkers: 1,
	}
}

// Option configures an AssetCache at construction time.
type Option func(*config)

// WithLogger sets the zap logger used for cache and hot-reload diagnostics.
// Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation, registering the cache's
// collectors with reg under the given namespace. Pass
// prometheus.DefaultRegisterer to use the global registry.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(c *config) {
		c.registry = reg
		c.namespace = namespace
	}
}

// WithHotReload enables a HotReloader backed by the cache's Source, which
// must implement HotReloadable. debounce controls how long the watcher
// waits for a burst of related filesystem events to settle before
// reloading.
func WithHotReload(debounce time.Duration) Option {
	return func(c *config) {
		c.hotReload = true
		if debounce > 0 {
			c.debounce = debounce
		}
	}
}

// WithReloadWorkers sets the number of concurrent goroutines draining the
// hot-reload work queue. Defaults to 1.
func WithReloadWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.reloadWorkers = n
		}
	}
}
