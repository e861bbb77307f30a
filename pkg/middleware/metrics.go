package middleware

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/waypoint/pkg/router"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "waypoint").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for navigation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "waypoint",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the navigation metrics registered with one registry.
type metrics struct {
	navigationsTotal   *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	navigationErrors   *prometheus.CounterVec
	redirectsTotal     prometheus.Counter
	inFlight           prometheus.Gauge
}

// metricsKey identifies one set of collectors: the registry plus
// everything that goes into their descriptors except the buckets.
type metricsKey struct {
	registry  prometheus.Registerer
	namespace string
	subsystem string
	labels    string
}

func keyFor(config MetricsConfig) metricsKey {
	pairs := make([]string, 0, len(config.ConstLabels))
	for name, value := range config.ConstLabels {
		pairs = append(pairs, name+"="+value)
	}
	slices.Sort(pairs)
	return metricsKey{
		registry:  config.Registry,
		namespace: config.Namespace,
		subsystem: config.Subsystem,
		labels:    strings.Join(pairs, ","),
	}
}

// registered caches metrics per registry and naming so that building the
// middleware twice with the same configuration does not register duplicate
// collectors. Buckets are fixed by the first registration of a name.
var (
	registered   = make(map[metricsKey]*metrics)
	registeredMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of navigations by route and terminal phase",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "phase"}),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Navigation duration in seconds, from request to terminal phase",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		navigationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_errors_total",
			Help:        "Total number of navigation errors by route and kind",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "kind"}),

		redirectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "redirects_total",
			Help:        "Total number of guard redirects",
			ConstLabels: config.ConstLabels,
		}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_in_flight",
			Help:        "Number of navigations currently running, superseded ones included",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func metricsFor(config MetricsConfig) *metrics {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	key := keyFor(config)
	m, ok := registered[key]
	if !ok {
		m = initMetrics(config)
		registered[key] = m
	}
	return m
}

// unmatchedRoute labels navigations that ended before a route was matched.
const unmatchedRoute = "<unmatched>"

// Prometheus creates middleware that collects Prometheus metrics for
// navigations.
//
// Metrics collected:
//   - waypoint_navigations_total: Counter of navigations by route and phase
//   - waypoint_navigation_duration_seconds: Histogram of navigation duration
//   - waypoint_navigation_errors_total: Counter of errors by route and kind
//   - waypoint_redirects_total: Counter of guard redirects
//   - waypoint_navigations_in_flight: Gauge of running navigations
//
// The route label is the route pattern, never the concrete path, so label
// cardinality is bounded by the route table.
//
// Example:
//
//	r, err := router.New(routes,
//	    router.WithMiddleware(middleware.Prometheus(
//	        middleware.WithNamespace("myapp"),
//	    )),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) router.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := metricsFor(config)

	return router.MiddlewareFunc(func(nav *router.Navigation, next func() error) error {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		err := next()

		route := unmatchedRoute
		if cr := nav.Route(); cr != nil {
			route = cr.Path
		}
		m.navigationDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.navigationsTotal.WithLabelValues(route, string(nav.Phase())).Inc()

		if navErr := nav.Err(); navErr != nil {
			m.navigationErrors.WithLabelValues(route, string(navErr.Kind)).Inc()
		}
		if nav.Phase() == router.PhaseRedirected {
			m.redirectsTotal.Inc()
		}
		return err
	})
}
