package middleware

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/waypoint/pkg/router"
)

// CacheStatsSource is what CacheCollector reads. *router.Router implements it.
type CacheStatsSource interface {
	CacheStats() router.CacheStats
	DataCacheStats() router.CacheStats
}

// CacheCollector exports a router's cache counters. The counters live in
// the router; the collector reads them at scrape time.
//
//	registry.MustRegister(middleware.NewCacheCollector(r))
type CacheCollector struct {
	source CacheStatsSource

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
	entries     *prometheus.Desc
}

// NewCacheCollector creates a collector for source. Only WithNamespace,
// WithSubsystem and WithConstLabels apply.
func NewCacheCollector(source CacheStatsSource, opts ...MetricsOption) *CacheCollector {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(config.Namespace, config.Subsystem, name),
			help,
			[]string{"cache"},
			config.ConstLabels,
		)
	}

	return &CacheCollector{
		source:      source,
		hits:        desc("cache_hits_total", "Total cache hits"),
		misses:      desc("cache_misses_total", "Total cache misses"),
		evictions:   desc("cache_evictions_total", "Total least-recently-used evictions"),
		expirations: desc("cache_expirations_total", "Total entries dropped after their TTL"),
		entries:     desc("cache_entries", "Current number of cached entries"),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	c.collect(ch, "match", c.source.CacheStats())
	c.collect(ch, "data", c.source.DataCacheStats())
}

func (c *CacheCollector) collect(ch chan<- prometheus.Metric, cache string, s router.CacheStats) {
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), cache)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), cache)
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), cache)
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(s.Expirations), cache)
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size), cache)
}
