package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/legalcrm/legalcrm"
)

// Metrics holds the OpenTelemetry instruments for the tenant routing core.
type Metrics struct {
	// Resolver metrics
	ResolutionsTotal        metric.Int64Counter
	ResolutionFailuresTotal metric.Int64Counter

	// Connection cache metrics
	CacheHitsTotal         metric.Int64Counter
	CacheMissesTotal       metric.Int64Counter
	CacheOpenFailuresTotal metric.Int64Counter
	LiveHandles            metric.Int64UpDownCounter

	// Provisioner metrics
	ProvisionsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if
// necessary. Instruments are no-ops until a meter provider is installed.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ResolutionsTotal, _ = meter.Int64Counter(
		"legalcrm.tenant.resolutions.total",
		metric.WithDescription("Total number of successful tenant resolutions"),
		metric.WithUnit("{resolution}"),
	)

	m.ResolutionFailuresTotal, _ = meter.Int64Counter(
		"legalcrm.tenant.resolution_failures.total",
		metric.WithDescription("Total number of failed tenant resolutions"),
		metric.WithUnit("{failure}"),
	)

	m.CacheHitsTotal, _ = meter.Int64Counter(
		"legalcrm.connections.cache_hits.total",
		metric.WithDescription("Total number of connection cache hits"),
		metric.WithUnit("{hit}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"legalcrm.connections.cache_misses.total",
		metric.WithDescription("Total number of connection cache misses"),
		metric.WithUnit("{miss}"),
	)

	m.CacheOpenFailuresTotal, _ = meter.Int64Counter(
		"legalcrm.connections.open_failures.total",
		metric.WithDescription("Total number of failed tenant connection opens"),
		metric.WithUnit("{failure}"),
	)

	m.LiveHandles, _ = meter.Int64UpDownCounter(
		"legalcrm.connections.live_handles",
		metric.WithDescription("Number of live tenant connection handles"),
		metric.WithUnit("{handle}"),
	)

	m.ProvisionsTotal, _ = meter.Int64Counter(
		"legalcrm.schemas.provisions.total",
		metric.WithDescription("Total number of schema provisioning runs"),
		metric.WithUnit("{provision}"),
	)

	return m
}
