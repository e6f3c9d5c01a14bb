package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"carsync/internal/cache"
)

var (
	routerResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carsync_router_responses_total",
			Help: "Intercepted GET responses by request class and response source",
		},
		[]string{"class", "source"},
	)

	liveMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carsync_live_messages_total",
			Help: "Live update messages received by type",
		},
		[]string{"type"},
	)

	liveReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carsync_live_reconnects_total",
		Help: "Reconnect attempts made by the live update channel",
	})

	liveState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "carsync_live_state",
		Help: "Live channel connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting)",
	})

	storeEntriesDesc = prometheus.NewDesc(
		"carsync_cache_entries",
		"Number of entries per cache store",
		[]string{"store"},
		nil,
	)
)

// StoreCollector is a custom Prometheus collector that reads store sizes from
// the cache registry on each scrape.
type StoreCollector struct {
	registry *cache.Registry
}

// Describe sends the metric descriptor to the channel.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storeEntriesDesc
}

// Collect lists every store and emits its entry count as a gauge.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := c.registry.Names(ctx)
	if err != nil {
		slog.Error("failed to collect cache store metrics", "error", err)
		return
	}
	for _, name := range names {
		s, err := c.registry.Lookup(ctx, name)
		if err != nil {
			if !errors.Is(err, cache.ErrStoreNotFound) {
				slog.Error("failed to open cache store for metrics", "store", name, "error", err)
			}
			continue
		}
		n, err := s.Len(ctx)
		if err != nil {
			slog.Error("failed to count cache store entries", "store", name, "error", err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(storeEntriesDesc, prometheus.GaugeValue, float64(n), name)
	}
}

var initOnce sync.Once

// Init registers the collectors with the default registry.
// Must be called once at startup; later calls are no-ops.
func Init(registry *cache.Registry) {
	initOnce.Do(func() {
		prometheus.MustRegister(routerResponses, liveMessages, liveReconnects, liveState)
		prometheus.MustRegister(&StoreCollector{registry: registry})
	})
}

// RecordResponse counts one intercepted response.
func RecordResponse(class, source string) {
	routerResponses.WithLabelValues(class, source).Inc()
}

// RecordLiveMessage counts one live update by type.
func RecordLiveMessage(kind string) {
	liveMessages.WithLabelValues(kind).Inc()
}

// RecordReconnect counts one live reconnect attempt.
func RecordReconnect() {
	liveReconnects.Inc()
}

// SetLiveState publishes the live channel state.
func SetLiveState(state int) {
	liveState.Set(float64(state))
}
