// Package metrics holds the generator's Prometheus collectors.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResourcesGeneratedTotal counts rendered resources by kind
	ResourcesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manifestgen_resources_generated_total",
			Help: "Total resources rendered by kind",
		},
		[]string{"kind"},
	)

	// GenerationsTotal counts generation runs by strategy and outcome
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manifestgen_generations_total",
			Help: "Total generation runs by strategy and status",
		},
		[]string{"strategy", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "manifestgen_generation_duration_seconds",
			Help:    "Time spent building, rendering and encoding a plan",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// ServicePorts tracks the port count of the last rendered server service
	ServicePorts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "manifestgen_server_service_ports",
			Help: "Ports advertised by the last rendered server service",
		},
		[]string{"strategy"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manifestgen_cache_lookups_total",
			Help: "Bundle cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// WriteTextfile dumps the default registry in the text exposition format, for the
// node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
