// Package metrics holds the Prometheus collectors shared by the server,
// the embedders and the use cases.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ragstore"

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestDuration,
		httpRequestsTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
		IngestedChunksTotal,
		IngestFailuresTotal,
		SearchDegradedTotal,
		TagFilterShortTotal,
	}
}

// Register adds every collector to reg. Collectors already present in reg
// are skipped, so calling it twice is harmless.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}
