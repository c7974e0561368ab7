package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and retrieval metrics.
var (
	IngestedChunksTotal = counterVec("ingested_chunks_total",
		"Chunks written by ingestion", "kind") // text, file

	IngestFailuresTotal = counterVec("ingest_failures_total",
		"Rejected or failed ingestions", "reason")

	SearchDegradedTotal = counterVec("search_degraded_total",
		"Read paths that returned partial results after a backend failure",
		"path") // content_branch, tag_inventory

	TagFilterShortTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tag_filter_short_results_total",
		Help:      "Tag-filtered queries that returned fewer hits than requested",
	})
)
