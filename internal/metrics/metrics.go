// Package metrics holds the Prometheus collectors for gather runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_gatherer_source_requests_total",
			Help: "Requests made to article sources, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "news_gatherer_source_request_duration_seconds",
			Help:    "Duration of article source requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	ArticlesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "news_gatherer_articles_fetched_total",
			Help: "Articles accepted from sources.",
		},
	)
	ArticlesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "news_gatherer_articles_rejected_total",
			Help: "Articles dropped by ingestion validation.",
		},
	)
	ClustersEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "news_gatherer_clusters_emitted_total",
			Help: "Clusters whose canonical URL was new to the seen ledger.",
		},
	)
	ClustersSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "news_gatherer_clusters_suppressed_total",
			Help: "Clusters dropped because their canonical URL was already seen.",
		},
	)
	ClusterSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "news_gatherer_cluster_size",
			Help:    "Members per emitted cluster.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
	LedgerEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "news_gatherer_ledger_entries",
			Help: "Seen ledger size after the last run.",
		},
	)
	LedgerPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "news_gatherer_ledger_pruned_total",
			Help: "Ledger entries removed by retention pruning.",
		},
	)
	RunsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_gatherer_runs_total",
			Help: "Gather runs, labeled by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(SourceRequests)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(ArticlesFetched)
	prometheus.MustRegister(ArticlesRejected)
	prometheus.MustRegister(ClustersEmitted)
	prometheus.MustRegister(ClustersSuppressed)
	prometheus.MustRegister(ClusterSize)
	prometheus.MustRegister(LedgerEntries)
	prometheus.MustRegister(LedgerPruned)
	prometheus.MustRegister(RunsCompleted)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
