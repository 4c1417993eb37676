package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics an embedded ANN engine can
// produce on its own, without a network layer to scrape requests from:
// insert/search counts and latencies, and index-shape gauges surfaced
// through Stats().
type Metrics struct {
	// Build/insert metrics
	InsertsTotal    prometheus.Counter
	InsertErrors    *prometheus.CounterVec
	InsertDuration  prometheus.Histogram
	DuplicateLabels prometheus.Counter

	// Search metrics
	SearchesTotal    *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	SearchResultSize prometheus.Histogram

	// Index shape gauges backing the stats JSON
	IndexNumElements prometheus.Gauge
	IndexMemoryBytes prometheus.Gauge
	IndexLayerCount  prometheus.Gauge
}

// NewMetrics creates and registers the engine's Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		InsertsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorindex_inserts_total",
				Help: "Total number of vectors added to the index",
			},
		),
		InsertErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorindex_insert_errors_total",
				Help: "Total number of add() failures by error kind",
			},
			[]string{"kind"},
		),
		InsertDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectorindex_insert_duration_seconds",
				Help:    "Duration of a single add() call",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		DuplicateLabels: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorindex_duplicate_labels_total",
				Help: "Total number of add() calls rejected for a duplicate label",
			},
		),
		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorindex_searches_total",
				Help: "Total number of searches by mode",
			},
			[]string{"mode"},
		),
		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorindex_search_duration_seconds",
				Help:    "Search duration in seconds by mode",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),
		SearchResultSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vectorindex_search_result_size",
				Help:    "Number of results returned by a search",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
			},
		),
		IndexNumElements: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectorindex_num_elements",
				Help: "Number of vectors currently held by the index",
			},
		),
		IndexMemoryBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectorindex_memory_bytes",
				Help: "Estimated memory footprint of the index in bytes",
			},
		),
		IndexLayerCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectorindex_layer_count",
				Help: "Number of layers in the hierarchical graph",
			},
		),
	}
}

// RecordInsert records a single successful add() call.
func (m *Metrics) RecordInsert(duration time.Duration) {
	m.InsertsTotal.Inc()
	m.InsertDuration.Observe(duration.Seconds())
}

// RecordInsertError records an add() failure by error kind.
func (m *Metrics) RecordInsertError(kind string) {
	m.InsertErrors.WithLabelValues(kind).Inc()
}

// RecordDuplicateLabel records an add() call rejected with DuplicateLabel.
func (m *Metrics) RecordDuplicateLabel() {
	m.DuplicateLabels.Inc()
}

// RecordSearch records a kNN or range search call.
func (m *Metrics) RecordSearch(mode string, duration time.Duration, resultSize int) {
	m.SearchesTotal.WithLabelValues(mode).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.SearchResultSize.Observe(float64(resultSize))
}

// UpdateIndexShape refreshes the gauges backing the stats JSON.
func (m *Metrics) UpdateIndexShape(numElements int, memoryBytes int64, layerCount int) {
	m.IndexNumElements.Set(float64(numElements))
	m.IndexMemoryBytes.Set(float64(memoryBytes))
	m.IndexLayerCount.Set(float64(layerCount))
}
