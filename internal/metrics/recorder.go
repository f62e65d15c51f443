// Package metrics публикует метрики пакетной проверки в формате Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bankrot-parser/internal/domain"
)

const namespace = "bankrot"

// Результаты пакета для метки result.
const (
	ResultSucceeded = "succeeded"
	ResultFatal     = "fatal"
	ResultCancelled = "cancelled"
)

// Recorder реализует ports.BatchRecorder поверх счетчиков Prometheus.
type Recorder struct {
	items         *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchSize     prometheus.Histogram
	searches      *prometheus.CounterVec
	cacheHits     prometheus.Counter
}

// NewRecorder регистрирует метрики в reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Проверенные ИНН по результату.",
		}, []string{"state", "error_kind"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Завершенные пакеты по результату.",
		}, []string{"result"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Длительность пакетной проверки.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processed_items",
			Help:      "Количество обработанных элементов в пакете.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Одиночные поисковые запросы по типу и исходу.",
		}, []string{"type", "success"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_hits_total",
			Help:      "Поисковые запросы, обслуженные из кэша.",
		}),
	}
}

// ObserveOutcome учитывает результат проверки одного ИНН.
func (r *Recorder) ObserveOutcome(outcome domain.ItemOutcome) {
	r.items.WithLabelValues(string(outcome.State), string(outcome.ErrorKind)).Inc()
}

// ObserveBatch учитывает завершение пакета.
func (r *Recorder) ObserveBatch(result domain.BatchResult, elapsed time.Duration) {
	r.batches.WithLabelValues(batchResultLabel(result)).Inc()
	r.batchDuration.Observe(elapsed.Seconds())
	r.batchSize.Observe(float64(result.TotalProcessed))
}

// ObserveSearch учитывает одиночный поиск.
func (r *Recorder) ObserveSearch(kind domain.QueryKind, result domain.SearchResult, cached bool) {
	success := "false"
	if result.Success {
		success = "true"
	}
	r.searches.WithLabelValues(string(kind), success).Inc()
	if cached {
		r.cacheHits.Inc()
	}
}

func batchResultLabel(result domain.BatchResult) string {
	switch {
	case result.SucceededOverall:
		return ResultSucceeded
	case result.FatalKind == domain.ErrorKindCancelled:
		return ResultCancelled
	default:
		return ResultFatal
	}
}

// NewRegistry создает реестр со стандартными метриками процесса и Go runtime.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler возвращает HTTP-обработчик /metrics для реестра.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
