package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_tracker_cache_lookups_total",
			Help: "Question cache lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_tracker_llm_requests_total",
			Help: "Language model calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_tracker_llm_request_duration_seconds",
			Help:    "Duration of language model calls",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"operation"},
	)

	ProgressFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_tracker_progress_flushes_total",
			Help: "Buffered progress records written, by outcome",
		},
		[]string{"outcome"},
	)

	ProgressPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_tracker_progress_pending",
			Help: "Progress records waiting in the write buffer",
		},
	)
)

var initOnce sync.Once

// Init registers the collectors once; later calls are no-ops.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			CacheLookups,
			LLMRequests,
			LLMDuration,
			ProgressFlushes,
			ProgressPending,
		)
	})
}

// ObserveCache is a cache.Loader lookup hook.
func ObserveCache(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(namespace, result).Inc()
}

func ObserveLLM(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMRequests.WithLabelValues(operation, outcome).Inc()
	LLMDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
