package cetf

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BadBoiLabs/cetf/go/cetf/api"
	"github.com/BadBoiLabs/cetf/go/common/errors"
	"github.com/BadBoiLabs/cetf/go/consensus/api/transaction"
)

var (
	cetfCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cetf_calls",
			Help: "Number of tag store calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	cetfTagsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cetf_tags_enqueued",
			Help: "Number of tags enqueued.",
		},
	)
	cetfQueuesCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cetf_queues_cleared",
			Help: "Number of tag queues cleared.",
		},
	)
	cetfLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cetf_call_latency",
			Help:    "Tag store call latency (seconds).",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	cetfCollectors = []prometheus.Collector{
		cetfCalls,
		cetfTagsEnqueued,
		cetfQueuesCleared,
		cetfLatency,
	}

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(cetfCollectors...)
	})
}

// outcome returns the metric label for a call result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, api.ErrForbidden):
		return "forbidden"
	case errors.Is(err, api.ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, api.ErrStorage):
		return "storage"
	case errors.Is(err, api.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, api.ErrInvalidMethod):
		return "invalid_method"
	default:
		return "unknown"
	}
}

func observeCall(method transaction.MethodName, start time.Time, err error) {
	cetfLatency.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	cetfCalls.WithLabelValues(string(method), outcome(err)).Inc()
}
