package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversions_total",
		Help: "The total number of array file conversions",
	}, []string{"input", "output", "status"}) // status: success, failure

	ConvertedElementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converted_elements_total",
		Help: "The total number of array elements written by conversions",
	})

	EndpointRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "endpoint_requests_total",
		Help: "The total number of model endpoint requests by HTTP status code",
	}, []string{"code"}) // code: HTTP status or "error" for transport failures

	EndpointRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "endpoint_request_duration_seconds",
		Help:    "Latency of model endpoint requests",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	MockRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mock_endpoint_requests_total",
		Help: "The total number of requests served by the mock model endpoint",
	}, []string{"code"})
)

// WriteTextfile dumps the default registry in the node exporter textfile
// format. One-shot CLIs use it instead of serving /metrics. An empty path
// is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
