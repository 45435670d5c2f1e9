// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds only this function's metrics, so exports carry no runtime
// or process collectors.
var Registry = prometheus.NewRegistry()

var (
	RequestCount = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "openai_lambda_request_count_total",
			Help: "Total number of records processed",
		},
		[]string{"end_point", "status"},
	)

	UpstreamDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openai_lambda_upstream_duration_seconds",
			Help:    "Time taken by the OpenAI API in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60, 90, 120},
		},
		[]string{"end_point", "model"},
	)

	EstimatedPromptTokens = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "openai_lambda_estimated_prompt_tokens_total",
			Help: "Estimated number of prompt tokens sent upstream",
		},
		[]string{"end_point", "model"},
	)
)
