package system

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/worker"
)

type MetricProducer interface {
	// MetricName The name for this group of metrics
	//(Name might be cleaner, but is much more likely to conflict in implementations)
	MetricName() string
	// Gauges are instantaneous name value pairs
	Gauges(context.Context) map[string]float64
}

func traceMetrics(ctx context.Context, producers []MetricProducer) {
	metrics := o11y.FromContext(ctx).MetricsProvider()
	for _, producer := range producers {
		traceMetric(ctx, metrics, producer)
	}
}

func traceMetric(ctx context.Context, provider o11y.MetricsProvider, producer MetricProducer) {
	producerName := strings.ReplaceAll(producer.MetricName(), "-", "_")
	for f, v := range producer.Gauges(ctx) {
		scopedField := fmt.Sprintf("gauge.%s.%s", producerName, f)
		_ = provider.Gauge(scopedField, v, []string{}, 1)
	}
}

var metricsInterval = 10 * time.Second

// metricsReporter returns a function for errgroup.Go that periodically publishes the gauges
// from the producers until the context is done.
func metricsReporter(ctx context.Context, mps []MetricProducer) func() error {
	return func() error {
		worker.Run(ctx, worker.Config{
			Name:          "metric-loop",
			MaxWorkTime:   time.Second,
			NoWorkBackOff: backoff.NewConstantBackOff(metricsInterval),
			WorkFunc: func(ctx context.Context) error {
				traceMetrics(ctx, mps)
				return worker.ErrShouldBackoff
			},
		})
		return nil
	}
}
