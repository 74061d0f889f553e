package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/termination"
)

type System struct {
	services        []func(context.Context) error
	healthChecks    []HealthChecker
	metricProducers []MetricProducer
	cleanups        []func(ctx context.Context) error
}

func New() *System {
	return &System{}
}

var terminationTestHook = termination.Handle

// Run starts every service and the metrics reporter, and blocks until one of them fails or
// the process is told to terminate. The delay is honoured between the termination signal
// and shutdown.
func (r *System) Run(ctx context.Context, delay time.Duration) (err error) {
	ctx, uptimeSpan := o11y.StartSpan(ctx, "system: run")
	defer o11y.End(uptimeSpan, &err)
	uptimeSpan.RecordMetric(o11y.Timing("system.run", "result"))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return terminationTestHook(ctx, delay)
	})

	for _, f := range r.services {
		// Capture the func, so we don't overwrite it when the goroutines start in parallel.
		f := f
		group.Go(func() error {
			return f(ctx)
		})
	}

	if len(r.metricProducers) > 0 {
		group.Go(metricsReporter(ctx, r.metricProducers))
	}

	return group.Wait()
}

func (r *System) AddService(s func(ctx context.Context) error) {
	r.services = append(r.services, s)
}

func (r *System) AddHealthCheck(h HealthChecker) {
	r.healthChecks = append(r.healthChecks, h)
}

func (r *System) AddMetrics(m MetricProducer) {
	r.metricProducers = append(r.metricProducers, m)
}

func (r *System) AddCleanup(c func(ctx context.Context) error) {
	r.cleanups = append(r.cleanups, c)
}

func (r *System) HealthChecks() []HealthChecker {
	return r.healthChecks
}

// Ready runs every registered readiness check and joins their failures.
func (r *System) Ready(ctx context.Context) error {
	var errs []error
	for _, h := range r.healthChecks {
		name, ready, _ := h.HealthChecks()
		if ready == nil {
			continue
		}
		if err := ready(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Cleanup runs the cleanups in reverse order of registration.
func (r *System) Cleanup(ctx context.Context) {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		err := r.cleanups[i](ctx)
		if err != nil {
			o11y.Log(ctx, "system: cleanup error", o11y.Field("error", err))
		}
	}
}
