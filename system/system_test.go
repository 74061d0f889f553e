package system

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/termination"
	"github.com/circleci/mongoclient/testing/testcontext"
)

func TestSystem_Run(t *testing.T) {
	ctx := testcontext.Background()

	// Wait until everything has been exercised before terminating
	terminationWait := &sync.WaitGroup{}
	terminationTestHook = func(ctx context.Context, delay time.Duration) error {
		terminationWait.Wait()
		return termination.ErrTerminated
	}
	t.Cleanup(func() { terminationTestHook = termination.Handle })

	sys := New()

	sys.AddMetrics(newMockMetricProducer(terminationWait))

	terminationWait.Add(1)
	sys.AddService(func(ctx context.Context) (err error) {
		_, span := o11y.StartSpan(ctx, "service")
		defer o11y.End(span, &err)
		terminationWait.Done()
		<-ctx.Done()
		return nil
	})

	var order []string
	sys.AddCleanup(func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	sys.AddCleanup(func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("logged, not returned")
	})

	err := sys.Run(ctx, 0)
	assert.Check(t, errors.Is(err, termination.ErrTerminated))

	sys.Cleanup(ctx)
	assert.Check(t, cmp.DeepEqual(order, []string{"second", "first"}))
}

func TestSystem_Ready(t *testing.T) {
	ctx := testcontext.Background()
	sys := New()

	sys.AddHealthCheck(mockHealthChecker{name: "ok"})
	sys.AddHealthCheck(mockHealthChecker{name: "no-probe", noProbe: true})
	assert.Check(t, sys.Ready(ctx))
	assert.Check(t, cmp.Len(sys.HealthChecks(), 2))

	sys.AddHealthCheck(mockHealthChecker{name: "mongo", err: errors.New("ping failed")})
	assert.Check(t, cmp.ErrorContains(sys.Ready(ctx), "mongo: ping failed"))
}

type mockMetricProducer struct {
	wg   *sync.WaitGroup
	once sync.Once
}

func newMockMetricProducer(wg *sync.WaitGroup) *mockMetricProducer {
	wg.Add(1)
	return &mockMetricProducer{wg: wg}
}

func (m *mockMetricProducer) MetricName() string {
	return "mock"
}

func (m *mockMetricProducer) Gauges(context.Context) map[string]float64 {
	m.once.Do(m.wg.Done)
	return map[string]float64{
		"key_a": 1,
		"key_b": 2,
	}
}

type mockHealthChecker struct {
	name    string
	err     error
	noProbe bool
}

func (m mockHealthChecker) HealthChecks() (name string, ready, live func(ctx context.Context) error) {
	if m.noProbe {
		return m.name, nil, nil
	}
	return m.name, func(context.Context) error { return m.err }, nil
}
