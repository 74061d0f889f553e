package testcontext

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/o11y/zaplog"
)

func TestBackground_Provider(t *testing.T) {
	ctx := Background()
	_, ok := o11y.FromContext(ctx).(*zaplog.Provider)
	assert.Check(t, ok)
}

func TestBackground_MetricsProvider(t *testing.T) {
	ctx := Background()
	metrics := o11y.FromContext(ctx).MetricsProvider()

	err := metrics.Gauge("gauge", 1, nil, 1)
	assert.Assert(t, err)
}
