// Package testcontext provides a context for tests that carries a working o11y provider.
package testcontext

import (
	"context"

	"go.uber.org/zap"

	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/o11y/zaplog"
)

// ctx is a global singleton, initialised at package time so parallel tests share one provider.
var ctx = newContext()

// Background returns a context for use in tests which contains a zap backed o11y provider,
// so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	p := zaplog.New(zaplog.Config{Logger: logger})
	p.AddGlobalField("service", "test-service")
	return o11y.WithProvider(context.Background(), p)
}
