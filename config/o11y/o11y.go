// Package o11y builds the o11y provider for a process from its configuration.
package o11y

import (
	"context"
	"io"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/circleci/mongoclient/config/secret"
	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/o11y/zaplog"
)

type Config struct {
	Statsd            string
	StatsNamespace    string
	RollbarToken      secret.String
	RollbarEnv        string
	RollbarServerRoot string
	// Format is json, text or color.
	Format  string
	Version string
	Service string

	// Optional
	Mode                    string
	Debug                   bool
	RollbarDisabled         bool
	StatsdTelemetryDisabled bool
	// Writer replaces stderr as the log destination.
	Writer io.Writer
}

// Setup returns a context carrying the provider, and a cleanup that flushes it.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	hostname, _ := os.Hostname()

	metrics, err := newStatsd(o, hostname)
	if err != nil {
		return nil, nil, err
	}

	var provider o11y.Provider = zaplog.New(zaplog.Config{
		Logger:  newLogger(o),
		Metrics: metrics,
	})
	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)
	if o.Mode != "" {
		provider.AddGlobalField("mode", o.Mode)
	}

	if o.RollbarToken != "" {
		client := rollbar.NewAsync(o.RollbarToken.Raw(), o.RollbarEnv, o.Version, hostname, o.RollbarServerRoot)
		client.SetEnabled(!o.RollbarDisabled)
		client.Message(rollbar.INFO, "Deployment")
		provider = rollbarProvider{
			Provider:      provider,
			rollbarClient: client,
		}
	}

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

func newStatsd(o Config, hostname string) (o11y.MetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}
	tags := []string{
		"service:" + o.Service,
		"version:" + o.Version,
		"hostname:" + hostname,
	}
	if o.Mode != "" {
		tags = append(tags, "mode:"+o.Mode)
	}
	opts := []statsd.Option{
		statsd.WithNamespace(o.StatsNamespace),
		statsd.WithTags(tags),
	}
	if o.StatsdTelemetryDisabled {
		opts = append(opts, statsd.WithoutTelemetry())
	}
	return statsd.New(o.Statsd, opts...)
}

func newLogger(o Config) *zap.Logger {
	level := zap.InfoLevel
	if o.Debug {
		level = zap.DebugLevel
	}

	var enc zapcore.Encoder
	switch o.Format {
	case "text", "color":
		ec := zap.NewDevelopmentEncoderConfig()
		if o.Format == "color" {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	var w io.Writer = os.Stderr
	if o.Writer != nil {
		w = o.Writer
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

type rollbarProvider struct {
	o11y.Provider
	rollbarClient *rollbar.Client
}

func (p rollbarProvider) Close(ctx context.Context) {
	p.Provider.Close(ctx)
	_ = p.rollbarClient.Close()
}

func (p rollbarProvider) RollbarClient() *rollbar.Client {
	return p.rollbarClient
}
