package database

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/circleci/mongoclient/config/secret"
	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/driver/mongodriver"
	"github.com/circleci/mongoclient/system"
)

type Config struct {
	URI     secret.URI
	AppName string
	// Options are passed to the driver alongside the connection string.
	Options map[string]interface{}
	// Registerer, if set, receives the connection pool collector.
	Registerer prometheus.Registerer
}

// Load opens the database and waits for it to be ready before wiring it into sys. The context
// passed in is expected to carry an o11y provider. A WithDriver option replaces the MongoDB
// driver, in which case no pool collector is registered.
func Load(ctx context.Context, cfg Config, sys *system.System, options ...Option) (*Database, error) {
	poolMetrics := mongodriver.NewPoolMetrics("mongo")
	md := mongodriver.New(mongodriver.Config{
		AppName:     cfg.AppName,
		PoolMetrics: poolMetrics,
	})
	options = append([]Option{WithDriver(md)}, options...)

	db := Open(ctx, cfg.URI.Raw(), cfg.Options, options...)
	if err := db.Wait(ctx); err != nil {
		return nil, err
	}
	sys.AddCleanup(db.Close)

	client, err := db.Client()
	if err != nil {
		return nil, err
	}
	if h, ok := client.(system.HealthChecker); ok {
		sys.AddHealthCheck(h)
	}
	if p, ok := client.(interface{ MetricProducer() system.MetricProducer }); ok {
		if mp := p.MetricProducer(); mp != nil {
			sys.AddMetrics(mp)
		}
	}
	if cfg.Registerer != nil && db.driver == driver.Driver(md) {
		if err := cfg.Registerer.Register(poolMetrics); err != nil {
			return nil, err
		}
	}
	return db, nil
}
