package mongodriver

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/system"
)

type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	metrics *PoolMetrics
}

var _ driver.Client = (*Client)(nil)

func (c *Client) Collection(name string) driver.Collection {
	return &Collection{coll: c.db.Collection(name)}
}

func (c *Client) Admin() driver.Admin {
	return &Admin{db: c.client.Database("admin")}
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// DatabaseName is the database collections are taken from.
func (c *Client) DatabaseName() string {
	return c.db.Name()
}

// MetricProducer returns the pool gauges, or nil if the driver was built without them.
func (c *Client) MetricProducer() system.MetricProducer {
	if c.metrics == nil {
		return nil
	}
	return c.metrics
}

func (c *Client) HealthChecks() (name string, ready, live func(ctx context.Context) error) {
	ready = func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := c.client.Ping(ctx, readpref.PrimaryPreferred())
		if err != nil {
			return fmt.Errorf("mongo health check failed on ping: %w", err)
		}
		return nil
	}
	return "mongo", ready, nil
}
