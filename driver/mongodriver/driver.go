package mongodriver

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/circleci/mongoclient/config/secret"
	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/o11y"
)

// DefaultDatabase is used when the connection string does not name a database.
const DefaultDatabase = "test"

type Config struct {
	// AppName is reported to the server, unless the option mapping sets appName.
	AppName string
	// PoolMetrics, if set, is fed every connection pool event.
	PoolMetrics *PoolMetrics
}

type Driver struct {
	cfg Config
}

func New(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

var _ driver.Driver = (*Driver)(nil)

// Connect creates a client and checks the server answers a ping before handing it back, so a
// returned client is ready for use.
func (d *Driver) Connect(ctx context.Context, uri string, opts map[string]interface{}) (_ driver.Client, err error) {
	ctx, span := o11y.StartSpan(ctx, "mongodriver: connect")
	defer o11y.End(span, &err)

	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, parseError(err)
	}
	span.AddField("hosts", cs.Hosts)
	span.AddField("uri", secret.RedactURI(uri))

	dbName := cs.Database
	if dbName == "" {
		dbName = DefaultDatabase
	}
	span.AddField("database", dbName)

	copts, err := clientOptions(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	if d.cfg.AppName != "" && copts.AppName == nil {
		copts.SetAppName(d.cfg.AppName)
	}
	if d.cfg.PoolMetrics != nil {
		copts.SetPoolMonitor(d.cfg.PoolMetrics.PoolMonitor(copts.PoolMonitor))
	}

	client, err := mongo.Connect(ctx, copts)
	if err != nil {
		return nil, err
	}

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	return &Client{
		client:  client,
		db:      client.Database(dbName),
		metrics: d.cfg.PoolMetrics,
	}, nil
}

// parseError strips the connection string from parse failures, it carries the password.
func parseError(err error) error {
	var urlError *url.Error
	if errors.As(err, &urlError) {
		return fmt.Errorf("mongodriver: failed to parse URI: %w", urlError.Err)
	}
	return fmt.Errorf("mongodriver: failed to parse URI: %w", err)
}
