// Command mongoclient-example connects to MongoDB, checks the server with isMaster and inserts
// a few users, printing the normalised result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/circleci/mongoclient/adminserver"
	o11yconf "github.com/circleci/mongoclient/config/o11y"
	"github.com/circleci/mongoclient/config/secret"
	"github.com/circleci/mongoclient/config/vault"
	"github.com/circleci/mongoclient/database"
	"github.com/circleci/mongoclient/insert"
	"github.com/circleci/mongoclient/o11y"
	"github.com/circleci/mongoclient/rundef"
	"github.com/circleci/mongoclient/system"
	"github.com/circleci/mongoclient/termination"
)

// Set by the linker.
var (
	Version = "dev"
	Date    = "unknown"
)

type cli struct {
	MongoURI       secret.URI `env:"MONGO_URI" default:"mongodb://127.0.0.1:27017/test" help:"Connection string, the path names the database."`
	AppName        string     `env:"APP_NAME" default:"mongoclient-example" help:"Application name reported to the server."`
	MaxPoolSize    int        `env:"MONGO_MAX_POOL_SIZE" default:"10"`
	ConnectTimeout int        `env:"MONGO_CONNECT_TIMEOUT_MS" default:"5000"`
	Collection     string     `env:"COLLECTION" default:"users"`
	Ordered        bool       `env:"ORDERED" default:"true" negatable:"" help:"Stop at the first failed document."`
	WriteConcernW  int        `env:"WRITE_CONCERN_W" default:"1" help:"0 requests an unacknowledged write."`

	AdminAddr     string        `env:"ADMIN_ADDR" help:"Keep running and serve health checks and metrics on this address."`
	ShutdownDelay time.Duration `env:"SHUTDOWN_DELAY" default:"5s" hidden:""`

	Statsd         string        `env:"STATSD_ADDR"`
	StatsNamespace string        `env:"STATSD_NAMESPACE" default:"mongoclient"`
	RollbarToken   secret.String `env:"ROLLBAR_TOKEN"`
	RollbarEnv     string        `env:"ROLLBAR_ENV" default:"development"`
	LogFormat      string        `env:"LOG_FORMAT" default:"color" enum:"json,text,color"`
	Debug          bool          `env:"DEBUG"`

	VaultHost       string        `env:"VAULT_HOST" help:"Resolve the other settings from this Vault, when set."`
	VaultPort       int           `env:"VAULT_PORT" default:"8200"`
	VaultSecretName string        `env:"VAULT_SECRET_NAME" default:"mongoclient-example"`
	VaultToken      secret.String `env:"VAULT_TOKEN"`
}

func main() {
	err := run()
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal("Unexpected Error: ", err)
	}
}

func run() (err error) {
	ctx := context.Background()

	c, err := parse(ctx)
	if err != nil {
		return err
	}

	ctx, o11yCleanup, err := o11yconf.Setup(ctx, o11yconf.Config{
		Statsd:         c.Statsd,
		StatsNamespace: c.StatsNamespace,
		RollbarToken:   c.RollbarToken,
		RollbarEnv:     c.RollbarEnv,
		Format:         c.LogFormat,
		Version:        Version,
		Service:        c.AppName,
		Debug:          c.Debug,
	})
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(runSpan, &err)

	o11y.Log(ctx, "starting",
		o11y.Field("version", Version),
		o11y.Field("date", Date),
		o11y.Field("uri", c.MongoURI),
	)

	if err := rundef.Defaults(ctx); err != nil {
		o11y.LogError(ctx, "runtime defaults", err)
	}

	sys := system.New()
	defer sys.Cleanup(ctx)

	reg := prometheus.NewRegistry()
	db, err := database.Load(ctx, database.Config{
		URI:     c.MongoURI,
		AppName: c.AppName,
		Options: map[string]interface{}{
			"maxPoolSize":      c.MaxPoolSize,
			"connectTimeoutMS": c.ConnectTimeout,
		},
		Registerer: reg,
	}, sys)
	if err != nil {
		return err
	}

	err = example(ctx, c, db)
	if err != nil {
		return err
	}

	if c.AdminAddr == "" {
		return nil
	}
	// Should be last so it collects all the health checks
	_, err = adminserver.Load(ctx, c.AdminAddr, reg, sys)
	if err != nil {
		return err
	}
	return sys.Run(ctx, c.ShutdownDelay)
}

func parse(ctx context.Context) (*cli, error) {
	// A first pass reads the Vault settings from flags and environment.
	var boot cli
	err := vault.Parse(ctx, &boot, vault.Config{}, os.Args[1:])
	if err != nil {
		return nil, err
	}
	if boot.VaultHost == "" {
		return &boot, nil
	}

	var c cli
	err = vault.Parse(ctx, &c, vault.Config{
		Host:       boot.VaultHost,
		Port:       boot.VaultPort,
		SecretName: boot.VaultSecretName,
		Token:      boot.VaultToken,
	}, os.Args[1:])
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func example(ctx context.Context, c *cli, db *database.Database) (err error) {
	ctx, span := o11y.StartSpan(ctx, "main: example")
	defer o11y.End(span, &err)

	info, err := db.Admin().Command(ctx, bson.D{{Key: "isMaster", Value: 1}})
	if err != nil {
		return err
	}
	o11y.Log(ctx, "isMaster", o11y.Field("ismaster", info["ismaster"]))

	res, err := db.C(c.Collection).InsertMany(ctx, []bson.M{
		{"name": "fengmk2"},
		{"name": "dead-horse"},
		{"name": "tj"},
	}, insert.Options{
		insert.KeyOrdered:      c.Ordered,
		insert.KeyWriteConcern: bson.M{insert.KeyW: c.WriteConcernW},
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
