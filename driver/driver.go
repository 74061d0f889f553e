// Package driver describes the database driver the facade delegates to. The wire protocol,
// pooling, topology and write concern semantics all live behind these interfaces.
package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/circleci/mongoclient/insert"
)

type Driver interface {
	// Connect opens a client for the connection string. The option mapping is driver defined
	// and passed through verbatim.
	Connect(ctx context.Context, uri string, opts map[string]interface{}) (Client, error)
}

type Client interface {
	// Collection returns a handle on the named collection in the default database.
	Collection(name string) Collection
	Admin() Admin
	Close(ctx context.Context) error
}

type Collection interface {
	InsertOne(ctx context.Context, doc bson.M, opts insert.Options) (*insert.OneResult, error)
	InsertMany(ctx context.Context, docs []bson.M, opts insert.Options) (*insert.ManyResult, error)
}

type Admin interface {
	// Command runs a command against the admin database. The command name must be the first
	// element of cmd.
	Command(ctx context.Context, cmd bson.D) (bson.M, error)
}
