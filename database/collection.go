package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/circleci/mongoclient/insert"
	"github.com/circleci/mongoclient/o11y"
)

// Collection wraps a driver collection with insert option and result normalisation.
type Collection struct {
	db   *Database
	name string
}

func (c *Collection) Name() string {
	return c.name
}

// InsertOne inserts doc. opts may be nil. The driver's result is returned unmodified, a single
// insert has exactly one id so there is nothing to repair.
func (c *Collection) InsertOne(ctx context.Context, doc bson.M, opts insert.Options) (_ *insert.OneResult, err error) {
	ctx, span := span(ctx, c.name, "insertOne")
	defer o11y.End(span, &err)

	opts = insert.NormalizeOptions(ctx, opts)

	client, err := c.db.Client()
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).InsertOne(ctx, doc, opts)
}

// InsertMany inserts docs, in order unless opts sets ordered to false. opts may be nil.
func (c *Collection) InsertMany(ctx context.Context, docs []bson.M, opts insert.Options) (_ *insert.ManyResult, err error) {
	ctx, span := span(ctx, c.name, "insertMany")
	defer o11y.End(span, &err)
	span.AddField("count", len(docs))

	opts = insert.NormalizeOptions(ctx, opts)

	client, err := c.db.Client()
	if err != nil {
		return nil, err
	}
	res, err := client.Collection(c.name).InsertMany(ctx, docs, opts)
	if err != nil {
		return nil, err
	}
	return insert.NormalizeManyResult(res), nil
}

// Insert was removed because it was ambiguous between one and many documents. It always fails.
func (c *Collection) Insert(context.Context, ...interface{}) error {
	return &UnsupportedOperationError{Op: "insert", Message: insertRemovedMessage}
}
