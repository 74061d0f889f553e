package mongodriver

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/insert"
)

type Collection struct {
	coll *mongo.Collection
}

var _ driver.Collection = (*Collection)(nil)

func (c *Collection) InsertOne(ctx context.Context, doc bson.M, opts insert.Options) (*insert.OneResult, error) {
	coll, err := c.withWriteConcern(opts)
	if err != nil {
		return nil, err
	}
	ioOpts, err := insertOneOptions(opts)
	if err != nil {
		return nil, err
	}

	op := withID(doc)
	res, err := coll.InsertOne(ctx, op, ioOpts)
	acknowledged, err := acknowledgement(err)
	if err != nil {
		return nil, err
	}

	out := &insert.OneResult{
		Result:     insert.CommandResult{OK: 1},
		Ops:        []bson.M{op},
		InsertedID: op["_id"],
	}
	if res != nil && res.InsertedID != nil {
		out.InsertedID = res.InsertedID
	}
	if acknowledged {
		out.Result.N = insert.Count(1)
		out.InsertedCount = insert.Count(1)
	}
	return out, nil
}

func (c *Collection) InsertMany(ctx context.Context, docs []bson.M, opts insert.Options) (*insert.ManyResult, error) {
	coll, err := c.withWriteConcern(opts)
	if err != nil {
		return nil, err
	}
	imOpts, err := insertManyOptions(opts)
	if err != nil {
		return nil, err
	}

	ops := make([]bson.M, len(docs))
	ids := make([]interface{}, len(docs))
	batch := make([]interface{}, len(docs))
	for i, doc := range docs {
		ops[i] = withID(doc)
		ids[i] = ops[i]["_id"]
		batch[i] = ops[i]
	}

	res, err := coll.InsertMany(ctx, batch, imOpts)
	acknowledged, err := acknowledgement(err)
	if err != nil {
		return nil, err
	}

	out := &insert.ManyResult{
		Result:      insert.CommandResult{OK: 1},
		Ops:         ops,
		InsertedIDs: ids,
	}
	if res != nil && res.InsertedIDs != nil {
		out.InsertedIDs = res.InsertedIDs
	}
	if acknowledged {
		out.Result.N = insert.Count(len(ops))
		out.InsertedCount = insert.Count(len(ops))
	}
	return out, nil
}

func (c *Collection) withWriteConcern(opts insert.Options) (*mongo.Collection, error) {
	wc, err := writeConcern(opts)
	if err != nil || wc == nil {
		return c.coll, err
	}
	return c.coll.Clone(options.Collection().SetWriteConcern(wc))
}

// acknowledgement separates an unacknowledged write, which is a success the server never
// confirmed, from real failures.
func acknowledgement(err error) (acknowledged bool, _ error) {
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return false, nil
	}
	return err == nil, err
}

// withID copies doc, giving it a fresh ObjectID if it has no _id. Ids are always generated
// here rather than by the server, so the copy is what was stored.
func withID(doc bson.M) bson.M {
	op := make(bson.M, len(doc)+1)
	for k, v := range doc {
		op[k] = v
	}
	if _, ok := op["_id"]; !ok {
		op["_id"] = primitive.NewObjectID()
	}
	return op
}
