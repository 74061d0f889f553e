/*
Package fakedriver is an in-memory driver.Driver for tests.

It stores documents per collection, generates ObjectIDs the way the real adapter does,
honours w: 0 (unacknowledged), ordered and unordered inserts, rejects duplicate ids, and
answers the isMaster and ping admin commands. Every insert call is recorded with the options
it received, so tests can see exactly what reached the driver.
*/
package fakedriver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/insert"
)

var (
	ErrDuplicateKey   = errors.New("E11000 duplicate key error")
	ErrClosed         = errors.New("client is disconnected")
	ErrUnknownCommand = errors.New("no such command")
)

// Call is one recorded insert.
type Call struct {
	Collection string
	Op         string
	Docs       []bson.M
	Options    insert.Options
}

type Driver struct {
	// ConnectErr, if set, is returned from Connect.
	ConnectErr error
	// Gate, if set, holds Connect until it is closed or the context is done.
	Gate chan struct{}
	// RawManyResult, if set, rewrites the result of every InsertMany before it is returned,
	// to reproduce driver quirks.
	RawManyResult func(*insert.ManyResult) *insert.ManyResult

	mu          sync.Mutex
	connects    int
	uri         string
	opts        map[string]interface{}
	calls       []Call
	collections map[string][]bson.M
	closed      bool
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{collections: map[string][]bson.M{}}
}

func (d *Driver) Connect(ctx context.Context, uri string, opts map[string]interface{}) (driver.Client, error) {
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	d.uri = uri
	d.opts = opts
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	return &Client{d: d}, nil
}

// Connects is the number of times Connect was called.
func (d *Driver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// ConnectedWith returns the arguments of the last Connect.
func (d *Driver) ConnectedWith() (string, map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uri, d.opts
}

func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Docs returns the documents stored in the named collection.
func (d *Driver) Docs(collection string) []bson.M {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bson.M(nil), d.collections[collection]...)
}

func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type Client struct {
	d *Driver
}

func (c *Client) Collection(name string) driver.Collection {
	return &Collection{d: c.d, name: name}
}

func (c *Client) Admin() driver.Admin {
	return &Admin{d: c.d}
}

func (c *Client) Close(context.Context) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.closed {
		return ErrClosed
	}
	c.d.closed = true
	return nil
}

func (c *Client) HealthChecks() (name string, ready, live func(ctx context.Context) error) {
	return "fake", func(context.Context) error {
		if c.d.Closed() {
			return ErrClosed
		}
		return nil
	}, nil
}

type Collection struct {
	d    *Driver
	name string
}

func (c *Collection) InsertOne(_ context.Context, doc bson.M, opts insert.Options) (*insert.OneResult, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()

	op := withID(doc)
	c.d.calls = append(c.d.calls, Call{Collection: c.name, Op: "insertOne", Docs: []bson.M{op}, Options: opts})
	if c.d.closed {
		return nil, ErrClosed
	}
	if err := c.d.store(c.name, op); err != nil {
		return nil, err
	}

	res := &insert.OneResult{
		Result:     insert.CommandResult{OK: 1},
		Ops:        []bson.M{op},
		InsertedID: op["_id"],
	}
	if acknowledged(opts) {
		res.Result.N = insert.Count(1)
		res.InsertedCount = insert.Count(1)
	}
	return res, nil
}

func (c *Collection) InsertMany(_ context.Context, docs []bson.M, opts insert.Options) (*insert.ManyResult, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()

	ops := make([]bson.M, len(docs))
	ids := make([]interface{}, len(docs))
	for i, doc := range docs {
		ops[i] = withID(doc)
		ids[i] = ops[i]["_id"]
	}
	c.d.calls = append(c.d.calls, Call{Collection: c.name, Op: "insertMany", Docs: ops, Options: opts})
	if c.d.closed {
		return nil, ErrClosed
	}
	if len(docs) == 0 {
		return nil, errors.New("must provide at least one element in input slice")
	}

	var errs []error
	for _, op := range ops {
		if err := c.d.store(c.name, op); err != nil {
			errs = append(errs, err)
			if opts.Ordered() {
				break
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	res := &insert.ManyResult{
		Result:      insert.CommandResult{OK: 1},
		Ops:         ops,
		InsertedIDs: ids,
	}
	if acknowledged(opts) {
		res.Result.N = insert.Count(len(ops))
		res.InsertedCount = insert.Count(len(ops))
	}
	if c.d.RawManyResult != nil {
		res = c.d.RawManyResult(res)
	}
	return res, nil
}

// store must be called with the lock held.
func (d *Driver) store(collection string, op bson.M) error {
	for _, existing := range d.collections[collection] {
		if reflect.DeepEqual(existing["_id"], op["_id"]) {
			return fmt.Errorf("%w: collection %s _id %v", ErrDuplicateKey, collection, op["_id"])
		}
	}
	d.collections[collection] = append(d.collections[collection], op)
	return nil
}

type Admin struct {
	d *Driver
}

func (a *Admin) Command(_ context.Context, cmd bson.D) (bson.M, error) {
	if a.d.Closed() {
		return nil, ErrClosed
	}
	if len(cmd) == 0 {
		return nil, ErrUnknownCommand
	}
	switch cmd[0].Key {
	case "isMaster", "ismaster", "hello":
		return bson.M{"ok": 1, "ismaster": true, "isWritablePrimary": true, "maxWriteBatchSize": 100000}, nil
	case "ping":
		return bson.M{"ok": 1}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd[0].Key)
}

func acknowledged(opts insert.Options) bool {
	w, ok := opts[insert.KeyW]
	if !ok {
		return true
	}
	switch n := w.(type) {
	case int:
		return n != 0
	case int32:
		return n != 0
	case int64:
		return n != 0
	case float64:
		return n != 0
	}
	return true
}

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
