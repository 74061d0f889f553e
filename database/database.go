package database

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/circleci/mongoclient/config/secret"
	"github.com/circleci/mongoclient/driver"
	"github.com/circleci/mongoclient/driver/mongodriver"
	"github.com/circleci/mongoclient/o11y"
)

type State int

const (
	StateConnecting State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type Option func(*Database)

// WithDriver replaces the default MongoDB driver.
func WithDriver(d driver.Driver) Option {
	return func(db *Database) {
		db.driver = d
	}
}

// Database holds one driver client. It moves from connecting to either ready or failed exactly
// once and never leaves those states.
type Database struct {
	driver driver.Driver

	mu     sync.RWMutex
	state  State
	client driver.Client
	err    error

	ready chan struct{}
	errs  chan error
	done  chan struct{}
}

// Open starts connecting to uri in the background. The option mapping is handed to the driver
// as is. There is no retry: if the connection fails the error is delivered on Errors and the
// database stays failed.
//
// ctx bounds the connection attempt, not the lifetime of the database.
func Open(ctx context.Context, uri string, opts map[string]interface{}, options ...Option) *Database {
	d := &Database{
		state: StateConnecting,
		ready: make(chan struct{}),
		errs:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	for _, o := range options {
		o(d)
	}
	if d.driver == nil {
		d.driver = mongodriver.New(mongodriver.Config{})
	}

	go d.connect(ctx, uri, opts)
	return d
}

func (d *Database) connect(ctx context.Context, uri string, opts map[string]interface{}) {
	redacted := secret.RedactURI(uri)

	client, err := d.driver.Connect(ctx, uri, opts)
	if err != nil {
		cerr := &ConnectionError{URI: redacted, Err: err}
		o11y.LogError(ctx, "database: connect", cerr, o11y.Field("uri", redacted))

		d.mu.Lock()
		d.state = StateFailed
		d.err = cerr
		d.mu.Unlock()

		d.errs <- cerr
		close(d.errs)
		close(d.done)
		return
	}

	o11y.Log(ctx, "database: connected", o11y.Field("uri", redacted))

	d.mu.Lock()
	d.state = StateReady
	d.client = client
	d.mu.Unlock()

	close(d.ready)
	close(d.errs)
	close(d.done)
}

// Ready is closed once the database is connected. It is never closed if connecting fails.
func (d *Database) Ready() <-chan struct{} {
	return d.ready
}

// Errors delivers the *ConnectionError if connecting fails. It is closed once connecting has
// finished either way, so a receive never blocks after Ready.
func (d *Database) Errors() <-chan error {
	return d.errs
}

// Wait blocks until the database is ready, connecting has failed, or ctx is done.
func (d *Database) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Database) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Client returns the driver client once ready.
func (d *Database) Client() (driver.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != StateReady {
		return nil, ErrNotReady
	}
	return d.client, nil
}

// Collection returns the named collection. The handle may be taken before the database is
// ready, but its operations fail with ErrNotReady until it is.
func (d *Database) Collection(name string) *Collection {
	return &Collection{db: d, name: name}
}

// C is shorthand for Collection.
func (d *Database) C(name string) *Collection {
	return d.Collection(name)
}

// Admin returns the driver's admin handle.
func (d *Database) Admin() driver.Admin {
	client, err := d.Client()
	if err != nil {
		return notReadyAdmin{}
	}
	return client.Admin()
}

// Close closes the driver client.
func (d *Database) Close(ctx context.Context) error {
	client, err := d.Client()
	if err != nil {
		return err
	}
	return client.Close(ctx)
}

type notReadyAdmin struct{}

func (notReadyAdmin) Command(context.Context, bson.D) (bson.M, error) {
	return nil, ErrNotReady
}
