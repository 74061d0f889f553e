package mongodriver

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"time"

	"github.com/gwatts/rootcerts"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/circleci/mongoclient/insert"
	"github.com/circleci/mongoclient/o11y"
)

// Client option keys understood by clientOptions. They follow the connection string option names.
const (
	OptAppName                  = "appName"
	OptMaxPoolSize              = "maxPoolSize"
	OptMinPoolSize              = "minPoolSize"
	OptConnectTimeoutMS         = "connectTimeoutMS"
	OptServerSelectionTimeoutMS = "serverSelectionTimeoutMS"
	OptSocketTimeoutMS          = "socketTimeoutMS"
	OptReplicaSet               = "replicaSet"
	OptDirectConnection         = "directConnection"
	OptRetryWrites              = "retryWrites"
	OptTLS                      = "tls"
)

// clientOptions applies the option mapping on top of the connection string. Keys that are not
// understood are logged and skipped, values of the wrong type are an error.
func clientOptions(ctx context.Context, uri string, opts map[string]interface{}) (*options.ClientOptions, error) {
	copts := options.Client().ApplyURI(uri)

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := opts[k]
		switch k {
		case OptAppName:
			s, err := stringOpt(k, v)
			if err != nil {
				return nil, err
			}
			copts.SetAppName(s)
		case OptMaxPoolSize, OptMinPoolSize:
			n, ok := toInt64(v)
			if !ok || n < 0 {
				return nil, typeError(k, "a non-negative integer", v)
			}
			if k == OptMaxPoolSize {
				copts.SetMaxPoolSize(uint64(n))
			} else {
				copts.SetMinPoolSize(uint64(n))
			}
		case OptConnectTimeoutMS, OptServerSelectionTimeoutMS, OptSocketTimeoutMS:
			d, err := millisOpt(k, v)
			if err != nil {
				return nil, err
			}
			switch k {
			case OptConnectTimeoutMS:
				copts.SetConnectTimeout(d)
			case OptServerSelectionTimeoutMS:
				copts.SetServerSelectionTimeout(d)
			default:
				copts.SetSocketTimeout(d)
			}
		case OptReplicaSet:
			s, err := stringOpt(k, v)
			if err != nil {
				return nil, err
			}
			copts.SetReplicaSet(s)
		case OptDirectConnection, OptRetryWrites, OptTLS:
			b, ok := v.(bool)
			if !ok {
				return nil, typeError(k, "a bool", v)
			}
			switch k {
			case OptDirectConnection:
				copts.SetDirect(b)
			case OptRetryWrites:
				copts.SetRetryWrites(b)
			default:
				if b {
					copts.SetTLSConfig(tlsConfig())
				}
			}
		default:
			o11y.Log(ctx, "mongodriver: ignored client option", o11y.Field("option", k))
		}
	}
	return copts, nil
}

func tlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootcerts.ServerCertPool(),
	}
}

// writeConcern builds a write concern from the flattened w, j and wtimeout keys. It returns
// nil when none are set, leaving the collection default in place.
func writeConcern(opts insert.Options) (*writeconcern.WriteConcern, error) {
	var wc *writeconcern.WriteConcern
	get := func() *writeconcern.WriteConcern {
		if wc == nil {
			wc = &writeconcern.WriteConcern{}
		}
		return wc
	}

	if v, ok := opts[insert.KeyW]; ok && v != nil {
		if s, ok := v.(string); ok {
			get().W = s
		} else {
			n, ok := toInt64(v)
			if !ok || n < 0 {
				return nil, typeError(insert.KeyW, "a non-negative integer or a tag", v)
			}
			get().W = int(n)
		}
	}
	if v, ok := opts[insert.KeyJ]; ok && v != nil {
		j, ok := v.(bool)
		if !ok {
			return nil, typeError(insert.KeyJ, "a bool", v)
		}
		get().Journal = &j
	}
	if v, ok := opts[insert.KeyWTimeout]; ok && v != nil {
		d, err := millisOpt(insert.KeyWTimeout, v)
		if err != nil {
			return nil, err
		}
		get().WTimeout = d
	}
	return wc, nil
}

func insertOneOptions(opts insert.Options) (*options.InsertOneOptions, error) {
	o := options.InsertOne()
	if v, ok := opts[insert.KeyBypassDocumentValidation]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(insert.KeyBypassDocumentValidation, "a bool", v)
		}
		o.SetBypassDocumentValidation(b)
	}
	if v, ok := opts[insert.KeyComment]; ok && v != nil {
		o.SetComment(v)
	}
	return o, nil
}

func insertManyOptions(opts insert.Options) (*options.InsertManyOptions, error) {
	o := options.InsertMany().SetOrdered(true)
	if v, ok := opts[insert.KeyOrdered]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(insert.KeyOrdered, "a bool", v)
		}
		o.SetOrdered(b)
	}
	if v, ok := opts[insert.KeyBypassDocumentValidation]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(insert.KeyBypassDocumentValidation, "a bool", v)
		}
		o.SetBypassDocumentValidation(b)
	}
	if v, ok := opts[insert.KeyComment]; ok && v != nil {
		o.SetComment(v)
	}
	return o, nil
}

func stringOpt(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "a string", v)
	}
	return s, nil
}

func millisOpt(key string, v interface{}) (time.Duration, error) {
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, typeError(key, "a non-negative number of milliseconds", v)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func typeError(key, want string, got interface{}) error {
	return fmt.Errorf("mongodriver: option %q: want %s, got %T", key, want, got)
}

// toInt64 accepts the numeric types option values arrive as, including whole floats decoded
// from JSON.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	}
	return 0, false
}
