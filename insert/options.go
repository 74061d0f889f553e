package insert

import (
	"context"
	"math"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/circleci/mongoclient/o11y"
)

// Options are the caller supplied settings for a single insert call. A nil Options means no
// options were given, and the driver defaults apply.
type Options map[string]interface{}

// Recognised option keys. Anything else is passed to the driver untouched.
const (
	KeyForceServerObjectID      = "forceServerObjectId"
	KeyWriteConcern             = "writeConcern"
	KeyOrdered                  = "ordered"
	KeyW                        = "w"
	KeyJ                        = "j"
	KeyWTimeout                 = "wtimeout"
	KeyBypassDocumentValidation = "bypassDocumentValidation"
	KeyComment                  = "comment"
)

// ErrForceServerObjectIDDisabled is the diagnostic sent when a caller still asks for server
// assigned ids. It is a warning, the insert carries on with client generated ids.
var ErrForceServerObjectIDDisabled = o11y.NewWarning(
	"options.forceServerObjectId is disabled and has no effect, please remove it")

// NormalizeOptions returns the driver ready form of opts.
//
// A truthy forceServerObjectId is forced to false and reported as deprecated. The entries of
// writeConcern are lifted to the top level, replacing any top level value of the same name,
// and writeConcern itself is dropped. Everything else is copied as is. opts is not modified.
func NormalizeOptions(ctx context.Context, opts Options) Options {
	if opts == nil {
		return nil
	}

	out := make(Options, len(opts))
	for k, v := range opts {
		out[k] = v
	}

	if v, ok := out[KeyForceServerObjectID]; ok && truthy(v) {
		out[KeyForceServerObjectID] = false
		o11y.LogError(ctx, "insert: deprecated option", ErrForceServerObjectIDDisabled,
			o11y.Field("option", KeyForceServerObjectID),
		)
	}

	if wc, ok := out[KeyWriteConcern]; ok {
		if wc == nil {
			delete(out, KeyWriteConcern)
		} else if fields, ok := asMap(wc); ok {
			delete(out, KeyWriteConcern)
			for _, f := range fields {
				out[f.Key] = f.Value
			}
		}
	}

	return out
}

// Ordered reports the ordered setting, which defaults to true.
func (o Options) Ordered() bool {
	v, ok := o[KeyOrdered]
	if !ok || v == nil {
		return true
	}
	return truthy(v)
}

// asMap flattens the mapping kinds a caller might use for a write concern. bson.D keeps its
// order, so a repeated key resolves to the last entry the same way a map literal would.
func asMap(v interface{}) (bson.D, bool) {
	var m map[string]interface{}
	switch t := v.(type) {
	case bson.D:
		return t, true
	case map[string]interface{}:
		m = t
	case bson.M:
		m = t
	case Options:
		m = t
	default:
		return nil, false
	}
	d := make(bson.D, 0, len(m))
	for k, val := range m {
		d = append(d, bson.E{Key: k, Value: val})
	}
	return d, true
}

// truthy mirrors how loosely typed option values are read: false, nil, zero or NaN numbers
// and empty strings are off, anything else is on.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case float64:
		return t != 0 && !math.IsNaN(t)
	}
	return true
}
