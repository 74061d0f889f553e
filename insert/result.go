package insert

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommandResult is the {ok, n} acknowledgement of a write. N is nil when the write was not
// acknowledged.
type CommandResult struct {
	OK int  `bson:"ok" json:"ok"`
	N  *int `bson:"n,omitempty" json:"n,omitempty"`
}

// OneResult is the outcome of inserting a single document.
type OneResult struct {
	Result CommandResult `json:"result"`
	// Ops holds the inserted document, including its _id.
	Ops []bson.M `json:"ops"`
	// InsertedCount is nil for unacknowledged writes.
	InsertedCount *int        `json:"insertedCount,omitempty"`
	InsertedID    interface{} `json:"insertedId"`
}

// ManyResult is the outcome of inserting several documents.
type ManyResult struct {
	Result CommandResult `json:"result"`
	// Ops holds the inserted documents in order, each including its _id.
	Ops []bson.M `json:"ops"`
	// InsertedCount is nil for unacknowledged writes.
	InsertedCount *int          `json:"insertedCount,omitempty"`
	InsertedIDs   []interface{} `json:"insertedIds"`
}

// NormalizeManyResult repairs a driver result whose id list carries one leading bogus entry:
// either a nested sequence of ids or an empty placeholder. That entry is dropped and the rest
// kept in place. Any other id list is returned unchanged.
//
// When the nested form is dropped, InsertedIDs[0] no longer lines up with Ops[0]. That is the
// established behaviour callers rely on, so the id of the first document should be read from
// Ops in that case.
func NormalizeManyResult(res *ManyResult) *ManyResult {
	if res == nil {
		return nil
	}

	out := *res
	if len(res.InsertedIDs) == 0 {
		return &out
	}

	first := res.InsertedIDs[0]
	if first == nil || isSequence(first) {
		out.InsertedIDs = res.InsertedIDs[1:]
	}
	return &out
}

var elementType = reflect.TypeOf(primitive.E{})

// isSequence reports whether an id slot holds a list of ids rather than an id. Byte slices are
// binary ids, arrays (primitive.ObjectID is a [12]byte) are scalar ids and slices of elements
// (bson.D) are embedded document ids. MongoDB rejects an array _id, so any other slice is a list.
func isSequence(v interface{}) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return false
	}
	elem := rv.Type().Elem()
	return elem.Kind() != reflect.Uint8 && elem != elementType
}

// Count is a convenience for building results with an acknowledged count.
func Count(n int) *int {
	return &n
}
