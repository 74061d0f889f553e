package database

import (
	"context"
	"fmt"

	"github.com/circleci/mongoclient/o11y"
)

// span provides an o11y span to ensure database operations are reported consistently.
func span(ctx context.Context, entity, queryName string) (context.Context, o11y.Span) {
	ctx, span := o11y.StartSpan(ctx, fmt.Sprintf("db: %s.%s", entity, queryName))
	span.RecordMetric(o11y.Timing("db.query", "db.entity", "db.query_name", "result"))
	span.AddRawField("db.system", "mongo")
	span.AddRawField("db.entity", entity)
	span.AddRawField("db.query_name", queryName)
	return ctx, span
}
