// Package rundef applies runtime defaults for a process running in a container.
package rundef

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/mongoclient/o11y"
)

// Defaults sets GOMEMLIMIT and GOMAXPROCS from the container limits. Neither failing stops
// the process, so callers usually log the error and carry on.
func Defaults(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "rundef: defaults")
	defer o11y.End(span, &err)

	var eg errgroup.Group
	eg.Go(func() error {
		return MemLimit(ctx)
	})
	eg.Go(func() error {
		return MaxProcs(ctx)
	})
	return eg.Wait()
}
