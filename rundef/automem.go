package rundef

import (
	"context"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/circleci/mongoclient/o11y"
)

// memRatio leaves headroom for the driver's connection buffers outside the Go heap.
const memRatio = 0.9

// MemLimit sets GOMEMLIMIT to memRatio of the cgroup memory limit, or of system memory when
// there is no cgroup.
func MemLimit(ctx context.Context) (err error) {
	_, span := o11y.StartSpan(ctx, "rundef: mem limit")
	defer o11y.End(span, &err)

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(memRatio),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		return err
	}
	span.AddField("limit", limit)
	span.AddField("ratio", memRatio)
	return nil
}
