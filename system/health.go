package system

import "context"

type HealthChecker interface {
	// HealthChecks returns the name of the checked dependency and its readiness and liveness
	// probes. Either probe may be nil.
	HealthChecks() (name string, ready, live func(ctx context.Context) error)
}
