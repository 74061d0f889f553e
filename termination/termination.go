// Package termination turns process signals into an error that ends a system run.
package termination

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var ErrTerminated = errors.New("terminated")

// Handle blocks until the process receives an interrupt or terminate signal, then waits for
// delay before returning ErrTerminated. It returns nil if ctx is done first.
func Handle(ctx context.Context, delay time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return ErrTerminated
}
