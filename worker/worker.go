package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/mongoclient/o11y"
)

var ErrShouldBackoff = errors.New("should back off")

type Config struct {
	Name          string
	NoWorkBackOff backoff.BackOff
	// MaxWorkTime bounds each call to WorkFunc, zero means unbounded.
	MaxWorkTime time.Duration
	// WorkFunc should return ErrShouldBackoff if it wants the loop to begin backing off
	WorkFunc func(ctx context.Context) error
	waiter   func(ctx context.Context, delay time.Duration)
}

// Run calls WorkFunc in a loop until the context is cancelled.
func Run(ctx context.Context, cfg Config) {
	if cfg.waiter == nil {
		cfg.waiter = wait
	}
	if cfg.NoWorkBackOff == nil {
		cfg.NoWorkBackOff = defaultBackOff()
	}
	cfg.NoWorkBackOff.Reset()

	for ctx.Err() == nil {
		delay := doWork(ctx, cfg)
		if delay < 0 {
			cfg.NoWorkBackOff.Reset()
			continue
		}
		cfg.waiter(ctx, delay)
	}
}

func wait(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// doWork runs one iteration and returns how long to wait before the next one, negative
// meaning straight away.
func doWork(ctx context.Context, cfg Config) (delay time.Duration) {
	if cfg.MaxWorkTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxWorkTime)
		defer cancel()
	}

	ctx, span := o11y.StartSpan(ctx, "worker loop: "+cfg.Name)
	span.RecordMetric(o11y.Timing("worker_loop", "loop_name", "result"))
	span.AddField("loop_name", cfg.Name)
	var err error
	defer o11y.End(span, &err)

	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(span, r)
		}
	}()

	delay = -1
	err = cfg.WorkFunc(ctx)
	if errors.Is(err, ErrShouldBackoff) {
		delay = cfg.NoWorkBackOff.NextBackOff()
		err = nil
	}

	span.AddField("backoff_ms", delay.Milliseconds())
	return delay
}
