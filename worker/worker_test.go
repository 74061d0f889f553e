package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/mongoclient/testing/testcontext"
)

func TestRun_SleepsAfterNoWorkCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(testcontext.Background())
	defer cancel()
	counter := 0
	expected := 10
	f := func(ctx context.Context) error {
		counter++
		if counter == expected {
			cancel()
		}
		return ErrShouldBackoff
	}

	waitCalls := 0
	waiter := func(_ context.Context, delay time.Duration) {
		waitCalls++
	}

	backOff := new(fakeBackOff)
	Run(ctx, Config{
		NoWorkBackOff: backOff,
		WorkFunc:      f,
		waiter:        waiter,
	})

	assert.Check(t, cmp.Equal(backOff.nextCallCount, expected))
	assert.Check(t, cmp.Equal(waitCalls, expected))
	assert.Check(t, cmp.Equal(backOff.resetCallCount, 1),
		"reset should only be called once to initialize it")
}

func TestRun_DoesNotSleepAfterWorkOrErrors(t *testing.T) {
	for _, result := range []error{nil, errors.New("something went horribly wrong")} {
		ctx, cancel := context.WithCancel(testcontext.Background())
		counter := 0
		expected := 3
		f := func(ctx context.Context) error {
			counter++
			if counter == expected {
				cancel()
			}
			return result
		}

		backOff := new(fakeBackOff)
		Run(ctx, Config{
			NoWorkBackOff: backOff,
			WorkFunc:      f,
			waiter: func(context.Context, time.Duration) {
				panic("wait should never be called")
			},
		})

		assert.Check(t, cmp.Equal(backOff.nextCallCount, 0))
		assert.Check(t, cmp.Equal(backOff.resetCallCount, expected+1))
		cancel()
	}
}

func TestRun_ExitsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testcontext.Background())

	var calls int64
	ran := make(chan struct{})
	go func() {
		Run(ctx, Config{
			NoWorkBackOff: backoff.NewConstantBackOff(time.Millisecond),
			WorkFunc: func(ctx context.Context) error {
				atomic.AddInt64(&calls, 1)
				return ErrShouldBackoff
			},
		})
		close(ran)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("run did not finish in time")
	}

	assert.Check(t, atomic.LoadInt64(&calls) > 1)
}

func TestDoWork_WorkFuncPanics(t *testing.T) {
	cfg := Config{
		MaxWorkTime: time.Second,
		WorkFunc: func(ctx context.Context) error {
			panic("Oops")
		},
	}
	assert.Check(t, doWork(testcontext.Background(), cfg) < 0)
}

func TestDoWork_MaxWorkTime(t *testing.T) {
	cfg := Config{
		MaxWorkTime: time.Millisecond,
		WorkFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	assert.Check(t, doWork(testcontext.Background(), cfg) < 0)
}

type fakeBackOff struct {
	nextBackOff    time.Duration
	nextCallCount  int
	resetCallCount int
}

func (b *fakeBackOff) NextBackOff() time.Duration {
	b.nextCallCount++
	return b.nextBackOff
}

func (b *fakeBackOff) Reset() {
	b.resetCallCount++
}

var _ backoff.BackOff = &fakeBackOff{}
