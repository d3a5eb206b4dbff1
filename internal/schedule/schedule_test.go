package schedule

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
)

func TestEvery(t *testing.T) {
	var runs atomic.Int32
	task := Every("counter", 10*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.Equal(t, "counter", task.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Serve(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 4 }, time.Second, 5*time.Millisecond,
		"a failed run must not stop the schedule")
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestEvery_Immediately(t *testing.T) {
	var runs atomic.Int32
	task := Every("warm", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}).Immediately()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Serve(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, int32(1), runs.Load())
}

func TestAt(t *testing.T) {
	testCases := []struct {
		name string
		when time.Time
		err  error
	}{
		{name: "future moment", when: time.Now().Add(20 * time.Millisecond)},
		{name: "moment already passed", when: time.Now().Add(-time.Hour)},
		{name: "failure is not restarted", when: time.Now(), err: errors.New("boom")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var runs atomic.Int32
			task := At(tc.name, tc.when, func(context.Context) error {
				runs.Add(1)
				return tc.err
			})

			err := task.Serve(context.Background())
			assert.ErrorIs(t, err, suture.ErrDoNotRestart)
			assert.Equal(t, int32(1), runs.Load())
			assert.False(t, time.Now().Before(tc.when))
		})
	}
}

func TestAt_CancelledBeforeDue(t *testing.T) {
	task := At("later", time.Now().Add(time.Hour), func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, task.Serve(ctx), context.Canceled)
}

type fakeServer struct {
	mu       sync.Mutex
	stop     chan struct{}
	shutdown bool
	fail     error
}

func (f *fakeServer) ListenAndServe() error {
	if f.fail != nil {
		return f.fail
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
	close(f.stop)
	return nil
}

func TestHTTPService(t *testing.T) {
	srv := &fakeServer{stop: make(chan struct{})}
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, srv.shutdown)

	failing := NewHTTPService(&fakeServer{fail: errors.New("address in use")}, 0)
	assert.ErrorContains(t, failing.Serve(context.Background()), "address in use")
}

func TestTree(t *testing.T) {
	tree := NewTree("club-test", TreeConfig{FailureBackoff: 10 * time.Millisecond})

	var interval, oneShot atomic.Int32
	tree.Add(Every("tick", 5*time.Millisecond, func(context.Context) error {
		interval.Add(1)
		return nil
	}))
	tree.Add(At("once", time.Now(), func(context.Context) error {
		oneShot.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return interval.Load() >= 3 && oneShot.Load() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-errCh
	assert.Equal(t, int32(1), oneShot.Load())
}
