package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"computer-club-backend/internal/logging"
)

// TaskFunc is one run of a scheduled job.
type TaskFunc func(ctx context.Context) error

// IntervalTask runs a function every interval. A failed run is logged and retried on
// the next tick instead of restarting the service.
type IntervalTask struct {
	name      string
	interval  time.Duration
	fn        TaskFunc
	immediate bool
	log       zerolog.Logger
}

// Every creates an interval task. The first run happens one interval after start
// unless Immediately is applied.
func Every(name string, interval time.Duration, fn TaskFunc) *IntervalTask {
	return &IntervalTask{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      logging.Component("schedule").With().Str("task", name).Logger(),
	}
}

// Immediately makes the task also run as soon as it is started.
func (t *IntervalTask) Immediately() *IntervalTask {
	t.immediate = true
	return t
}

func (t *IntervalTask) Serve(ctx context.Context) error {
	t.log.Info().Dur("interval", t.interval).Msg("scheduled task started")

	if t.immediate {
		t.run(ctx)
	}

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("scheduled task shutting down")
			return ctx.Err()
		case <-timer.C:
			t.run(ctx)
			timer.Reset(t.interval)
		}
	}
}

func (t *IntervalTask) run(ctx context.Context) {
	start := time.Now()
	if err := t.fn(ctx); err != nil {
		t.log.Warn().Err(err).Dur("took", time.Since(start)).Msg("scheduled run failed")
		return
	}
	t.log.Debug().Dur("took", time.Since(start)).Msg("scheduled run finished")
}

func (t *IntervalTask) String() string {
	return t.name
}

// OneShotTask runs a function once at a given moment.
type OneShotTask struct {
	name string
	when time.Time
	fn   TaskFunc
	log  zerolog.Logger
}

// At creates a task that runs fn at when, or immediately if when has passed. It is
// never restarted, whatever fn returns.
func At(name string, when time.Time, fn TaskFunc) *OneShotTask {
	return &OneShotTask{
		name: name,
		when: when,
		fn:   fn,
		log:  logging.Component("schedule").With().Str("task", name).Logger(),
	}
}

func (t *OneShotTask) Serve(ctx context.Context) error {
	timer := time.NewTimer(time.Until(t.when))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if err := t.fn(ctx); err != nil {
		t.log.Warn().Err(err).Msg("one-shot task failed")
	} else {
		t.log.Info().Msg("one-shot task finished")
	}
	return suture.ErrDoNotRestart
}

func (t *OneShotTask) String() string {
	return t.name
}

// FuncService supervises a long-running function such as a subscription loop; it is
// restarted with backoff whenever it returns.
type FuncService struct {
	name string
	fn   TaskFunc
}

// Func wraps fn as a supervised service.
func Func(name string, fn TaskFunc) *FuncService {
	return &FuncService{name: name, fn: fn}
}

func (f *FuncService) Serve(ctx context.Context) error {
	return f.fn(ctx)
}

func (f *FuncService) String() string {
	return f.name
}
