package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// NextFunc returns the first run time strictly after now. ok=false means there
// is no further run.
type NextFunc func(now time.Time) (next time.Time, ok bool)

// Once never schedules a run; combine with Options.RunOnStart for a single cycle.
func Once() NextFunc {
	return func(time.Time) (time.Time, bool) { return time.Time{}, false }
}

func Interval(d time.Duration) NextFunc {
	return func(now time.Time) (time.Time, bool) {
		if d <= 0 {
			return time.Time{}, false
		}
		return now.Add(d), true
	}
}

// DailyAt fires every day at hour:minute wall-clock time in loc.
func DailyAt(hour, minute int, loc *time.Location) NextFunc {
	if loc == nil {
		loc = time.Local
	}
	return func(now time.Time) (time.Time, bool) {
		n := now.In(loc)
		at := time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, loc)
		if !at.After(n) {
			at = time.Date(n.Year(), n.Month(), n.Day()+1, hour, minute, 0, 0, loc)
		}
		return at, true
	}
}

// Cron parses a standard 5-field expression or a descriptor (@daily,
// @every 1h). A CRON_TZ= prefix in spec overrides loc.
func Cron(spec string, loc *time.Location) (NextFunc, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("cron %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return func(now time.Time) (time.Time, bool) {
		next := sched.Next(now.In(loc))
		return next, !next.IsZero()
	}, nil
}

type Options struct {
	// Trigger runs a cycle immediately when it receives. Sends while a cycle
	// is running are picked up once it finishes.
	Trigger <-chan struct{}
	// RunOnStart runs a cycle before the first scheduled slot.
	RunOnStart bool
	Now        func() time.Time
	// OnNext is told each upcoming slot (status reporting).
	OnNext func(next time.Time)
}

// Loop runs task at every slot produced by next until ctx is done or next
// reports no further run. Cycles never overlap. Cancelling ctx ends the wait
// between cycles; a running cycle gets a context that is not cancelled with
// ctx and is allowed to finish.
func Loop(ctx context.Context, next NextFunc, name string, task Task, opts Options) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	run := func() {
		if err := task(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[%s] error: %v", name, err)
		}
	}

	if opts.RunOnStart {
		run()
	}

	for {
		if ctx.Err() != nil {
			return
		}
		at, ok := next(now())
		if !ok && opts.Trigger == nil {
			log.Printf("[%s] no further runs scheduled", name)
			return
		}

		if ok {
			wait := at.Sub(now())
			if wait < 0 {
				wait = 0
			}
			log.Printf("[%s] next run %s (in %s)", name, at.Format("Mon 2006-01-02 15:04 MST"), wait.Round(time.Second))
			if opts.OnNext != nil {
				opts.OnNext(at)
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			case _, open := <-opts.Trigger:
				t.Stop()
				if !open {
					return
				}
				log.Printf("[%s] triggered", name)
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case _, open := <-opts.Trigger:
				if !open {
					return
				}
				log.Printf("[%s] triggered", name)
			}
		}
		run()
	}
}
