package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"careerwatch/internal/diff"
	"careerwatch/internal/domain"
	"careerwatch/internal/events"
	"careerwatch/internal/notify"
	"careerwatch/internal/report"
	"careerwatch/internal/source"
	"careerwatch/internal/store"
)

// ErrBusy is returned by RunOnce when a cycle is already in progress.
var ErrBusy = errors.New("cycle already running")

type SnapshotStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap domain.Snapshot) error
}

type History interface {
	RecordRun(ctx context.Context, r store.Run) error
	RecordSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Status is the last-cycle summary served by the status API.
type Status struct {
	LastRunAt       string `json:"last_run_at"`
	LastOkAt        string `json:"last_ok_at"`
	LastError       string `json:"last_error"`
	LastNotifyError string `json:"last_notify_error,omitempty"`
	LastPostings    int    `json:"last_postings"`
	LastAdded       int    `json:"last_added"`
	LastRemoved     int    `json:"last_removed"`
	NextRunAt       string `json:"next_run_at,omitempty"`
	Runs            int    `json:"runs"`
	Running         bool   `json:"running"`
}

// Result is what one successful fetch produced.
type Result struct {
	Snapshot domain.Snapshot
	// nil on the first run (no stored snapshot)
	Diff       *domain.Diff
	Report     string
	HasNew     bool
	NotifyErr  error
	PersistErr error
}

type Poller struct {
	Source      source.Source
	Departments []string
	Store       SnapshotStore
	History     History // optional
	Renderer    *report.Renderer
	Notifier    notify.Notifier
	Hub         *events.Hub // optional
	// FetchTimeout bounds Source.Fetch; zero means no extra bound.
	FetchTimeout time.Duration
	Now          func() time.Time

	running atomic.Bool

	mu     sync.Mutex
	status Status
	last   *Result
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// RunOnce runs one cycle: fetch, diff against the stored snapshot, render,
// notify, persist. Only a fetch failure is returned as an error; it leaves the
// stored snapshot untouched. Notification and persistence failures are logged
// and reported on the Result.
func (p *Poller) RunOnce(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer p.running.Store(false)

	started := p.now()
	name := p.Source.Name()
	p.update(func(st *Status) {
		st.Running = true
		st.LastRunAt = started.Format(time.RFC3339)
	})
	defer p.update(func(st *Status) {
		st.Running = false
		st.Runs++
	})
	p.Hub.Emit(events.CycleStarted, events.Cycle{Source: name})
	log.Printf("[poll] Running source=%s", name)

	fctx := ctx
	if p.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, p.FetchTimeout)
		defer cancel()
	}
	page, err := p.Source.Fetch(fctx)
	if err != nil {
		err = fmt.Errorf("fetch %s: %w", name, err)
		log.Printf("[poll] %v", err)
		p.update(func(st *Status) { st.LastError = err.Error() })
		p.recordRun(ctx, store.Run{
			StartedAt:  started,
			FinishedAt: p.now(),
			Source:     name,
			Error:      err.Error(),
		})
		p.Hub.Emit(events.CycleFailed, events.Cycle{
			Source:     name,
			Error:      err.Error(),
			DurationMs: p.now().Sub(started).Milliseconds(),
		})
		return Result{}, err
	}

	cur := source.Filter(page, p.Departments, p.now())
	log.Printf("[poll] got source=%s postings=%d (page=%d departments=%d)",
		name, cur.Len(), len(page.Postings), len(cur.DepartmentCounts))

	prev, err := p.Store.Load(ctx)
	if err != nil {
		log.Printf("[poll] load snapshot failed, treating as first run: %v", err)
		prev = nil
	}
	d := diff.Against(prev, cur)

	res := Result{
		Snapshot: cur,
		Diff:     d,
		Report:   p.Renderer.Render(cur, d),
		HasNew:   report.HasNew(d),
	}

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, res.Report, res.HasNew); err != nil {
			res.NotifyErr = err
			log.Printf("[poll] notify failed: %v", err)
		}
	}

	if err := p.Store.Save(ctx, cur); err != nil {
		res.PersistErr = err
		log.Printf("[poll] save snapshot failed: %v", err)
	}

	if p.History != nil {
		if err := p.History.RecordSnapshot(ctx, cur); err != nil {
			log.Printf("[poll] history snapshot failed: %v", err)
		}
	}

	run := store.Run{
		StartedAt:  started,
		FinishedAt: p.now(),
		Source:     name,
		OK:         true,
		Postings:   cur.Len(),
	}
	if d != nil {
		run.Added = len(d.Added)
		run.Removed = len(d.Removed)
	}
	if res.NotifyErr != nil {
		run.NotifyError = res.NotifyErr.Error()
	}
	if res.PersistErr != nil {
		run.Error = "persist: " + res.PersistErr.Error()
	}
	p.recordRun(ctx, run)

	p.update(func(st *Status) {
		st.LastError = run.Error
		st.LastNotifyError = run.NotifyError
		st.LastOkAt = run.FinishedAt.Format(time.RFC3339)
		st.LastPostings = run.Postings
		st.LastAdded = run.Added
		st.LastRemoved = run.Removed
	})
	p.mu.Lock()
	last := res
	p.last = &last
	p.mu.Unlock()

	evt := events.Cycle{
		Source:     name,
		Postings:   cur.Len(),
		FirstRun:   d == nil,
		DurationMs: run.FinishedAt.Sub(started).Milliseconds(),
	}
	if d != nil {
		evt.Added = titles(d.Added)
		evt.Removed = titles(d.Removed)
	}
	p.Hub.Emit(events.CycleFinished, evt)
	log.Printf("[poll] ok source=%s postings=%d added=%d removed=%d first_run=%v",
		name, run.Postings, run.Added, run.Removed, d == nil)

	return res, nil
}

// Task adapts RunOnce to the scheduler's task signature.
func (p *Poller) Task(ctx context.Context) error {
	_, err := p.RunOnce(ctx)
	return err
}

func (p *Poller) recordRun(ctx context.Context, r store.Run) {
	if p.History == nil {
		return
	}
	if err := p.History.RecordRun(ctx, r); err != nil {
		log.Printf("[poll] history run failed: %v", err)
	}
}

func (p *Poller) update(fn func(st *Status)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SetNextRun records the upcoming scheduled slot for Status.
func (p *Poller) SetNextRun(t time.Time) {
	p.update(func(st *Status) { st.NextRunAt = t.Format(time.RFC3339) })
}

// Last returns the result of the most recent successful cycle, if any.
func (p *Poller) Last() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Result{}, false
	}
	return *p.last, true
}

func titles(ps []domain.Posting) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Title)
	}
	return out
}
