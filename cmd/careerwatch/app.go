package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"careerwatch/internal/config"
	"careerwatch/internal/events"
	"careerwatch/internal/httpapi"
	"careerwatch/internal/notify"
	"careerwatch/internal/poll"
	"careerwatch/internal/report"
	"careerwatch/internal/scheduler"
	"careerwatch/internal/secrets"
	"careerwatch/internal/source"
	"careerwatch/internal/source/browser"
	"careerwatch/internal/source/lever"
	"careerwatch/internal/source/static"
	"careerwatch/internal/source/util"
	"careerwatch/internal/store"

	"golang.org/x/sync/errgroup"
)

type app struct {
	cfg        config.Config
	cfgPath    string
	hub        *events.Hub
	db         *store.DB // nil without storage.history_db
	files      *store.FileStore
	poller     *poll.Poller
	next       scheduler.NextFunc
	runOnStart bool
}

func newApp(cfg config.Config, cfgPath string) (*app, error) {
	src, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}
	sinks, err := notify.Build(cfg, secrets.NewStore(), os.Stdout)
	if err != nil {
		return nil, err
	}
	next, runOnStart, err := schedule(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		cfgPath:    cfgPath,
		hub:        events.NewHub(),
		files:      store.NewFileStore(cfg.DataPath(cfg.Storage.SnapshotFile)),
		next:       next,
		runOnStart: runOnStart,
	}

	var hist poll.History
	if cfg.Storage.HistoryDB != "" {
		db, err := store.Open(cfg.DataPath(cfg.Storage.HistoryDB))
		if err != nil {
			return nil, fmt.Errorf("history db: %w", err)
		}
		a.db = db
		hist = store.History{DB: db.Pool}
	}

	a.poller = &poll.Poller{
		Source:      src,
		Departments: cfg.Departments,
		Store:       a.files,
		History:     hist,
		Renderer: report.New(report.Scope{
			Company:     cfg.Target.Company,
			CareersURL:  cfg.Target.CareersURL,
			Departments: cfg.Departments,
		}),
		Notifier:     sinks,
		Hub:          a.hub,
		FetchTimeout: cfg.Timeout() + 30*time.Second,
	}

	log.Printf("[careerwatch] source=%s departments=%q notify=%s schedule=%s snapshot=%s",
		src.Name(), cfg.Departments, sinks.Name(), cfg.Schedule.Mode, a.files.Path)
	return a, nil
}

func buildSource(cfg config.Config) (source.Source, error) {
	t := cfg.Target
	limiter := util.NewHostLimiter(1.0, 2)

	switch t.Source {
	case config.SourceBrowser:
		return browser.New(browser.Config{
			URL:        t.CareersURL,
			UserAgent:  t.UserAgent,
			Headless:   t.Headless,
			Selectors:  t.Selectors,
			ControlURL: os.Getenv(config.EnvPrefix + "CHROME_URL"),
			Bin:        os.Getenv(config.EnvPrefix + "CHROME_BIN"),
			Timeout:    cfg.Timeout(),
		}), nil
	case config.SourceStatic:
		return static.New(static.Config{
			URL:       t.CareersURL,
			UserAgent: t.UserAgent,
			Timeout:   cfg.Timeout(),
			Selectors: t.Selectors,
		}, limiter), nil
	case config.SourceLever:
		return lever.New(lever.Config{
			Slug:       t.LeverSlug,
			CareersURL: t.CareersURL,
			UserAgent:  t.UserAgent,
			Timeout:    cfg.Timeout(),
		}, limiter), nil
	}
	return nil, fmt.Errorf("unknown target.source %q", t.Source)
}

// schedule maps schedule.mode to a next-run function. once and interval run
// a cycle immediately; daily and cron wait for the first slot unless
// run_on_start is set.
func schedule(cfg config.Config) (scheduler.NextFunc, bool, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, false, err
	}
	s := cfg.Schedule
	switch s.Mode {
	case config.ModeOnce:
		return scheduler.Once(), true, nil
	case config.ModeInterval:
		return scheduler.Interval(time.Duration(s.IntervalSeconds) * time.Second), true, nil
	case config.ModeDaily:
		h, m, err := config.ParseDailyAt(s.DailyAt)
		if err != nil {
			return nil, false, err
		}
		return scheduler.DailyAt(h, m, loc), s.RunOnStart, nil
	case config.ModeCron:
		next, err := scheduler.Cron(s.Cron, loc)
		if err != nil {
			return nil, false, err
		}
		return next, s.RunOnStart, nil
	}
	return nil, false, fmt.Errorf("unknown schedule.mode %q", s.Mode)
}

// Run drives the scheduler loop and, outside once mode, the status API until
// ctx is cancelled. In once mode the returned error is the cycle's fetch
// error, so a failed run exits non-zero.
func (a *app) Run(ctx context.Context) error {
	once := a.cfg.Schedule.Mode == config.ModeOnce
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var trigger chan struct{}
	if !once {
		trigger = make(chan struct{}, 1)
	}

	var lastErr error
	task := func(ctx context.Context) error {
		lastErr = a.poller.Task(ctx)
		return lastErr
	}

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		defer cancel()
		scheduler.Loop(gctx, a.next, "scheduler", task, scheduler.Options{
			Trigger:    trigger,
			RunOnStart: a.runOnStart,
			OnNext:     a.poller.SetNextRun,
		})
		return nil
	})

	if !once && a.cfg.App.Listen != "" {
		srv, ln, err := a.listen(trigger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			err := srv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if once {
		return lastErr
	}
	return nil
}

func (a *app) listen(trigger chan<- struct{}) (*http.Server, net.Listener, error) {
	var cfgVal atomic.Value
	cfgVal.Store(a.cfg)

	deps := httpapi.Deps{
		Hub:         a.hub,
		Poller:      a.poller,
		Store:       a.files,
		CfgVal:      &cfgVal,
		UserCfgPath: a.cfgPath,
		Trigger:     trigger,
		Secrets:     secrets.NewStore(),
	}
	if a.db != nil {
		deps.DB = a.db.Pool
	}

	ln, err := net.Listen("tcp", a.cfg.App.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", a.cfg.App.Listen, err)
	}
	log.Printf("[careerwatch] status API on http://%s", ln.Addr())

	srv := &http.Server{
		Handler:           httpapi.Handler(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv, ln, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("[store] close history db: %v", err)
		}
	}
}
