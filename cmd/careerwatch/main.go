package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"careerwatch/internal/config"
	"careerwatch/internal/store"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "config file (default <data-dir>/config.yml, created on first start)")
		dataDir   = flag.String("data-dir", "", "data directory (default $CAREERWATCH_DATA_DIR or the working directory)")
		once      = flag.Bool("once", false, "run a single cycle and exit (same as RUN_ONCE=1)")
		history   = flag.Int("history", 0, "print the N most recent runs from the history database and exit")
		setSecret = flag.String("set-secret", "", "read a secret (smtp, telegram or imap) from stdin, store it in the OS keyring and exit")
		validate  = flag.Bool("validate", false, "validate the configuration and exit")
	)
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("config: %v", err)
	}

	dir := *dataDir
	if dir == "" {
		dir = os.Getenv(config.EnvPrefix + "DATA_DIR")
	}
	if dir == "" {
		dir = "."
	}

	path := *cfgPath
	if path == "" {
		p, err := config.EnsureUserConfig(dir)
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", path, err)
	}
	if err := config.Overlay(&cfg, os.Getenv); err != nil {
		log.Fatalf("config env: %v", err)
	}
	if *dataDir != "" || cfg.App.DataDir == "" {
		cfg.App.DataDir = dir
	}
	if abs, err := filepath.Abs(cfg.App.DataDir); err == nil {
		cfg.App.DataDir = abs
	}
	if *once {
		cfg.Schedule.Mode = config.ModeOnce
	}

	cfg, res := config.NormalizeAndValidate(cfg)
	for _, w := range res.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !res.OK() {
		log.Fatalf("[config] %s: %v", path, res.Err())
	}

	switch {
	case *setSecret != "":
		if err := runSetSecret(cfg, *setSecret, os.Stdin); err != nil {
			log.Fatal(err)
		}
		return
	case *history > 0:
		if err := printHistory(cfg, *history, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	case *validate:
		log.Printf("[config] %s ok", path)
		return
	}

	lock, err := store.InstanceLock(cfg.App.DataDir)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a, err := newApp(cfg, path)
	if err != nil {
		_ = lock.Unlock()
		log.Fatalf("startup: %v", err)
	}

	code := 0
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("exit: %v", err)
		code = 1
	}
	a.Close()
	stop()
	_ = lock.Unlock()
	os.Exit(code)
}
