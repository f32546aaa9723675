package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/leela-coach/internal/archive"
	"github.com/park285/leela-coach/internal/bridge"
	"github.com/park285/leela-coach/internal/coach"
	"github.com/park285/leela-coach/internal/config"
	"github.com/park285/leela-coach/internal/game"
	"github.com/park285/leela-coach/internal/obslog"
	"github.com/park285/leela-coach/internal/present"
	"github.com/park285/leela-coach/internal/statusapi"
)

const (
	bridgeDialTimeout   = 15 * time.Second
	statusDrainTimeout  = 3 * time.Second
	sessionCloseTimeout = 5 * time.Second
)

// app bundles the wired session stack for one CLI run.
type app struct {
	prefs   *config.Preferences
	logger  *zap.Logger
	session *bridge.Session
	sched   *bridge.Scheduler
	board   *game.Board
	coach   *coach.Coach
	store   archive.Store
	status  *statusapi.Server
	watcher *config.Watcher
	out     *present.Formatter
}

// withApp wires the full stack, runs fn under signal cancellation, and tears
// everything down afterwards. The status API, when configured, runs beside fn
// and drains when either side finishes.
func withApp(fn func(ctx context.Context, a *app) error) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	prefs, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if thinkName != "" {
		preset, err := config.GetThinkPreset(thinkName)
		if err != nil {
			return err
		}
		preset.Apply(prefs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := buildApp(ctx, prefs, logger)
	if err != nil {
		return err
	}
	defer a.close()

	eg, egCtx := errgroup.WithContext(ctx)
	if a.status != nil {
		addr := prefs.Status.Addr
		eg.Go(func() error {
			logger.Info("status api listening", zap.String("addr", addr))
			if err := a.status.ListenAndServe(addr); err != nil {
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egCtx.Done()
			drainCtx, drainCancel := context.WithTimeout(context.Background(), statusDrainTimeout)
			defer drainCancel()
			return a.status.Shutdown(drainCtx)
		})
	}
	eg.Go(func() error {
		defer cancel()
		return fn(egCtx, a)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildApp(ctx context.Context, prefs *config.Preferences, logger *zap.Logger) (*app, error) {
	backend := prefs.Archive.Backend
	if backend == "" {
		backend = "memory"
	}
	store, err := archive.Open(backend, prefs.Archive.RedisURL, prefs.Archive.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	session := bridge.NewSession(prefs.BridgeURL(), logger)
	dialCtx, dialCancel := context.WithTimeout(ctx, bridgeDialTimeout)
	defer dialCancel()
	if err := session.Connect(dialCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect bridge %s: %w", prefs.BridgeURL(), err)
	}

	board := game.NewBoard()
	sched := bridge.NewScheduler(logger)
	ch, err := coach.NewCoach(session, sched, board, store, coach.Config{
		AnalyseMovetimeMS:    prefs.Think.AnalyseMS,
		EngineMoveMovetimeMS: prefs.Think.EngineMoveMS,
	}, logger)
	if err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
		defer closeCancel()
		_ = session.Close(closeCtx)
		_ = store.Close()
		return nil, err
	}

	a := &app{
		prefs:   prefs,
		logger:  logger,
		session: session,
		sched:   sched,
		board:   board,
		coach:   ch,
		store:   store,
		out:     present.NewFormatter(),
	}

	if prefs.Status.Addr != "" {
		status, err := statusapi.NewServer(ch.Live(), ch.Journal(), session, store, nil, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("status api: %w", err)
		}
		a.status = status
	}

	if configPath != "" {
		watcher, werr := config.NewWatcher(configPath, func(think config.ThinkPrefs) {
			ch.SetThinkTimes(think.AnalyseMS, think.EngineMoveMS)
		}, logger)
		if werr == nil {
			werr = watcher.Start(ctx)
		}
		if werr != nil {
			logger.Warn("preference watcher disabled", zap.Error(werr))
		} else {
			a.watcher = watcher
		}
	}

	logger.Info("coach ready",
		zap.String("bridge", prefs.BridgeURL()),
		zap.String("archive", backend),
		zap.Int("analyse_ms", prefs.Think.AnalyseMS),
		zap.Int("engine_move_ms", prefs.Think.EngineMoveMS))
	return a, nil
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
	defer cancel()
	if err := a.session.Close(closeCtx); err != nil {
		a.logger.Warn("close session", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close archive", zap.Error(err))
	}
}
