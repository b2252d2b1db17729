// Copyright 2025 James Ross

// Command realtimegateway runs the Realtime Gateway as a standalone
// process, the equivalent of the teacher's cmd/admin-api: it shares the
// Job Store with a coreserver deployment but serves WebSocket connections
// from its own binary. Its Event Bus is its own in-process instance, so it
// does not receive events published inside a separate coreserver process.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asyncforge/contentcore/internal/broker"
	"github.com/asyncforge/contentcore/internal/config"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/obs"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/asyncforge/contentcore/internal/queuemanager"
	"github.com/asyncforge/contentcore/internal/realtime"
	"github.com/asyncforge/contentcore/internal/redisclient"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var configPath string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, closeStore, err := openJobStore(cfg)
	if err != nil {
		logger.Fatal("failed to open job store", obs.Err(err))
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	br := broker.New(cfg.Broker.BackoffMax)
	bus := eventbus.New(logger)
	progress := progresscache.New(cfg.JobStore.ProgressTTL)
	facade := queuefacade.New(store, br, progress, bus)
	mgr := queuemanager.New(facade, logger)
	go mgr.Run(ctx)

	gw := realtime.New(cfg.Realtime.AuthSecret, cfg.Realtime.AllowedOrigins, mgr, bus, logger)
	go gw.RunHeartbeat(ctx)
	go gw.RunMetricsSnapshot(ctx)
	go gw.RunFanOut(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeHTTP)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Realtime.Port), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("realtime gateway started", obs.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("realtime gateway stopped", obs.Err(err))
	}
}

// openJobStore opens the shared durable Job Store a coreserver deployment
// already points at (redis or sql); the in-memory backend only makes sense
// for a realtime gateway running in isolation during local development.
func openJobStore(cfg *config.Config) (jobstore.Store, func(), error) {
	switch cfg.JobStore.Backend {
	case "redis":
		rdb := redisclient.New(cfg)
		return jobstore.NewRedis(rdb), func() { _ = rdb.Close() }, nil
	case "sql":
		bg := context.Background()
		if cfg.JobStore.SQLDriver == "postgres" {
			st, err := jobstore.OpenPostgres(bg, cfg.JobStore.SQLDSN)
			if err != nil {
				return nil, nil, err
			}
			return st, func() { _ = st.Close() }, nil
		}
		st, err := jobstore.OpenSQLite(bg, cfg.JobStore.SQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return jobstore.NewMemory(), func() {}, nil
	}
}

func handleSignals(cancel context.CancelFunc, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
	cancel()

	select {
	case sig2 := <-sigCh:
		logger.Warn("second signal received, forcing exit", obs.String("signal", sig2.String()))
		os.Exit(1)
	case <-time.After(5 * time.Second):
	}
}
