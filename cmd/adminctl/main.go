// Copyright 2025 James Ross

// Command adminctl is the operator CLI for inspecting and maintaining a
// deployment's Job Store: stats, peek, purge-dead and a self-contained
// bench, the equivalent of the teacher's "-role admin" commands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asyncforge/contentcore/internal/adminops"
	"github.com/asyncforge/contentcore/internal/broker"
	"github.com/asyncforge/contentcore/internal/config"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/obs"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/asyncforge/contentcore/internal/queuemanager"
	"github.com/asyncforge/contentcore/internal/redisclient"
	"github.com/asyncforge/contentcore/internal/workerrt"
	"github.com/asyncforge/contentcore/internal/workers"
	"go.uber.org/zap"
)

func main() {
	var configPath, cmd, status, benchPriority string
	var n int64
	var yes bool
	var benchCount, benchRate int
	var benchTimeout time.Duration
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&cmd, "cmd", "", "Admin command: stats|peek|purge-dead|bench")
	fs.StringVar(&status, "status", "completed", "Job status for peek: pending|processing|completed|failed|retry|dead")
	fs.Int64Var(&n, "n", 10, "Number of jobs for peek")
	fs.BoolVar(&yes, "yes", false, "Automatic yes to prompts (dangerous operations)")
	fs.IntVar(&benchCount, "bench-count", 1000, "Bench: number of jobs")
	fs.IntVar(&benchRate, "bench-rate", 200, "Bench: submission rate jobs/sec")
	fs.StringVar(&benchPriority, "bench-priority", "normal", "Bench: priority (high|normal|low)")
	fs.DurationVar(&benchTimeout, "bench-timeout", 60*time.Second, "Bench: timeout waiting for completion")
	_ = fs.Parse(os.Args[1:])

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
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; cancel() }()

	switch cmd {
	case "stats":
		br := broker.New(cfg.Broker.BackoffMax)
		facade := queuefacade.New(store, br, progresscache.New(cfg.JobStore.ProgressTTL), eventbus.New(logger))
		mgr := queuemanager.New(facade, logger)
		res, err := adminops.Stats(ctx, mgr)
		printOrFatal(res, err)
	case "peek":
		res, err := adminops.Peek(ctx, store, job.Status(status), n)
		printOrFatal(res, err)
	case "purge-dead":
		if !yes {
			logger.Fatal("refusing to purge without --yes")
		}
		purged, err := adminops.PurgeDead(ctx, store)
		if err != nil {
			logger.Fatal("purge-dead failed", obs.Err(err))
		}
		b, _ := json.Marshal(struct {
			Purged int64 `json:"purged"`
		}{Purged: purged})
		fmt.Println(string(b))
	case "bench":
		priority, err := job.ParsePriority(benchPriority)
		if err != nil {
			logger.Fatal("invalid bench priority", obs.Err(err))
		}
		res, err := runBench(ctx, cfg, logger, store, priority, benchCount, benchRate, benchTimeout)
		printOrFatal(res, err)
	default:
		logger.Fatal("unknown admin command", obs.String("cmd", cmd))
	}
}

func printOrFatal(v interface{}, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		os.Exit(1)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// runBench embeds a throwaway Worker Runtime running only the classification
// worker behind a Fake provider, so "bench" measures real submit-to-complete
// latency without depending on a separately running coreserver sharing this
// process's in-memory Broker.
func runBench(ctx context.Context, cfg *config.Config, logger *zap.Logger, store jobstore.Store, priority job.Priority, count, rate int, timeout time.Duration) (adminops.BenchResult, error) {
	br := broker.New(cfg.Broker.BackoffMax)
	bus := eventbus.New(logger)
	progress := progresscache.New(cfg.JobStore.ProgressTTL)
	facade := queuefacade.New(store, br, progress, bus)
	items := itemstore.NewMemory()

	rt := workerrt.New(store, br, bus, progress, logger)
	classification := &workers.ClassificationWorker{Capability: provider.NewFake(), Items: items}
	rt.Register(workerrt.Definition{Type: job.TypeClassification, MaxConcurrency: cfg.Worker.Concurrency.Classification, Process: classification.Process})
	benchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go rt.Run(benchCtx)

	return adminops.Bench(ctx, facade, store, priority, count, rate, timeout)
}

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
