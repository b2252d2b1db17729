// Copyright 2025 James Ross

// Command coreserver bootstraps the full processing core in one process:
// Job Store, Broker, Worker Runtime, Queue Manager, Optimization Pipeline
// and Realtime Gateway, the equivalent of the teacher's cmd/job-queue-system
// "all" role.
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
	"github.com/asyncforge/contentcore/internal/breaker"
	"github.com/asyncforge/contentcore/internal/config"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/obs"
	"github.com/asyncforge/contentcore/internal/pipeline"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/asyncforge/contentcore/internal/queuemanager"
	"github.com/asyncforge/contentcore/internal/realtime"
	"github.com/asyncforge/contentcore/internal/redisclient"
	"github.com/asyncforge/contentcore/internal/workerrt"
	"github.com/asyncforge/contentcore/internal/workers"
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

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	store, closeStore, err := openJobStore(cfg)
	if err != nil {
		logger.Fatal("failed to open job store", obs.Err(err))
	}
	defer closeStore()

	httpSrv := obs.StartHTTPServer(cfg, readyCheck(store))
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	br := broker.New(cfg.Broker.BackoffMax)
	bus := eventbus.New(logger)
	progress := progresscache.New(cfg.JobStore.ProgressTTL)
	facade := queuefacade.New(store, br, progress, bus)
	items := itemstore.NewMemory()
	vectors := itemstore.NewMemoryVectorStore()
	auditLog := realtime.NewMemoryAuditLog()

	obs.StartQueueLengthUpdater(ctx, br, logger)

	capability := buildCapability(cfg)
	registry := provider.NewRegistry(capability)
	registry.Register(cfg.Worker.ProviderLabel, capability)

	rt := workerrt.New(store, br, bus, progress, logger)
	registerWorkers(rt, cfg, capability, registry, items, vectors)
	go rt.Run(ctx)

	mgr := queuemanager.New(facade, logger)
	go mgr.Run(ctx)

	_ = pipeline.New(facade, items, auditLog)

	gw := realtime.New(cfg.Realtime.AuthSecret, cfg.Realtime.AllowedOrigins, mgr, bus, logger)
	go gw.RunHeartbeat(ctx)
	go gw.RunMetricsSnapshot(ctx)
	go gw.RunFanOut(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeHTTP)
	realtimeSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Realtime.Port), Handler: mux}
	go func() {
		if err := realtimeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("realtime gateway server error", obs.Err(err))
			cancel()
		}
	}()
	defer func() { _ = realtimeSrv.Shutdown(context.Background()) }()

	logger.Info("coreserver started", obs.String("realtimeAddr", realtimeSrv.Addr))
	<-ctx.Done()
}

// pinger is satisfied by Job Store backends with a live backing connection
// to health-check (RedisStore, SQLStore); the in-memory backend has none.
type pinger interface {
	Ping(ctx context.Context) error
}

func readyCheck(store jobstore.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		if p, ok := store.(pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}

// openJobStore selects and opens the configured Job Store backend
// (spec.md §4.2), returning a shutdown func for whatever connection it
// opened (a no-op for the in-memory backend).
func openJobStore(cfg *config.Config) (jobstore.Store, func(), error) {
	switch cfg.JobStore.Backend {
	case "redis":
		rdb := redisclient.New(cfg)
		return jobstore.NewRedis(rdb), func() { _ = rdb.Close() }, nil
	case "sql":
		ctx := context.Background()
		switch cfg.JobStore.SQLDriver {
		case "postgres":
			st, err := jobstore.OpenPostgres(ctx, cfg.JobStore.SQLDSN)
			if err != nil {
				return nil, nil, err
			}
			return st, func() { _ = st.Close() }, nil
		default:
			st, err := jobstore.OpenSQLite(ctx, cfg.JobStore.SQLDSN)
			if err != nil {
				return nil, nil, err
			}
			return st, func() { _ = st.Close() }, nil
		}
	default:
		return jobstore.NewMemory(), func() {}, nil
	}
}

// buildCapability wraps the configured provider label behind a circuit
// breaker, the equivalent of the teacher's worker-level breaker guarding
// Redis dequeue under load (spec.md §9 Open Question: provider clients are
// out of scope, so a Fake capability stands in for whatever SDK a real
// deployment would register).
func buildCapability(cfg *config.Config) provider.Capability {
	cb := breaker.New(cfg.Worker.BreakerWindow, cfg.Worker.BreakerCooldown, 0.5, 5)
	return provider.NewGuarded(cfg.Worker.ProviderLabel, provider.NewFake(), cb)
}

// registerWorkers wires every worker body named in spec.md §4.5 onto the
// Worker Runtime, using the per-type concurrency caps from config where
// spec.md §5 names one and the default cap otherwise.
func registerWorkers(rt *workerrt.Runtime, cfg *config.Config, capability provider.Capability, registry *provider.Registry, items itemstore.Store, vectors *itemstore.MemoryVectorStore) {
	conc := cfg.Worker.Concurrency
	candidateSource := workers.StoreCandidateSource{Items: items}
	contentResolver := workers.StoreContentResolver{Items: items}

	classification := &workers.ClassificationWorker{Capability: capability, Items: items}
	optimization := &workers.OptimizationWorker{Capability: capability, Items: items}
	conversion := &workers.ConversionWorker{}
	deduplication := &workers.DeduplicationWorker{Capability: capability, Items: items}
	quality := &workers.QualityAssessmentWorker{}
	similarity := &workers.SimilarityScoringWorker{Capability: capability}
	embedding := &workers.EmbeddingGenerationWorker{Registry: registry, Items: items, Vectors: vectors}
	contentAnalysis := &workers.ContentAnalysisWorker{Capability: capability}
	semanticClustering := &workers.SemanticClusteringWorker{Capability: capability, Items: contentResolver}
	modelOptimization := &workers.ModelOptimizationWorker{Capability: capability}
	contextAssembly := &workers.ContextAssemblyWorker{Source: candidateSource}
	folderSuggestion := &workers.FolderSuggestionWorker{Items: items}
	batchImport := &workers.BatchImportWorker{Items: items}
	intelligencePipeline := &workers.IntelligencePipelineWorker{Capability: capability, Items: items}

	rt.Register(workerrt.Definition{Type: job.TypeClassification, MaxConcurrency: conc.Classification, Process: classification.Process})
	rt.Register(workerrt.Definition{Type: job.TypeOptimization, MaxConcurrency: conc.Optimization, Process: optimization.Process})
	rt.Register(workerrt.Definition{Type: job.TypeConversion, MaxConcurrency: conc.Default, Process: conversion.Process})
	rt.Register(workerrt.Definition{Type: job.TypeDeduplication, MaxConcurrency: conc.Deduplication, Process: deduplication.Process})
	rt.Register(workerrt.Definition{Type: job.TypeQualityAssessment, MaxConcurrency: conc.QualityAssessment, Process: quality.Process})
	rt.Register(workerrt.Definition{Type: job.TypeSimilarityScoring, MaxConcurrency: conc.Default, Process: similarity.Process})
	rt.Register(workerrt.Definition{Type: job.TypeEmbeddingGeneration, MaxConcurrency: conc.Default, Process: embedding.Process})
	rt.Register(workerrt.Definition{Type: job.TypeContentAnalysis, MaxConcurrency: conc.Default, Process: contentAnalysis.Process})
	rt.Register(workerrt.Definition{Type: job.TypeSemanticClustering, MaxConcurrency: conc.Default, Process: semanticClustering.Process})
	rt.Register(workerrt.Definition{Type: job.TypeModelOptimization, MaxConcurrency: conc.Default, Process: modelOptimization.Process})
	rt.Register(workerrt.Definition{Type: job.TypeContextAssembly, MaxConcurrency: conc.Default, Process: contextAssembly.Process})
	rt.Register(workerrt.Definition{Type: job.TypeFolderSuggestion, MaxConcurrency: conc.Default, Process: folderSuggestion.Process})
	rt.Register(workerrt.Definition{Type: job.TypeBatchImport, MaxConcurrency: conc.Default, Process: batchImport.Process})
	rt.Register(workerrt.Definition{Type: job.TypeIntelligencePipeline, MaxConcurrency: conc.Default, Process: intelligencePipeline.Process})
}
