// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("BROKER_HOST")
	os.Unsetenv("REALTIME_PORT")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.Concurrency.Default != 2 {
		t.Fatalf("expected default worker concurrency 2, got %d", cfg.Worker.Concurrency.Default)
	}
	if cfg.Broker.Host == "" {
		t.Fatalf("expected default broker host")
	}
	if cfg.Realtime.Port != 8080 {
		t.Fatalf("expected default realtime port 8080, got %d", cfg.Realtime.Port)
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	os.Setenv("BROKER_HOST", "broker.internal")
	os.Setenv("REALTIME_PORT", "9191")
	defer os.Unsetenv("BROKER_HOST")
	defer os.Unsetenv("REALTIME_PORT")

	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Broker.Host != "broker.internal" {
		t.Fatalf("expected BROKER_HOST override, got %q", cfg.Broker.Host)
	}
	if cfg.Realtime.Port != 9191 {
		t.Fatalf("expected REALTIME_PORT override, got %d", cfg.Realtime.Port)
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Worker.Concurrency.Default = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for worker.concurrency.default < 1")
	}

	cfg = defaultConfig()
	cfg.JobStore.Backend = "mongo"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown job_store.backend")
	}

	cfg = defaultConfig()
	cfg.Realtime.Port = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for out-of-range realtime.port")
	}

	cfg = defaultConfig()
	cfg.Pipeline.BatchSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for pipeline.batch_size < 1")
	}
}
