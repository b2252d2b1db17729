// Copyright 2025 James Ross
package redisclient

import (
	"fmt"
	"runtime"
	"time"

	"github.com/asyncforge/contentcore/internal/config"
	"github.com/redis/go-redis/v9"
)

// New returns a configured go-redis v9 client for the Job Store's "redis"
// backend (spec.md §4.2).
func New(cfg *config.Config) *redis.Client {
	poolSize := 10 * runtime.NumCPU()
	addr := cfg.JobStore.RedisAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Broker.Password,
		PoolSize:     poolSize,
		MinIdleConns: runtime.NumCPU(),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
}
