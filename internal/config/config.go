// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Broker holds the in-memory broker's configured backoff and the
// connection details of its backing store health-ping target (spec.md §6
// "BROKER_HOST, BROKER_PORT, BROKER_PASSWORD (in-memory broker backing)").
type Broker struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	BackoffMax time.Duration `mapstructure:"backoff_max"`
}

// JobStore selects and configures the durable Job Store backend.
type JobStore struct {
	Backend    string        `mapstructure:"backend"` // memory | redis | sql
	RedisAddr  string        `mapstructure:"redis_addr"`
	SQLDriver  string        `mapstructure:"sql_driver"` // postgres | sqlite3
	SQLDSN     string        `mapstructure:"sql_dsn"`
	ProgressTTL time.Duration `mapstructure:"progress_ttl"`
}

// WorkerConcurrency is the per-type maximum in-flight count named in
// spec.md §5.
type WorkerConcurrency struct {
	Classification      int `mapstructure:"classification"`
	Optimization         int `mapstructure:"optimization"`
	Deduplication        int `mapstructure:"deduplication"`
	QualityAssessment    int `mapstructure:"quality_assessment"`
	Default              int `mapstructure:"default"`
}

// Worker configures the Worker Runtime and the LLM/embedding provider
// capability it dispatches to.
type Worker struct {
	Concurrency    WorkerConcurrency `mapstructure:"concurrency"`
	MaxRetries     int               `mapstructure:"max_retries"`
	ProviderLabel  string            `mapstructure:"provider_label"`
	BreakerWindow  time.Duration     `mapstructure:"breaker_window"`
	BreakerCooldown time.Duration    `mapstructure:"breaker_cooldown"`
}

// Realtime configures the Realtime Gateway (spec.md §4.8, §6).
type Realtime struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AuthSecret     string   `mapstructure:"auth_secret"`
}

// Pipeline seeds the Optimization Pipeline's initial process-wide config
// (spec.md §4.9); callers may still update_config at runtime.
type Pipeline struct {
	EnableAutoClassification bool `mapstructure:"enable_auto_classification"`
	EnableAutoOptimization   bool `mapstructure:"enable_auto_optimization"`
	EnableDuplicateDetection bool `mapstructure:"enable_duplicate_detection"`
	EnableQualityAssessment  bool `mapstructure:"enable_quality_assessment"`
	BatchSize                int  `mapstructure:"batch_size"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Endpoint         string  `mapstructure:"endpoint"`
	Environment      string  `mapstructure:"environment"`
	SamplingStrategy string  `mapstructure:"sampling_strategy"` // always | never | probabilistic
	SamplingRate     float64 `mapstructure:"sampling_rate"`
	Insecure         bool    `mapstructure:"insecure"`
}

type ObservabilityConfig struct {
	MetricsPort int           `mapstructure:"metrics_port"`
	LogLevel    string        `mapstructure:"log_level"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

type Config struct {
	Broker        Broker              `mapstructure:"broker"`
	JobStore      JobStore            `mapstructure:"job_store"`
	Worker        Worker              `mapstructure:"worker"`
	Realtime      Realtime            `mapstructure:"realtime"`
	Pipeline      Pipeline            `mapstructure:"pipeline"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Broker: Broker{
			Host:       "localhost",
			Port:       6379,
			BackoffMax: 5 * time.Minute,
		},
		JobStore: JobStore{
			Backend:     "memory",
			RedisAddr:   "localhost:6379",
			SQLDriver:   "sqlite3",
			SQLDSN:      "file:contentcore.db?mode=memory&cache=shared",
			ProgressTTL: 5 * time.Minute,
		},
		Worker: Worker{
			Concurrency: WorkerConcurrency{
				Classification:   3,
				Optimization:     2,
				Deduplication:    1,
				QualityAssessment: 2,
				Default:          2,
			},
			MaxRetries:      3,
			ProviderLabel:   "openai",
			BreakerWindow:   time.Minute,
			BreakerCooldown: 30 * time.Second,
		},
		Realtime: Realtime{
			Port:           8080,
			AllowedOrigins: []string{},
		},
		Pipeline: Pipeline{
			EnableAutoClassification: true,
			EnableAutoOptimization:   true,
			EnableDuplicateDetection: true,
			EnableQualityAssessment:  true,
			BatchSize:                10,
		},
		Observability: ObservabilityConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
			Tracing:     TracingConfig{Enabled: false},
		},
	}
}

// Load reads configuration from a YAML file with env-var overrides,
// mirroring the teacher's internal/config.Load: defaults set via
// v.SetDefault, an optional file read, then Unmarshal + Validate. Env vars
// named in spec.md §6 map onto dotted keys via the "." -> "_" replacer and
// explicit BindEnv calls (ALLOWED_ORIGINS and AUTH_SECRET only via the latter):
// BROKER_HOST -> broker.host, BROKER_PORT -> broker.port, BROKER_PASSWORD ->
// broker.password, REALTIME_PORT -> realtime.port, ALLOWED_ORIGINS ->
// realtime.allowed_origins, AUTH_SECRET -> realtime.auth_secret.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("broker.host", def.Broker.Host)
	v.SetDefault("broker.port", def.Broker.Port)
	v.SetDefault("broker.password", def.Broker.Password)
	v.SetDefault("broker.backoff_max", def.Broker.BackoffMax)

	v.SetDefault("job_store.backend", def.JobStore.Backend)
	v.SetDefault("job_store.redis_addr", def.JobStore.RedisAddr)
	v.SetDefault("job_store.sql_driver", def.JobStore.SQLDriver)
	v.SetDefault("job_store.sql_dsn", def.JobStore.SQLDSN)
	v.SetDefault("job_store.progress_ttl", def.JobStore.ProgressTTL)

	v.SetDefault("worker.concurrency.classification", def.Worker.Concurrency.Classification)
	v.SetDefault("worker.concurrency.optimization", def.Worker.Concurrency.Optimization)
	v.SetDefault("worker.concurrency.deduplication", def.Worker.Concurrency.Deduplication)
	v.SetDefault("worker.concurrency.quality_assessment", def.Worker.Concurrency.QualityAssessment)
	v.SetDefault("worker.concurrency.default", def.Worker.Concurrency.Default)
	v.SetDefault("worker.max_retries", def.Worker.MaxRetries)
	v.SetDefault("worker.provider_label", def.Worker.ProviderLabel)
	v.SetDefault("worker.breaker_window", def.Worker.BreakerWindow)
	v.SetDefault("worker.breaker_cooldown", def.Worker.BreakerCooldown)

	v.SetDefault("realtime.port", def.Realtime.Port)
	v.SetDefault("realtime.allowed_origins", def.Realtime.AllowedOrigins)
	v.SetDefault("realtime.auth_secret", def.Realtime.AuthSecret)

	v.SetDefault("pipeline.enable_auto_classification", def.Pipeline.EnableAutoClassification)
	v.SetDefault("pipeline.enable_auto_optimization", def.Pipeline.EnableAutoOptimization)
	v.SetDefault("pipeline.enable_duplicate_detection", def.Pipeline.EnableDuplicateDetection)
	v.SetDefault("pipeline.enable_quality_assessment", def.Pipeline.EnableQualityAssessment)
	v.SetDefault("pipeline.batch_size", def.Pipeline.BatchSize)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", def.Observability.Tracing.Endpoint)

	// REALTIME_PORT/ALLOWED_ORIGINS/AUTH_SECRET/BROKER_* are flat env names
	// without a "." in their dotted-key form; bind them explicitly since the
	// key replacer alone can't invent the dotted path from a flat env var.
	_ = v.BindEnv("broker.host", "BROKER_HOST")
	_ = v.BindEnv("broker.port", "BROKER_PORT")
	_ = v.BindEnv("broker.password", "BROKER_PASSWORD")
	_ = v.BindEnv("realtime.port", "REALTIME_PORT")
	_ = v.BindEnv("realtime.allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("realtime.auth_secret", "AUTH_SECRET")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if raw := v.GetString("realtime.allowed_origins"); raw != "" && len(cfg.Realtime.AllowedOrigins) == 0 {
		cfg.Realtime.AllowedOrigins = strings.Split(raw, ",")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be >= 0")
	}
	if cfg.Worker.Concurrency.Default < 1 {
		return fmt.Errorf("worker.concurrency.default must be >= 1")
	}
	switch cfg.JobStore.Backend {
	case "memory", "redis", "sql":
	default:
		return fmt.Errorf("job_store.backend must be one of memory|redis|sql, got %q", cfg.JobStore.Backend)
	}
	if cfg.Realtime.Port <= 0 || cfg.Realtime.Port > 65535 {
		return fmt.Errorf("realtime.port must be 1..65535")
	}
	if cfg.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be >= 1")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
