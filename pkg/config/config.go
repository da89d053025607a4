// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Admission AdmissionConfig `koanf:"admission"`
	Cache     CacheConfig     `koanf:"cache"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Scanner   ScannerConfig   `koanf:"scanner"`
	Executor  ExecutorConfig  `koanf:"executor"`
	Spill     SpillConfig     `koanf:"spill"`
	Progress  ProgressConfig  `koanf:"progress"`
	Query     QueryConfig     `koanf:"query"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// AdmissionConfig - настройки глобального семафора допуска (§4.C.1)
type AdmissionConfig struct {
	Backend           string        `koanf:"backend"`        // memory, redis
	GlobalCap         int           `koanf:"global_cap"`     // N
	PerCallCap        int           `koanf:"per_call_cap"`   // M, must be <= GlobalCap
	SafetyWindow      time.Duration `koanf:"safety_window"`  // TTL refreshed on acquire (distributed only)
	RetryBackoff      time.Duration `koanf:"retry_backoff"`
	MaxRetries        int           `koanf:"max_retries"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"` // housekeeping's admission/pool gauge sampling (§4.G)
	RedisAddr         string        `koanf:"redis_addr"`
	RedisPassword     string        `koanf:"redis_password"`
	RedisDB           int           `koanf:"redis_db"`
}

// CacheConfig - настройки shared result cache (§4.C.2)
type CacheConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Backend  string        `koanf:"backend"` // memory, redis
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
	ByteCap  int64         `koanf:"byte_cap"`
	EntryCap int           `koanf:"entry_cap"`
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CatalogConfig - настройки Service Catalog (§4.A)
type CatalogConfig struct {
	SourcePath string `koanf:"source_path"` // descriptor file, watched for mtime-based cache invalidation
}

// DiscoveryConfig - настройки Path Expander / File Discoverer (§4.B)
type DiscoveryConfig struct {
	GuidWildcard string `koanf:"guid_wildcard"` // substitution for {guid}, default "*"
}

// ScannerConfig - настройки Scanner Adapter (§4.D)
type ScannerConfig struct {
	PrimaryBinary   string   `koanf:"primary_binary"`   // preferred scanner, e.g. "rg"
	PrimaryArgs     []string `koanf:"primary_args"`
	FallbackBinary  string   `koanf:"fallback_binary"`  // fan-out wrapper, e.g. "grep"
	FallbackArgs    []string `koanf:"fallback_args"`
	StderrBufferLen int      `koanf:"stderr_buffer_len"`
}

// ExecutorConfig - настройки Search Executor (§4.E)
type ExecutorConfig struct {
	OverallDeadline time.Duration `koanf:"overall_deadline"`
	PreviewLimit    int           `koanf:"preview_limit"`
}

// SpillConfig - настройки Result Presenter & Spill Layer (§4.F)
type SpillConfig struct {
	OutputRoot      string        `koanf:"output_root"`
	RetentionWindow time.Duration `koanf:"retention_window"`
	MaxReadBytes    int64         `koanf:"max_read_bytes"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
}

// ProgressConfig - настройки прогресс-сайдбенда (§4.E Progress)
//
// The thresholds are compared with a search's running match total, not with
// the change since the last emission; after the first milestone, events are
// spaced by MinInterval alone.
type ProgressConfig struct {
	SmallThreshold  int           `koanf:"small_threshold"` // total matches at which the first milestone is emitted
	LargeThreshold  int           `koanf:"large_threshold"` // lower bound of the total-match heartbeat band
	LargeSize       int           `koanf:"large_size"`      // upper bound of the total-match heartbeat band
	MinInterval     time.Duration `koanf:"min_interval"`
}

// QueryConfig - настройки тонкого HTTP-интерфейса поиска/чтения spill (§6)
type QueryConfig struct {
	Port int `koanf:"port"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Admission.GlobalCap <= 0 {
		errs = append(errs, "admission.global_cap must be positive")
	}
	if c.Admission.PerCallCap <= 0 {
		errs = append(errs, "admission.per_call_cap must be positive")
	}
	if c.Admission.PerCallCap > c.Admission.GlobalCap {
		errs = append(errs, fmt.Sprintf("admission.per_call_cap (%d) must not exceed admission.global_cap (%d)", c.Admission.PerCallCap, c.Admission.GlobalCap))
	}

	if c.Executor.PreviewLimit <= 0 {
		errs = append(errs, "executor.preview_limit must be positive")
	}
	if c.Executor.OverallDeadline <= 0 {
		errs = append(errs, "executor.overall_deadline must be positive")
	}

	if c.Cache.ByteCap <= 0 {
		errs = append(errs, "cache.byte_cap must be positive")
	}
	if c.Cache.EntryCap <= 0 {
		errs = append(errs, "cache.entry_cap must be positive")
	}

	if c.Spill.OutputRoot == "" {
		errs = append(errs, "spill.output_root is required")
	}

	if c.Catalog.SourcePath == "" {
		errs = append(errs, "catalog.source_path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
