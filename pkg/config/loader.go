// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "LOGAI_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/logai/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	// 1. Загружаем значения по умолчанию
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Загружаем из файла конфигурации
	if err := l.loadConfigFile(); err != nil {
		// Файл не обязателен, логируем warning
		fmt.Printf("Warning: %v\n", err)
	}

	// 3. Загружаем из переменных окружения (перезаписывают файл)
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// 4. Распаковываем в структуру
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Валидируем
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "logai-engine",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "logai",
		"metrics.subsystem": "engine",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "logai-engine",
		"tracing.sample_rate":  0.1,

		// Admission (§4.C.1)
		"admission.backend":            "memory",
		"admission.global_cap":         64,
		"admission.per_call_cap":       8,
		"admission.safety_window":      30 * time.Second,
		"admission.retry_backoff":      50 * time.Millisecond,
		"admission.max_retries":        20,
		"admission.redis_addr":         "localhost:6379",
		"admission.redis_db":           0,
		"admission.heartbeat_interval": 30 * time.Second,

		// Cache (§4.C.2)
		"cache.enabled":   false,
		"cache.backend":   "memory",
		"cache.host":      "localhost",
		"cache.port":      6379,
		"cache.db":        0,
		"cache.ttl":       5 * time.Minute,
		"cache.byte_cap":  64 * 1024 * 1024, // 64MB
		"cache.entry_cap": 10000,

		// Catalog (§4.A)
		"catalog.source_path": "config/services.yaml",

		// Discovery (§4.B)
		"discovery.guid_wildcard": "*",

		// Scanner (§4.D)
		"scanner.primary_binary":    "rg",
		"scanner.primary_args":      []string{"--no-heading", "--line-number", "--with-filename", "--ignore-case"},
		"scanner.fallback_binary":   "grep",
		"scanner.fallback_args":     []string{"-n", "-H", "-i"},
		"scanner.stderr_buffer_len": 4096,

		// Executor (§4.E)
		"executor.overall_deadline": 30 * time.Second,
		"executor.preview_limit":    500,

		// Spill (§4.F)
		"spill.output_root":      "/var/spool/logai",
		"spill.retention_window": 24 * time.Hour,
		"spill.max_read_bytes":   10 * 1024 * 1024, // 10MB
		"spill.sweep_interval":   15 * time.Minute,

		// Progress (§4.E Progress)
		"progress.small_threshold": 10,
		"progress.large_threshold": 100,
		"progress.large_size":      1000,
		"progress.min_interval":    2 * time.Second,

		// Query (§6 thin HTTP query/spill-read surface)
		"query.port": 8081,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	// Сначала проверяем переменную окружения
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	// Ищем файл по списку путей
	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv загружает конфигурацию из переменных окружения
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		// LOGAI_ADMISSION_GLOBAL_CAP -> admission.global_cap
		return strings.Replace(
			strings.ToLower(
				strings.TrimPrefix(s, l.envPrefix),
			),
			"_", ".", 1,
		)
	}), nil)
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}
