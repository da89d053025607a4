package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:       AppConfig{Name: "logai-engine"},
		Log:       LogConfig{Level: "info"},
		Admission: AdmissionConfig{GlobalCap: 64, PerCallCap: 8},
		Cache:     CacheConfig{ByteCap: 10 << 20, EntryCap: 1000},
		Catalog:   CatalogConfig{SourcePath: "/etc/logai/services.yaml"},
		Executor:  ExecutorConfig{OverallDeadline: 30 * time.Second, PreviewLimit: 500},
		Spill:     SpillConfig{OutputRoot: "/var/spool/logai"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing app name", func(c *Config) { c.App.Name = "" }, true},
		{"invalid log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"empty log level defaults to info", func(c *Config) { c.Log.Level = "" }, false},
		{"zero global cap", func(c *Config) { c.Admission.GlobalCap = 0 }, true},
		{"zero per-call cap", func(c *Config) { c.Admission.PerCallCap = 0 }, true},
		{"per-call cap exceeds global cap", func(c *Config) { c.Admission.PerCallCap = c.Admission.GlobalCap + 1 }, true},
		{"zero preview limit", func(c *Config) { c.Executor.PreviewLimit = 0 }, true},
		{"zero deadline", func(c *Config) { c.Executor.OverallDeadline = 0 }, true},
		{"zero byte cap", func(c *Config) { c.Cache.ByteCap = 0 }, true},
		{"zero entry cap", func(c *Config) { c.Cache.EntryCap = 0 }, true},
		{"missing output root", func(c *Config) { c.Spill.OutputRoot = "" }, true},
		{"missing catalog source", func(c *Config) { c.Catalog.SourcePath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}
