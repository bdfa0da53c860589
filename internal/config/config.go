package config

import (
	"fmt"
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// ArtifactsConfig controls where analysis artifacts are fetched from and how
// aggressively the loader probes them.
type ArtifactsConfig struct {
	// BaseURL is the root of the static artifact tree, e.g.
	// https://example.org/data. Shape-specific subdirectories
	// (attack_paths/, comprehensive/, ...) hang off it.
	BaseURL string `mapstructure:"base_url"`

	// RequestTimeout bounds each individual artifact fetch.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxRetries is the number of additional attempts after a transport
	// failure. Missing files (404) are never retried.
	MaxRetries int `mapstructure:"max_retries"`

	// RequestsPerSecond and BurstSize throttle fetches against the static
	// host during rapid navigation.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

type CacheConfig struct {
	// Enabled turns dataset caching on. With no Redis address configured,
	// an in-memory TTL cache is used instead.
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type ServerConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	EnableCORS bool          `mapstructure:"enable_cors"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	ExporterType string  `mapstructure:"exporter_type"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Artifacts: ArtifactsConfig{
			BaseURL:           "http://localhost:8000/data",
			RequestTimeout:    10 * time.Second,
			MaxRetries:        1,
			RequestsPerSecond: 10.0,
			BurstSize:         5,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     5 * time.Minute,
			Redis: RedisConfig{
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			EnableCORS: true,
			SessionTTL: 30 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "attacklens",
			ExporterType: "otlp",
			SampleRate:   1.0,
		},
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the loader or server.
func (c *Config) Validate() error {
	if c.Artifacts.BaseURL == "" {
		return fmt.Errorf("artifacts.base_url is required")
	}
	if c.Artifacts.RequestTimeout <= 0 {
		return fmt.Errorf("artifacts.request_timeout must be positive")
	}
	if c.Artifacts.MaxRetries < 0 {
		return fmt.Errorf("artifacts.max_retries must not be negative")
	}
	if c.Artifacts.RequestsPerSecond <= 0 {
		return fmt.Errorf("artifacts.requests_per_second must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache is enabled")
	}
	return nil
}
