package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Load reads configuration from the given file (or the default search path
// when cfgFile is empty), layers ATTACKLENS_* environment variables on top,
// and fills unset fields from Default().
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".attacklens")
	}

	v.SetEnvPrefix("ATTACKLENS")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it. An
		// explicitly named file that cannot be read is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)

	v.SetDefault("artifacts.base_url", d.Artifacts.BaseURL)
	v.SetDefault("artifacts.request_timeout", d.Artifacts.RequestTimeout)
	v.SetDefault("artifacts.max_retries", d.Artifacts.MaxRetries)
	v.SetDefault("artifacts.requests_per_second", d.Artifacts.RequestsPerSecond)
	v.SetDefault("artifacts.burst_size", d.Artifacts.BurstSize)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis.dial_timeout", d.Cache.Redis.DialTimeout)
	v.SetDefault("cache.redis.read_timeout", d.Cache.Redis.ReadTimeout)
	v.SetDefault("cache.redis.write_timeout", d.Cache.Redis.WriteTimeout)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.enable_cors", d.Server.EnableCORS)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.exporter_type", d.Telemetry.ExporterType)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
}
