package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults registers every default value with v so environment variables and
// partial config files fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("backfill.enabled", d.Backfill.Enabled)
	v.SetDefault("backfill.status", d.Backfill.Status)
	v.SetDefault("backfill.guard", d.Backfill.Guard)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", DefaultTracesFilePath())
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
