// Package config provides configuration types and defaults for termmeta.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/termmeta"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
	"github.com/zjrosen/termmeta/internal/tracing"
)

// DefaultDir is the project-local directory holding the config, database and logs.
const DefaultDir = ".termmeta"

// Config holds all configuration options for termmeta.
type Config struct {
	DBPath     string           `mapstructure:"db_path"`
	LogPath    string           `mapstructure:"log_path"`
	Taxonomies []TaxonomyConfig `mapstructure:"taxonomies"`
	Backfill   BackfillConfig   `mapstructure:"backfill"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Tracing    tracing.Config   `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// TaxonomyConfig registers a taxonomy at startup.
type TaxonomyConfig struct {
	Name        string `mapstructure:"name"`
	CarrierType string `mapstructure:"carrier_type"` // optional, defaults to <name>_tax_meta
}

// BackfillConfig controls on-demand carrier creation.
type BackfillConfig struct {
	// Enabled turns the default creator on. When false, terms without a carrier
	// stay unresolved until the host links one.
	Enabled bool `mapstructure:"enabled"`

	// Guard is an optional boolean expression over Taxonomy, CarrierType and Term.
	// Example: `Term.Slug != "uncategorized"`
	Guard string `mapstructure:"guard"`

	// Status of backfilled records: "publish" (default) or "draft".
	Status string `mapstructure:"status"`
}

// WatchConfig configures the database watcher used by `termmeta watch`.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// MetricsConfig toggles resolver counters.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DBPath:  filepath.Join(DefaultDir, "termmeta.db"),
		LogPath: filepath.Join(DefaultDir, "debug.log"),
		Backfill: BackfillConfig{
			Enabled: true,
			Status:  string(domain.RecordStatusPublish),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Tracing: tracing.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	return filepath.Join(DefaultDir, "traces", "traces.jsonl")
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if err := ValidateTaxonomies(c.Taxonomies); err != nil {
		return err
	}
	if err := ValidateBackfill(c.Backfill); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTaxonomies checks taxonomy registrations for errors. A taxonomy may appear
// more than once only with the same carrier type.
func ValidateTaxonomies(taxonomies []TaxonomyConfig) error {
	seen := make(map[string]string, len(taxonomies))
	for i, tax := range taxonomies {
		if tax.Name == "" {
			return fmt.Errorf("taxonomies %d: name is required", i)
		}
		if err := domain.ValidateTaxonomyName(tax.Name); err != nil {
			return fmt.Errorf("taxonomies %d: %w", i, err)
		}
		carrierType := tax.effectiveCarrierType()
		if prev, ok := seen[tax.Name]; ok && prev != carrierType {
			return fmt.Errorf("taxonomies %d (%s): carrier type %q conflicts with %q", i, tax.Name, carrierType, prev)
		}
		seen[tax.Name] = carrierType
	}
	return nil
}

// ValidateBackfill checks the backfill settings, compiling the guard if one is set.
func ValidateBackfill(b BackfillConfig) error {
	if b.Status != "" && !domain.RecordStatus(b.Status).IsValid() {
		return fmt.Errorf("backfill.status must be \"publish\" or \"draft\", got %q", b.Status)
	}
	if b.Guard != "" {
		if _, err := termmeta.CompileGuard(b.Guard); err != nil {
			return fmt.Errorf("backfill.guard: %w", err)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}

	if cfg.Exporter != "" && !slices.Contains(tracing.Exporters, cfg.Exporter) {
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", cfg.Exporter)
	}

	// Only validate path requirements when tracing is enabled
	if cfg.Enabled {
		if cfg.Exporter == "file" && cfg.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if cfg.Exporter == "otlp" && cfg.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// RecordStatus returns the backfill status, defaulting to publish.
func (b BackfillConfig) RecordStatus() domain.RecordStatus {
	if b.Status == "" {
		return domain.RecordStatusPublish
	}
	return domain.RecordStatus(b.Status)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# termmeta configuration

# SQLite database holding taxonomies, terms and carrier records
db_path: .termmeta/termmeta.db

# Debug log written when running with --debug
log_path: .termmeta/debug.log

# Taxonomies with metadata enabled, registered at startup.
# carrier_type is optional and defaults to <name>_tax_meta.
taxonomies: []
# taxonomies:
#   - name: category
#   - name: post_tag
#     carrier_type: tag_meta

# On-demand creation of carrier records for terms that have none
backfill:
  enabled: true      # false leaves carrier-less terms unresolved
  status: publish    # publish (default) or draft
  # Optional expression deciding which terms get a carrier.
  # Variables: Taxonomy, CarrierType, Term.ID, Term.Name, Term.Slug
  # guard: 'Term.Slug != "uncategorized"'

# termmeta watch: flush the cache when the database changes on disk
watch:
  debounce: 500ms

# Resolver counters printed by 'termmeta resolve --stats'
metrics:
  enabled: true

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: .termmeta/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
