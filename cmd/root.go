package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/termmeta/internal/config"
	"github.com/zjrosen/termmeta/internal/infrastructure/sqlite"
	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/metrics"
	"github.com/zjrosen/termmeta/internal/pubsub"
	"github.com/zjrosen/termmeta/internal/termmeta"
	"github.com/zjrosen/termmeta/internal/tracing"
)

var version = "dev"

// env holds everything a command needs once config is loaded and the database is open.
type env struct {
	v          *viper.Viper
	cfg        config.Config
	configPath string

	db       *sqlite.DB
	store    *sqlite.HostStore
	registry *termmeta.Registry
	resolver *termmeta.Resolver
	events   *pubsub.Broker[termmeta.CarrierEvent]
	tracer   *tracing.Provider
	metrics  *prometheus.Registry

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

type rootOptions struct {
	cfgFile string
	dbPath  string
	debug   bool
}

// newRootCmd builds the command tree. The env is created in PersistentPreRunE and
// stored in *app so subcommands and the caller can reach it.
func newRootCmd(app **env) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "termmeta",
		Short: "Attach metadata carrier records to taxonomy terms",
		Long: `termmeta keeps one carrier record per term of every registered taxonomy.

Registered taxonomies get a carrier entity type (default <taxonomy>_tax_meta).
Resolving a term returns its carrier record id, creating the record on demand
when the term has none yet.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			*app = e
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "",
		"config file (default: .termmeta/config.yaml or ~/.config/termmeta/config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "",
		"path to the SQLite database (overrides db_path)")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false,
		"write debug logs to log_path")

	root.AddCommand(
		newTaxonomyCmd(app),
		newTermCmd(app),
		newRegisterCmd(app),
		newResolveCmd(app),
		newSeedCmd(app),
		newWatchCmd(app),
	)
	return root
}

// loadConfig locates, reads and validates the configuration.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*viper.Viper, config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	v.SetEnvPrefix("TERMMETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if f := cmd.Flags().Lookup("db"); f != nil {
		_ = v.BindPFlag("db_path", f)
	}

	// Config lookup order:
	// 1. --config
	// 2. .termmeta/config.yaml (current directory)
	// 3. ~/.config/termmeta/config.yaml (user config)
	defaultPath := filepath.Join(config.DefaultDir, "config.yaml")
	switch {
	case opts.cfgFile != "":
		v.SetConfigFile(opts.cfgFile)
		defaultPath = opts.cfgFile
	case fileExists(defaultPath):
		v.SetConfigFile(defaultPath)
	default:
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "termmeta"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && fileExists(defaultPath) {
			return nil, config.Config{}, fmt.Errorf("reading config: %w", err)
		}
		// No config anywhere: write the commented default and read it back.
		if writeErr := config.WriteDefaultConfig(defaultPath); writeErr != nil {
			return nil, config.Config{}, writeErr
		}
		v.SetConfigFile(defaultPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, config.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, config.Config{}, err
	}
	return v, cfg, nil
}

func setup(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*env, error) {
	v, cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	e := &env{v: v, cfg: cfg, configPath: v.ConfigFileUsed()}

	if opts.debug || os.Getenv("TERMMETA_DEBUG") != "" {
		cleanup, err := log.Init(cfg.LogPath)
		if err != nil {
			return nil, fmt.Errorf("initializing log: %w", err)
		}
		e.closers = append(e.closers, func() error { cleanup(); return nil })
	}
	log.Info(log.CatConfig, "loaded config", "path", e.configPath, "db", cfg.DBPath)

	if err := e.open(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// open wires the database, observability and resolver from e.cfg.
func (e *env) open(ctx context.Context) error {
	cfg := e.cfg

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	e.tracer = provider
	e.closers = append(e.closers, func() error { return provider.Shutdown(context.Background()) })

	var resolverMetrics *metrics.ResolverMetrics
	if cfg.Metrics.Enabled {
		e.metrics = metrics.NewRegistry()
		resolverMetrics, err = metrics.NewResolverMetrics(e.metrics)
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
	}

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	e.db = db
	e.store = db.Host()
	e.closers = append(e.closers, db.Close)

	creator, err := buildCreator(cfg.Backfill, e.store)
	if err != nil {
		return err
	}

	e.events = pubsub.NewBroker[termmeta.CarrierEvent]()
	e.closers = append(e.closers, func() error { e.events.Close(); return nil })

	e.registry = termmeta.NewRegistry(e.store, termmeta.WithRegistryTracer(provider.Tracer()))
	e.resolver = termmeta.NewResolver(e.registry, e.store, e.store, creator,
		termmeta.WithEventBus(e.events),
		termmeta.WithTracer(provider.Tracer()),
		termmeta.WithMetrics(resolverMetrics),
	)

	for _, tax := range cfg.Taxonomies {
		if _, err := e.registry.Register(ctx, tax.Name, tax.CarrierType); err != nil {
			// The taxonomy may not be created yet; commands still run and
			// the registration is retried on the next start.
			log.Warn(log.CatRegistry, "skipping configured taxonomy", "taxonomy", tax.Name, "error", err)
		}
	}
	return nil
}

// buildCreator picks the carrier creation strategy from the backfill settings.
func buildCreator(cfg config.BackfillConfig, store *sqlite.HostStore) (termmeta.CarrierCreator, error) {
	if !cfg.Enabled {
		return termmeta.DeferCreator{}, nil
	}
	var creator termmeta.CarrierCreator = &termmeta.DefaultCreator{
		Writer: store,
		Status: cfg.RecordStatus(),
	}
	if cfg.Guard != "" {
		guarded, err := termmeta.NewGuardedCreator(cfg.Guard, creator)
		if err != nil {
			return nil, fmt.Errorf("backfill.guard: %w", err)
		}
		creator = guarded
	}
	return creator, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Execute runs the root command
func Execute() error {
	var app *env
	root := newRootCmd(&app)
	root.SetVersionTemplate("termmeta {{.Version}}\n")
	err := root.ExecuteContext(context.Background())
	if app != nil {
		if closeErr := app.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
