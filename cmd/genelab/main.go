// Package main is the entry point for the genelab CLI, the command surface
// over the tabular analytics core: dataset ingestion, previews, interactive
// chart queries, and recipe runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"genelab/internal/analytics"
	"genelab/internal/blob"
	"genelab/internal/infra/persistence/memory"
	"genelab/internal/infra/persistence/postgres"
	"genelab/internal/infra/persistence/sqlite"
	"genelab/internal/observability"
	"genelab/internal/recipe"
	"genelab/pkg/domain"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "genelab",
	Short: "Tabular dataset analytics: canonicalize, query, run recipes",
	Long: `genelab ingests tabular datasets (CSV, TSV, Excel, Parquet, gzip of any),
canonicalizes them into a numeric wide matrix, and answers chart and
statistics queries over them. Canned analyses (correlation, pca, de) run as
tracked jobs whose result files land in the artifact store.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./genelab.yaml or ~/.config/genelab/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("genelab")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "genelab"))
		}
	}

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "genelab.db")
	viper.SetDefault("blob.driver", "fs")
	viper.SetDefault("blob.root", "./artifacts")
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("cache.size", analytics.DefaultCacheSize)
	viper.SetDefault("cache.ttl", analytics.DefaultCacheTTL)

	viper.SetEnvPrefix("GENELAB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// app bundles the wired services shared by subcommands.
type app struct {
	log      *observability.ZapLogger
	metrics  *observability.Metrics
	cache    *analytics.Cache
	datasets domain.DatasetStore
	runs     domain.RunStore
	blobs    blob.Store
	query    *analytics.Engine
	engine   *recipe.Engine
}

func newApp(ctx context.Context) (*app, error) {
	log, err := observability.NewZapLogger(viper.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cache := analytics.NewCache(viper.GetInt("cache.size"), viper.GetDuration("cache.ttl"))

	var datasets domain.DatasetStore
	var runs domain.RunStore
	switch driver := viper.GetString("db.driver"); driver {
	case "memory":
		st := memory.NewStore()
		datasets, runs = st, st
	case "sqlite":
		st, err := sqlite.NewStore(viper.GetString("db.path"))
		if err != nil {
			return nil, err
		}
		datasets, runs = st, st
	case "postgres":
		st, err := postgres.NewStore(ctx, viper.GetString("db.dsn"))
		if err != nil {
			return nil, err
		}
		datasets, runs = st, st
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}

	blobs, err := blob.Open(ctx, blob.Driver(viper.GetString("blob.driver")), viper.GetString("blob.root"))
	if err != nil {
		return nil, err
	}

	return &app{
		log:      log,
		metrics:  metrics,
		cache:    cache,
		datasets: datasets,
		runs:     runs,
		blobs:    blobs,
		query:    analytics.NewEngine(cache, log, metrics),
		engine:   recipe.NewEngine(runs, blobs, log, metrics, viper.GetString("base_url")),
	}, nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) dataset(ctx context.Context, id string) (domain.Dataset, error) {
	return a.datasets.GetDataset(ctx, id)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func nowUTC() time.Time { return time.Now().UTC() }

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
