// Package command provides the root and sub-commands of pandal-finder.
// The root command starts the web server. The nearest and check
// sub-commands work on the dataset directly from a terminal.
//
//	./pandal-finder [-c config.yaml] [--dataset pandal_loc2.csv]
//	./pandal-finder nearest --lat 22.5744 --lon 88.3629 [-k 5] [--xlsx out.xlsx]
//	./pandal-finder check [--lat 22.5744 --lon 88.3629]
package command

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pandal-finder/internal/config"
	"pandal-finder/internal/dataset"
	"pandal-finder/internal/finder"
)

type rootOptions struct {
	cfgPath     string
	datasetPath string
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "pandal-finder",
		Short: "Find the nearest Durga Puja pandals",
		Long: `Find the nearest Durga Puja pandals to a location.
The pandal table (CSV or XLSX) is loaded once at startup and every
query ranks it by estimated road distance, which is the great-circle
distance scaled by a constant road factor.
Without a sub-command the web server is started.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, o)
		},
	}

	root.PersistentFlags().StringVarP(&o.cfgPath, "config", "c", "", "config file path (falls back to $CONFIG_FILE)")
	root.PersistentFlags().StringVar(&o.datasetPath, "dataset", "", "pandal dataset path, overrides the config")

	root.AddCommand(newServeCmd(o), newNearestCmd(o), newCheckCmd(o))
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.cfgPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load(%q): %w", path, err)
	}
	if o.datasetPath != "" {
		cfg.DatasetPath = o.datasetPath
	}
	return cfg, nil
}

func loadDataset(cfg *config.Config, logger *slog.Logger) (*dataset.Dataset, error) {
	ds, err := dataset.LoadWithOptions(cfg.DatasetPath, dataset.LoadOptions{Sheet: cfg.DatasetSheet})
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			return nil, fmt.Errorf("%s not found, please make sure the file exists: %w", cfg.DatasetPath, err)
		}
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	for _, s := range ds.Skipped() {
		logger.Warn("skipped dataset row", "row", s.Row, "reason", s.Reason)
	}
	logger.Info("dataset loaded",
		"source", filepath.Base(ds.Source()),
		"pandals", ds.Len(),
		"skipped", len(ds.Skipped()),
	)
	return ds, nil
}

func finderOptions(cfg *config.Config) finder.Options {
	return finder.Options{
		K:          cfg.TopK,
		RoadFactor: cfg.RoadFactor,
		NearbyKm:   cfg.NearbyKm,
		Region:     cfg.Region,
		CacheTTL:   cfg.CacheTTL,
	}
}
