package command

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pandal-finder/internal/observability"
)

func newCheckCmd(o *rootOptions) *cobra.Command {
	var lat, lon float64
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the dataset and report skipped rows",
		Long: `Load the configured dataset and report how many pandals were
accepted and which rows were skipped. With --lat and --lon the
coordinate is also validated against the configured region.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			ds, err := loadDataset(cfg, observability.NewLogger(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d pandals from %s\n", ds.Len(), filepath.Base(ds.Source()))
			if skipped := ds.Skipped(); len(skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d rows:\n", len(skipped))
				for _, s := range skipped {
					fmt.Fprintf(out, "  %s\n", s)
				}
			}

			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				fmt.Fprintf(out, "%v,%v: %s\n", lat, lon, cfg.Region.Validate(lat, lon))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude to validate")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude to validate")
	return cmd
}
