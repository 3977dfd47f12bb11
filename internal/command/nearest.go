package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pandal-finder/internal/calculator"
	"pandal-finder/internal/dataset"
	"pandal-finder/internal/finder"
	"pandal-finder/internal/maplinks"
	"pandal-finder/internal/models"
	"pandal-finder/internal/observability"
)

type nearestOptions struct {
	lat, lon   float64
	k          int
	roadFactor float64
	xlsxPath   string
}

func newNearestCmd(o *rootOptions) *cobra.Command {
	n := &nearestOptions{}
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Print the nearest pandals to a coordinate",
		Long: `Print the nearest pandals to the given coordinate, closest first.
A latitude or longitude of exactly 0 is treated as "not provided".
Coordinates outside the configured region are ranked anyway, with a
warning on stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNearest(cmd, o, n)
		},
	}
	cmd.Flags().Float64Var(&n.lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&n.lon, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().IntVarP(&n.k, "top", "k", 0, "number of pandals to show (default from config)")
	cmd.Flags().Float64Var(&n.roadFactor, "road-factor", 0, "road distance multiplier (default from config)")
	cmd.Flags().StringVar(&n.xlsxPath, "xlsx", "", "also write the ranking to this .xlsx file")
	return cmd
}

func runNearest(cmd *cobra.Command, o *rootOptions, n *nearestOptions) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if n.roadFactor < 0 {
		return fmt.Errorf("--road-factor must be positive, got %v", n.roadFactor)
	}
	if n.roadFactor > 0 {
		cfg.RoadFactor = n.roadFactor
	}

	logger := observability.NewLogger(cfg)
	ds, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}

	opts := finderOptions(cfg)
	opts.CacheTTL = 0
	f := finder.New(ds, opts, logger, observability.NewUnregisteredMetrics())

	q := models.Coordinate{Lat: n.lat, Lon: n.lon}
	res, err := f.Nearest(cmd.Context(), q, n.k)
	if errors.Is(err, calculator.ErrMissingCoordinates) {
		return fmt.Errorf("%w: pass non-zero --lat and --lon", err)
	}
	if err != nil {
		return err
	}

	if res.Outcome == models.OutcomeOutOfRegion {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v,%v is outside the supported area, double-check the location\n", q.Lat, q.Lon)
	}

	if err := printRanking(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	if n.xlsxPath != "" {
		if err := writeRankingFile(n.xlsxPath, res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", n.xlsxPath)
	}
	return nil
}

func printRanking(out io.Writer, res finder.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tAREA\tDISTANCE\tESTIMATED\tDIRECTIONS")
	for i, p := range res.Pandals {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f km\t%.2f km\t%s\n",
			i+1, p.Name, p.Area, p.DistanceKm, p.EstimatedKm, maplinks.Directions(p.Loc))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := res.Stats
	_, err := fmt.Fprintf(out, "\nClosest: %.2f km | Farthest (in top %d): %.2f km | Within %gkm: %d pandals\n",
		s.ClosestKm, len(res.Pandals), s.FarthestKm, s.NearbyKm, s.WithinNearby)
	return err
}

func writeRankingFile(path string, res finder.Result) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return dataset.WriteRanked(file, res.Query, res.Pandals)
}
