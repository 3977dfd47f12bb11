// Package finder answers nearest-pandal queries against the loaded dataset.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"pandal-finder/internal/calculator"
	"pandal-finder/internal/dataset"
	"pandal-finder/internal/models"
	"pandal-finder/internal/observability"
)

// Options configures a Finder. Zero values fall back to calculator defaults.
type Options struct {
	K          int
	RoadFactor float64
	NearbyKm   float64
	Region     calculator.Region
	// CacheTTL of zero disables result caching.
	CacheTTL time.Duration
}

// Result is one answered query. Pandals and Stats may be shared with the
// cache and must not be modified.
type Result struct {
	Query   models.Coordinate     `json:"query"`
	Outcome models.Outcome        `json:"outcome"`
	Pandals []models.RankedPandal `json:"pandals"`
	Stats   models.Stats          `json:"stats"`
}

// Finder ranks the immutable dataset for each query.
type Finder struct {
	ds      *dataset.Dataset
	pandals []models.Pandal
	opts    Options
	cache   *cache.Cache
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(ds *dataset.Dataset, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Finder {
	if opts.K <= 0 {
		opts.K = calculator.DefaultK
	}
	if opts.RoadFactor <= 0 {
		opts.RoadFactor = calculator.DefaultRoadFactor
	}
	if opts.NearbyKm <= 0 {
		opts.NearbyKm = calculator.DefaultNearbyKm
	}
	if opts.Region == (calculator.Region{}) {
		opts.Region = calculator.DefaultRegion
	}

	f := &Finder{
		ds:      ds,
		pandals: ds.Pandals(),
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
	if opts.CacheTTL > 0 {
		f.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	metrics.DatasetSize.Set(float64(ds.Len()))
	return f
}

func (f *Finder) Dataset() *dataset.Dataset { return f.ds }

func (f *Finder) Options() Options { return f.opts }

// Validate classifies q against the configured region.
func (f *Finder) Validate(q models.Coordinate) models.Outcome {
	return f.opts.Region.Validate(q.Lat, q.Lon)
}

// Nearest returns the k closest pandals to q; k <= 0 uses the configured
// default. An out-of-region query is answered with OutcomeOutOfRegion.
func (f *Finder) Nearest(ctx context.Context, q models.Coordinate, k int) (Result, error) {
	if k <= 0 {
		k = f.opts.K
	}
	return f.query(ctx, "nearest", q, cacheKey("nearest", q.Lat, q.Lon, k), func() ([]models.RankedPandal, error) {
		return calculator.Rank(f.pandals, q, calculator.Options{K: k, RoadFactor: f.opts.RoadFactor})
	})
}

// Within returns every pandal whose estimated distance from q is at most radiusKm.
func (f *Finder) Within(ctx context.Context, q models.Coordinate, radiusKm float64) (Result, error) {
	return f.query(ctx, "within", q, cacheKey("within", q.Lat, q.Lon, radiusKm), func() ([]models.RankedPandal, error) {
		return calculator.Within(f.pandals, q, radiusKm, f.opts.RoadFactor)
	})
}

func (f *Finder) query(ctx context.Context, kind string, q models.Coordinate, key string, rank func() ([]models.RankedPandal, error)) (Result, error) {
	outcome := f.Validate(q)
	res := Result{Query: q, Outcome: outcome}

	if q.Missing() {
		res.Outcome = models.OutcomeMissingCoordinates
		f.metrics.Queries.WithLabelValues(kind, res.Outcome.String()).Inc()
		return res, calculator.ErrMissingCoordinates
	}
	if outcome == models.OutcomeOutOfRegion {
		f.logger.WarnContext(ctx, "query outside region", "lat", q.Lat, "lon", q.Lon)
	}

	if f.cache != nil {
		if cached, ok := f.cache.Get(key); ok {
			f.metrics.Cache.WithLabelValues("hit").Inc()
			f.metrics.Queries.WithLabelValues(kind, outcome.String()).Inc()
			hit := cached.(Result)
			hit.Query = q
			return hit, nil
		}
		f.metrics.Cache.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	ranked, err := rank()
	f.metrics.RankDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.Queries.WithLabelValues(kind, "error").Inc()
		if errors.Is(err, calculator.ErrMissingCoordinates) {
			return res, err
		}
		return res, fmt.Errorf("%s query: %w", kind, err)
	}

	res.Pandals = ranked
	res.Stats = calculator.Summarize(ranked, f.opts.NearbyKm)
	f.metrics.Queries.WithLabelValues(kind, outcome.String()).Inc()

	f.logger.DebugContext(ctx, "query answered",
		"kind", kind,
		"lat", q.Lat,
		"lon", q.Lon,
		"results", len(ranked),
		"outcome", outcome.String(),
	)

	if f.cache != nil {
		f.cache.SetDefault(key, res)
	}
	return res, nil
}

// CheckReadiness fails while the dataset holds no pandals.
func (f *Finder) CheckReadiness(_ context.Context) error {
	if f.ds.Len() == 0 {
		return errors.New("dataset is empty")
	}
	return nil
}

func cacheKey(prefix string, params ...interface{}) string {
	key := prefix
	for _, p := range params {
		switch v := p.(type) {
		case float64:
			key += ":" + fmt.Sprintf("%.6f", v)
		default:
			key += ":" + fmt.Sprintf("%v", v)
		}
	}
	return key
}
