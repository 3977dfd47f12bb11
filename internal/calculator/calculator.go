package calculator

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"pandal-finder/internal/models"
)

const (
	DefaultK          = 10
	DefaultRoadFactor = 1.3
	DefaultNearbyKm   = 5.0
)

// ErrMissingCoordinates is returned when a query has a zero latitude or longitude.
var ErrMissingCoordinates = errors.New("coordinates not provided")

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

// Options tunes Rank. Zero values fall back to DefaultK and DefaultRoadFactor.
type Options struct {
	K          int
	RoadFactor float64
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.RoadFactor <= 0 {
		o.RoadFactor = DefaultRoadFactor
	}
	return o
}

func estimateAll(pandals []models.Pandal, query models.Coordinate, roadFactor float64) []models.RankedPandal {
	ranked := make([]models.RankedPandal, len(pandals))
	for i, p := range pandals {
		d := DistanceKm(query.Lat, query.Lon, p.Loc.Lat, p.Loc.Lon)
		ranked[i] = models.RankedPandal{
			Pandal:      p,
			DistanceKm:  d,
			EstimatedKm: d * roadFactor,
		}
	}
	// stable: equal estimates keep dataset order
	slices.SortStableFunc(ranked, func(a, b models.RankedPandal) int {
		return cmp.Compare(a.EstimatedKm, b.EstimatedKm)
	})
	return ranked
}

// Rank returns the K pandals closest to query, ascending by estimated road
// distance.
func Rank(pandals []models.Pandal, query models.Coordinate, opts Options) ([]models.RankedPandal, error) {
	if query.Missing() {
		return nil, ErrMissingCoordinates
	}
	opts = opts.withDefaults()

	ranked := estimateAll(pandals, query, opts.RoadFactor)
	if len(ranked) > opts.K {
		ranked = ranked[:opts.K]
	}
	return ranked, nil
}

// Within returns every pandal whose estimated distance is at most radiusKm.
func Within(pandals []models.Pandal, query models.Coordinate, radiusKm, roadFactor float64) ([]models.RankedPandal, error) {
	if query.Missing() {
		return nil, ErrMissingCoordinates
	}
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("invalid radius %v", radiusKm)
	}
	if roadFactor <= 0 {
		roadFactor = DefaultRoadFactor
	}

	ranked := estimateAll(pandals, query, roadFactor)
	n, _ := slices.BinarySearchFunc(ranked, radiusKm, func(r models.RankedPandal, t float64) int {
		if r.EstimatedKm <= t {
			return -1
		}
		return 1
	})
	return ranked[:n], nil
}

// Summarize computes statistics over an already ranked list. FarthestKm is the
// last entry of ranked, not the farthest pandal overall.
func Summarize(ranked []models.RankedPandal, nearbyKm float64) models.Stats {
	if nearbyKm <= 0 {
		nearbyKm = DefaultNearbyKm
	}
	s := models.Stats{NearbyKm: nearbyKm}
	if len(ranked) == 0 {
		return s
	}
	s.ClosestKm = ranked[0].EstimatedKm
	s.FarthestKm = ranked[len(ranked)-1].EstimatedKm
	for _, r := range ranked {
		if r.EstimatedKm <= nearbyKm {
			s.WithinNearby++
		}
	}
	return s
}

// NearestEach finds the single nearest pandal for every query point. Work is
// split across CPUs; results keep the order of points.
func NearestEach(points []models.QueryPoint, pandals []models.Pandal, roadFactor float64, onProgress ProgressCallback, logger LoggerCallback) ([]models.BatchRow, error) {
	if len(points) == 0 || len(pandals) == 0 {
		return nil, fmt.Errorf("empty input lists")
	}
	if roadFactor <= 0 {
		roadFactor = DefaultRoadFactor
	}
	if logger == nil {
		logger = func(string) {}
	}

	total := len(points)
	results := make([]models.BatchRow, total)

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunkSize := (total + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	var processedCount int64

	logger(fmt.Sprintf("Starting parallel processing with %d CPUs, %d points, %d pandals", numCPU, total, len(pandals)))

	for i := 0; i < numCPU; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()

			for idx := s; idx < e; idx++ {
				src := points[idx]
				row := models.BatchRow{Point: src}

				if !src.Loc.Missing() {
					nearestIdx := 0
					minDist := math.MaxFloat64
					for pIdx, p := range pandals {
						d := DistanceKm(src.Loc.Lat, src.Loc.Lon, p.Loc.Lat, p.Loc.Lon)
						// strict less keeps the earliest row on ties
						if d < minDist {
							minDist = d
							nearestIdx = pIdx
						}
					}
					row.Found = true
					row.Nearest = models.RankedPandal{
						Pandal:      pandals[nearestIdx],
						DistanceKm:  minDist,
						EstimatedKm: minDist * roadFactor,
					}
				}
				results[idx] = row

				count := atomic.AddInt64(&processedCount, 1)
				if count%500 == 0 && onProgress != nil {
					onProgress(int(count), total, "")
				}
			}
		}(start, end)
	}

	wg.Wait()

	if onProgress != nil {
		onProgress(total, total, "")
	}

	logger("Calculation completed.")
	return results, nil
}
