package calculator

import "pandal-finder/internal/models"

// Region is an inclusive lat/lon bounding box used for the out-of-region advisory.
type Region struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// DefaultRegion covers the Kolkata metropolitan area.
var DefaultRegion = Region{MinLat: 22.0, MaxLat: 23.0, MinLon: 88.0, MaxLon: 89.0}

func (r Region) Contains(c models.Coordinate) bool {
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat &&
		c.Lon >= r.MinLon && c.Lon <= r.MaxLon
}

// Validate classifies a user-supplied coordinate. OutcomeOutOfRegion is
// advisory only; Rank still accepts such a query.
func (r Region) Validate(lat, lon float64) models.Outcome {
	if lat == 0 && lon == 0 {
		return models.OutcomeMissingCoordinates
	}
	if !r.Contains(models.Coordinate{Lat: lat, Lon: lon}) {
		return models.OutcomeOutOfRegion
	}
	return models.OutcomeOK
}

// Validate checks lat/lon against DefaultRegion.
func Validate(lat, lon float64) models.Outcome {
	return DefaultRegion.Validate(lat, lon)
}
