package models

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Missing reports whether either component is the "not provided" sentinel 0.
// Ranking refuses such a query even though only 0/0 counts as missing when
// validating.
func (c Coordinate) Missing() bool {
	return c.Lat == 0 || c.Lon == 0
}

type Pandal struct {
	Row  int        `json:"row"` // 1-based data row in the source file
	Name string     `json:"name"`
	Area string     `json:"area"`
	Loc  Coordinate `json:"location"`
}

type RankedPandal struct {
	Pandal
	DistanceKm  float64 `json:"distance_km"`
	EstimatedKm float64 `json:"estimated_km"`
}

type Stats struct {
	ClosestKm    float64 `json:"closest_km"`
	FarthestKm   float64 `json:"farthest_km"`
	WithinNearby int     `json:"within_nearby"`
	NearbyKm     float64 `json:"nearby_km"`
}

// QueryPoint is one row of a batch upload.
type QueryPoint struct {
	Row  int
	Name string
	Area string
	Loc  Coordinate
}

type BatchRow struct {
	Point   QueryPoint
	Nearest RankedPandal
	Found   bool
}

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMissingCoordinates
	OutcomeOutOfRegion
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMissingCoordinates:
		return "missing_coordinates"
	case OutcomeOutOfRegion:
		return "out_of_region"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
