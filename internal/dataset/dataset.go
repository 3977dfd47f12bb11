// Package dataset loads the pandal table from CSV or XLSX files and exports
// rankings back to XLSX.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"pandal-finder/internal/models"
)

var (
	// ErrNotFound means the dataset file does not exist or cannot be read.
	ErrNotFound = errors.New("dataset not found")
	// ErrMissingColumn means the header row lacks a required column.
	ErrMissingColumn = errors.New("dataset missing required column")
	// ErrMalformed means the file was readable but could not be parsed as a table.
	ErrMalformed = errors.New("dataset malformed")
)

// RowError records a data row that was skipped during loading.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Dataset is the immutable, ordered set of pandals loaded once at startup.
type Dataset struct {
	source   string
	pandals  []models.Pandal
	skipped  []RowError
	loadedAt time.Time
}

// New builds a Dataset from already parsed pandals. The slice is copied.
func New(source string, pandals []models.Pandal, loadedAt time.Time) *Dataset {
	return &Dataset{
		source:   source,
		pandals:  slices.Clone(pandals),
		loadedAt: loadedAt,
	}
}

func (d *Dataset) Len() int { return len(d.pandals) }

// Pandals returns a copy of the records in source order.
func (d *Dataset) Pandals() []models.Pandal { return slices.Clone(d.pandals) }

func (d *Dataset) Source() string { return d.source }
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }
func (d *Dataset) Skipped() []RowError { return slices.Clone(d.skipped) }

type LoadOptions struct {
	// Sheet selects the worksheet of an .xlsx file; empty means the first one.
	Sheet string
	Clock clockwork.Clock
}

// Load reads the pandal table at path with default options.
func Load(path string) (*Dataset, error) {
	return LoadWithOptions(path, LoadOptions{})
}

func LoadWithOptions(path string, opts LoadOptions) (*Dataset, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	records, err := readTable(path, opts.Sheet)
	if err != nil {
		return nil, err
	}

	pandals, skipped, err := parsePandals(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Dataset{
		source:   path,
		pandals:  pandals,
		skipped:  skipped,
		loadedAt: opts.Clock.Now(),
	}, nil
}

// LoadPoints reads a table of query points (name, latitude, longitude and
// an optional area) for batch processing.
func LoadPoints(path, sheet string) ([]models.QueryPoint, []RowError, error) {
	records, err := readTable(path, sheet)
	if err != nil {
		return nil, nil, err
	}
	points, skipped, err := parsePoints(records)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, skipped, nil
}

func readTable(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path, sheet)
	default:
		return readCSV(path)
	}
}

var columnAliases = map[string][]string{
	"name":      {"name"},
	"area":      {"area"},
	"latitude":  {"latitude", "lat"},
	"longitude": {"longitude", "lon", "lng"},
}

type columns map[string]int

func mapHeader(header []string, required ...string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	cols := columns{}
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				cols[field] = i
				break
			}
		}
	}
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, r)
		}
	}
	return cols, nil
}

func (c columns) get(row []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCoord(val string) (float64, error) {
	// decimal comma, as exported by some spreadsheet locales
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseFloat(val, 64)
}

func parseLoc(cols columns, row []string) (models.Coordinate, string) {
	lat, err := parseCoord(cols.get(row, "latitude"))
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return models.Coordinate{}, "invalid latitude"
	}
	lon, err := parseCoord(cols.get(row, "longitude"))
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return models.Coordinate{}, "invalid longitude"
	}
	return models.Coordinate{Lat: lat, Lon: lon}, ""
}

func parsePandals(records [][]string) ([]models.Pandal, []RowError, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: no header row", ErrMalformed)
	}
	cols, err := mapHeader(records[0], "name", "area", "latitude", "longitude")
	if err != nil {
		return nil, nil, err
	}

	pandals := make([]models.Pandal, 0, len(records)-1)
	var skipped []RowError
	for i, row := range records[1:] {
		rowNum := i + 1
		if isBlank(row) {
			continue
		}
		name := cols.get(row, "name")
		if name == "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "empty name"})
			continue
		}
		loc, reason := parseLoc(cols, row)
		if reason != "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: reason})
			continue
		}
		pandals = append(pandals, models.Pandal{
			Row:  rowNum,
			Name: name,
			Area: cols.get(row, "area"),
			Loc:  loc,
		})
	}
	return pandals, skipped, nil
}

func parsePoints(records [][]string) ([]models.QueryPoint, []RowError, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: no header row", ErrMalformed)
	}
	cols, err := mapHeader(records[0], "latitude", "longitude")
	if err != nil {
		return nil, nil, err
	}

	var points []models.QueryPoint
	var skipped []RowError
	for i, row := range records[1:] {
		rowNum := i + 1
		if isBlank(row) {
			continue
		}
		loc, reason := parseLoc(cols, row)
		if reason != "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: reason})
			continue
		}
		points = append(points, models.QueryPoint{
			Row:  rowNum,
			Name: cols.get(row, "name"),
			Area: cols.get(row, "area"),
			Loc:  loc,
		})
	}
	return points, skipped, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
