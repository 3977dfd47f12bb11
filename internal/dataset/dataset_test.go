package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pandal-finder/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "pandals.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad_CSVPreservesOrder(t *testing.T) {
	path := writeFile(t, "pandals.csv", `name,area,latitude,longitude
Bagbazar Sarbojanin,North Kolkata,22.6022,88.3666
Md Ali Park,Central,22.5806,88.3587
Bagbazar Sarbojanin,North Kolkata,22.6022,88.3666
`)
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.October, 1, 18, 0, 0, 0, time.UTC))

	ds, err := LoadWithOptions(path, LoadOptions{Clock: clock})
	require.NoError(t, err)

	want := []models.Pandal{
		{Row: 1, Name: "Bagbazar Sarbojanin", Area: "North Kolkata", Loc: models.Coordinate{Lat: 22.6022, Lon: 88.3666}},
		{Row: 2, Name: "Md Ali Park", Area: "Central", Loc: models.Coordinate{Lat: 22.5806, Lon: 88.3587}},
		{Row: 3, Name: "Bagbazar Sarbojanin", Area: "North Kolkata", Loc: models.Coordinate{Lat: 22.6022, Lon: 88.3666}},
	}
	if diff := cmp.Diff(want, ds.Pandals()); diff != "" {
		t.Errorf("pandals mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, path, ds.Source())
	assert.Equal(t, clock.Now(), ds.LoadedAt())
	assert.Empty(t, ds.Skipped())
}

func TestLoad_CSVHeaderVariants(t *testing.T) {
	path := writeFile(t, "pandals.csv", "\ufeffID, Name ,AREA,Lat,Lng,Notes\n"+
		"7,Santosh Mitra Square,Sealdah,22.5679,88.3715,theme\n"+
		"8,\"Deshapriya Park\",Kalighat,\"22,5183\",\"88,3522\",\n")

	ds, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	p := ds.Pandals()
	assert.Equal(t, "Santosh Mitra Square", p[0].Name)
	assert.Equal(t, "Sealdah", p[0].Area)
	assert.Equal(t, 22.5679, p[0].Loc.Lat)
	assert.Equal(t, 22.5183, p[1].Loc.Lat)
	assert.Equal(t, 88.3522, p[1].Loc.Lon)
}

func TestLoad_SkipsInvalidRows(t *testing.T) {
	path := writeFile(t, "pandals.csv", `name,area,latitude,longitude
Good,A,22.5,88.3
,B,22.5,88.3
Bad Lat,C,north,88.3
Bad Lon,D,22.5,

NaN,E,NaN,88.3
Also Good,F,22.6,88.4
`)

	ds, err := Load(path)
	require.NoError(t, err)

	p := ds.Pandals()
	require.Len(t, p, 2)
	assert.Equal(t, "Good", p[0].Name)
	assert.Equal(t, "Also Good", p[1].Name)
	// blank lines are not data rows
	assert.Equal(t, 6, p[1].Row)

	assert.Equal(t, []RowError{
		{Row: 2, Reason: "empty name"},
		{Row: 3, Reason: "invalid latitude"},
		{Row: 4, Reason: "invalid longitude"},
		{Row: 5, Reason: "invalid latitude"},
	}, ds.Skipped())
}

func TestLoad_NotFound(t *testing.T) {
	for _, name := range []string{"missing.csv", "missing.xlsx"} {
		ds, err := Load(filepath.Join(t.TempDir(), name))
		require.ErrorIs(t, err, ErrNotFound, name)
		assert.Nil(t, ds)
	}
}

func TestLoad_MissingColumn(t *testing.T) {
	path := writeFile(t, "pandals.csv", "name,latitude,longitude\nA,22.5,88.3\n")

	ds, err := Load(path)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "area")
	assert.Nil(t, ds)
}

func TestLoad_EmptyFile(t *testing.T) {
	_, err := Load(writeFile(t, "pandals.csv", ""))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLoad_MalformedCSV(t *testing.T) {
	_, err := Load(writeFile(t, "pandals.csv", "name,area,latitude,longitude\n\"unterminated,A,22.5,88.3\n"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLoad_XLSX(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"name", "area", "latitude", "longitude"},
		{"College Square", "College Street", 22.5735, 88.3630},
		{"Ekdalia Evergreen", "Gariahat", 22.5170, 88.3679},
	})

	ds, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "Ekdalia Evergreen", ds.Pandals()[1].Name)
	assert.Equal(t, 88.3679, ds.Pandals()[1].Loc.Lon)
}

func TestLoad_XLSXNamedSheet(t *testing.T) {
	path := writeWorkbook(t, "Pandals", [][]interface{}{
		{"name", "area", "latitude", "longitude"},
		{"Tala Prattoy", "Tala", 22.6053, 88.3790},
	})

	ds, err := LoadWithOptions(path, LoadOptions{Sheet: "Pandals"})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	_, err = LoadWithOptions(path, LoadOptions{Sheet: "Nope"})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLoad_XLSXFormattedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"name", "area", "latitude", "longitude"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"College Square", "College Street", 22.5744, 88.3629}))
	style, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "C2", "D2", style))

	// sanity check: the formatted view is rounded
	shown, err := f.GetCellValue("Sheet1", "C2")
	require.NoError(t, err)
	require.Equal(t, "22.57", shown)

	path := filepath.Join(t.TempDir(), "formatted.xlsx")
	require.NoError(t, f.SaveAs(path))

	ds, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, models.Coordinate{Lat: 22.5744, Lon: 88.3629}, ds.Pandals()[0].Loc)
}

func TestNew_CopiesInput(t *testing.T) {
	in := []models.Pandal{{Row: 1, Name: "A"}}
	ds := New("memory", in, time.Time{})
	in[0].Name = "changed"

	assert.Equal(t, "A", ds.Pandals()[0].Name)

	out := ds.Pandals()
	out[0].Name = "changed"
	assert.Equal(t, "A", ds.Pandals()[0].Name)
}

func TestLoadPoints(t *testing.T) {
	path := writeFile(t, "points.csv", `name,latitude,longitude
Home,22.59,88.39
Office,oops,88.31
,22.51,88.31
`)

	points, skipped, err := LoadPoints(path, "")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Home", points[0].Name)
	assert.Equal(t, 3, points[1].Row)
	assert.Equal(t, []RowError{{Row: 2, Reason: "invalid latitude"}}, skipped)
}

func TestWriteRanked(t *testing.T) {
	ranked := []models.RankedPandal{
		{
			Pandal:      models.Pandal{Row: 1, Name: "A", Area: "X", Loc: models.Coordinate{Lat: 22.6, Lon: 88.4}},
			DistanceKm:  4.7551,
			EstimatedKm: 6.18163,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRanked(&buf, models.Coordinate{Lat: 22.5744, Lon: 88.3629}, ranked))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(RankedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Query", "22.5744", "88.3629"}, rows[0])
	assert.Equal(t, "Estimated (km)", rows[1][6])
	assert.Equal(t, "A", rows[2][1])
	assert.Equal(t, "6.18", rows[2][6])
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=22.6,88.4", rows[2][7])
}

func TestWriteBatch(t *testing.T) {
	rows := []models.BatchRow{
		{
			Point:   models.QueryPoint{Row: 1, Name: "Home", Loc: models.Coordinate{Lat: 22.59, Lon: 88.39}},
			Nearest: models.RankedPandal{Pandal: models.Pandal{Name: "A", Loc: models.Coordinate{Lat: 22.6, Lon: 88.4}}, DistanceKm: 1.5, EstimatedKm: 1.95},
			Found:   true,
		},
		{Point: models.QueryPoint{Row: 2, Name: "Nowhere"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBatch(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(BatchSheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Pandal", got[0][5])
	assert.Equal(t, "A", got[1][5])
	assert.Equal(t, "not found", got[2][5])
}
