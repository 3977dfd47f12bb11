package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"

	"github.com/xuri/excelize/v2"

	"pandal-finder/internal/maplinks"
	"pandal-finder/internal/models"
)

const (
	RankedSheet = "Nearest"
	BatchSheet  = "Results"
)

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		var perr *fs.PathError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformed)
		}
		sheet = sheets[0]
	}

	// raw values: a number format like "0.00" would otherwise round coordinates
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformed, sheet, err)
	}
	return rows, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteRanked writes a ranking as an .xlsx workbook to w.
func WriteRanked(w io.Writer, query models.Coordinate, ranked []models.RankedPandal) error {
	header := []interface{}{
		"#", "Name", "Area", "Latitude", "Longitude",
		"Distance (km)", "Estimated (km)", "Map", "Directions",
	}
	preamble := [][]interface{}{
		{"Query", query.Lat, query.Lon},
	}

	return writeSheet(w, RankedSheet, preamble, header, len(ranked), func(i int) []interface{} {
		r := ranked[i]
		links := maplinks.For(r.Loc)
		return []interface{}{
			i + 1, r.Name, r.Area, r.Loc.Lat, r.Loc.Lon,
			round2(r.DistanceKm), round2(r.EstimatedKm), links.Map, links.Directions,
		}
	})
}

// WriteBatch writes the nearest pandal for each batch point as an .xlsx workbook to w.
func WriteBatch(w io.Writer, rows []models.BatchRow) error {
	header := []interface{}{
		"Row", "Point", "Point Area", "Point Lat", "Point Lon",
		"Pandal", "Pandal Area", "Pandal Lat", "Pandal Lon",
		"Distance (km)", "Estimated (km)", "Directions",
	}

	return writeSheet(w, BatchSheet, nil, header, len(rows), func(i int) []interface{} {
		r := rows[i]
		row := []interface{}{
			r.Point.Row, r.Point.Name, r.Point.Area, r.Point.Loc.Lat, r.Point.Loc.Lon,
		}
		if !r.Found {
			return append(row, "not found")
		}
		n := r.Nearest
		return append(row,
			n.Name, n.Area, n.Loc.Lat, n.Loc.Lon,
			round2(n.DistanceKm), round2(n.EstimatedKm), maplinks.Directions(n.Loc),
		)
	})
}

func writeSheet(w io.Writer, sheetName string, preamble [][]interface{}, header []interface{}, n int, rowAt func(int) []interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Use Stream Writer for performance
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	rowNum := 1
	for _, p := range preamble {
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := sw.SetRow(cell, p); err != nil {
			return err
		}
		rowNum++
	}

	cell, _ := excelize.CoordinatesToCellName(1, rowNum)
	if err := sw.SetRow(cell, header); err != nil {
		return err
	}
	rowNum++

	for i := 0; i < n; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, rowNum+i)
		if err := sw.SetRow(cell, rowAt(i)); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}

	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	return f.Write(w)
}
