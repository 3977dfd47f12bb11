// Package maplinks builds Google Maps URLs for a coordinate.
package maplinks

import (
	"strconv"

	"pandal-finder/internal/models"
)

const (
	searchBase     = "https://www.google.com/maps/search/?api=1&query="
	directionsBase = "https://www.google.com/maps/dir/?api=1&destination="
)

type Links struct {
	Map        string `json:"map"`
	Directions string `json:"directions"`
}

func formatCoord(c models.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Search returns a link that drops a pin on c.
func Search(c models.Coordinate) string {
	return searchBase + formatCoord(c)
}

// Directions returns a link that starts navigation to c.
func Directions(c models.Coordinate) string {
	return directionsBase + formatCoord(c)
}

func For(c models.Coordinate) Links {
	return Links{Map: Search(c), Directions: Directions(c)}
}
