package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"pandal-finder/internal/apperr"
	"pandal-finder/internal/calculator"
	"pandal-finder/internal/maplinks"
	"pandal-finder/internal/models"
)

// coordForm carries the raw lat/lon strings. An empty value means "not
// provided" and parses as 0.
type coordForm struct {
	Lat string `form:"lat" binding:"omitempty,latitude"`
	Lon string `form:"lon" binding:"omitempty,longitude"`
}

func (f coordForm) toModel() (c models.Coordinate, err error) {
	if f.Lat != "" {
		if c.Lat, err = strconv.ParseFloat(f.Lat, 64); err != nil {
			return
		}
	}
	if f.Lon != "" {
		c.Lon, err = strconv.ParseFloat(f.Lon, 64)
	}
	return
}

type nearestReq struct {
	coordForm
	K int `form:"k" binding:"omitempty,min=1,max=100"`
}

type withinReq struct {
	coordForm
	RadiusKm float64 `form:"radius_km" binding:"required,gt=0,lte=100"`
}

// bind validates the request into req, writing a 400 response on failure.
func bind(c *gin.Context, req any, b binding.Binding) bool {
	switch err := c.ShouldBindWith(req, b).(type) {
	case *validator.InvalidValidationError:
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": err.Error(),
		})
	case validator.ValidationErrors:
		var nameToErrs map[string][]string
		for _, ferr := range err {
			addErr(&nameToErrs, ferr.Field(), ferr.Error())
		}
		c.JSON(http.StatusBadRequest, nameToErrs)
	default:
		if err == nil {
			return true
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": err.Error(),
		})
	}
	return false
}

func addErr(errs *map[string][]string, name string, msgs ...string) {
	if (*errs) == nil {
		*errs = make(map[string][]string)
	}
	(*errs)[name] = append((*errs)[name], msgs...)
}

func serErr(c *gin.Context, err error) {
	if errors.Is(err, calculator.ErrMissingCoordinates) {
		err = apperr.BadRequest(err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		c.JSON(ae.HTTPStatusCode, gin.H{
			"detail": ae.Err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"detail": err.Error(),
	})
}

type pandalView struct {
	Rank        int            `json:"rank"`
	Name        string         `json:"name"`
	Area        string         `json:"area"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	DistanceKm  float64        `json:"distance_km"`
	EstimatedKm float64        `json:"estimated_km"`
	Links       maplinks.Links `json:"links"`
}

func toViews(ranked []models.RankedPandal) []pandalView {
	out := make([]pandalView, len(ranked))
	for i, r := range ranked {
		out[i] = pandalView{
			Rank:        i + 1,
			Name:        r.Name,
			Area:        r.Area,
			Latitude:    r.Loc.Lat,
			Longitude:   r.Loc.Lon,
			DistanceKm:  r.DistanceKm,
			EstimatedKm: r.EstimatedKm,
			Links:       maplinks.For(r.Loc),
		}
	}
	return out
}

const (
	msgMissing     = "Please enter your actual coordinates above."
	msgOutOfRegion = "Coordinates seem to be outside the supported area. Please double-check your location."
	msgEnterFirst  = "Please enter your coordinates first!"
)

// advisory returns the user-facing warning for a validation outcome.
func advisory(o models.Outcome) string {
	switch o {
	case models.OutcomeMissingCoordinates:
		return msgMissing
	case models.OutcomeOutOfRegion:
		return msgOutOfRegion
	default:
		return ""
	}
}
