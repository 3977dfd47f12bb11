package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"pandal-finder/internal/calculator"
	"pandal-finder/internal/models"
)

const (
	defaultLat = "22.5744"
	defaultLon = "88.3629"
)

type pageData struct {
	Count   int
	Lat     string
	Lon     string
	TopK    int // entries actually shown
	Warning string
	Error   string
	Results []pandalView
	Stats   *models.Stats
}

func (s *Server) newPage(form coordForm) pageData {
	p := pageData{
		Count: s.finder.Dataset().Len(),
		Lat:   form.Lat,
		Lon:   form.Lon,
	}
	if q, err := form.toModel(); err == nil {
		p.Warning = advisory(s.finder.Validate(q))
	}
	return p
}

func lastQuery(c *gin.Context) coordForm {
	session := sessions.Default(c)
	f := coordForm{Lat: defaultLat, Lon: defaultLon}
	if v, ok := session.Get("lat").(string); ok {
		f.Lat = v
	}
	if v, ok := session.Get("lon").(string); ok {
		f.Lon = v
	}
	return f
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.newPage(lastQuery(c)))
}

func (s *Server) handleFind(c *gin.Context) {
	form := coordForm{}
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		page := s.newPage(form)
		page.Warning = ""
		page.Error = fmt.Sprintf("Invalid coordinates: %v", err)
		c.HTML(http.StatusOK, "index.html", page)
		return
	}

	session := sessions.Default(c)
	session.Set("lat", form.Lat)
	session.Set("lon", form.Lon)
	if err := session.Save(); err != nil {
		s.logger.WarnContext(c.Request.Context(), "saving session", "error", err)
	}

	page := s.newPage(form)
	q, err := form.toModel()
	if err != nil {
		page.Error = fmt.Sprintf("Invalid coordinates: %v", err)
		c.HTML(http.StatusOK, "index.html", page)
		return
	}

	res, err := s.finder.Nearest(c.Request.Context(), q, 0)
	switch {
	case errors.Is(err, calculator.ErrMissingCoordinates):
		page.Error = msgEnterFirst
	case err != nil:
		page.Error = err.Error()
	default:
		page.Results = toViews(res.Pandals)
		page.Stats = &res.Stats
		page.TopK = len(res.Pandals)
	}
	c.HTML(http.StatusOK, "index.html", page)
}
