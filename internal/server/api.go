package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"pandal-finder/internal/apperr"
	"pandal-finder/internal/batch"
	"pandal-finder/internal/dataset"
	"pandal-finder/internal/finder"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func resultJSON(res finder.Result) gin.H {
	return gin.H{
		"query":   res.Query,
		"outcome": res.Outcome,
		"warning": advisory(res.Outcome),
		"pandals": toViews(res.Pandals),
		"stats":   res.Stats,
	}
}

func (s *Server) handleList(c *gin.Context) {
	ds := s.finder.Dataset()
	c.JSON(http.StatusOK, gin.H{
		"count":     ds.Len(),
		"source":    filepath.Base(ds.Source()),
		"loaded_at": ds.LoadedAt(),
		"pandals":   ds.Pandals(),
	})
}

func (s *Server) handleNearest(c *gin.Context) {
	req := &nearestReq{}
	if !bind(c, req, binding.Query) {
		return
	}
	q, err := req.toModel()
	if err != nil {
		serErr(c, apperr.BadRequest(err))
		return
	}

	res, err := s.finder.Nearest(c.Request.Context(), q, req.K)
	if err != nil {
		serErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resultJSON(res))
}

func (s *Server) handleNearestExport(c *gin.Context) {
	req := &nearestReq{}
	if !bind(c, req, binding.Query) {
		return
	}
	q, err := req.toModel()
	if err != nil {
		serErr(c, apperr.BadRequest(err))
		return
	}

	res, err := s.finder.Nearest(c.Request.Context(), q, req.K)
	if err != nil {
		serErr(c, err)
		return
	}

	var buf bytes.Buffer
	if err := dataset.WriteRanked(&buf, res.Query, res.Pandals); err != nil {
		serErr(c, fmt.Errorf("writing workbook: %w", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="nearest_pandals.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) handleWithin(c *gin.Context) {
	req := &withinReq{}
	if !bind(c, req, binding.Query) {
		return
	}
	q, err := req.toModel()
	if err != nil {
		serErr(c, apperr.BadRequest(err))
		return
	}

	res, err := s.finder.Within(c.Request.Context(), q, req.RadiusKm)
	if err != nil {
		serErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resultJSON(res))
}

func (s *Server) handleBatchSubmit(c *gin.Context) {
	file, err := c.FormFile("input_file")
	if err != nil {
		serErr(c, apperr.BadRequest(errors.New("input_file is required")))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".csv" && ext != ".xlsx" {
		serErr(c, apperr.BadRequest(fmt.Errorf("unsupported file type %q", ext)))
		return
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		serErr(c, fmt.Errorf("creating upload dir: %w", err))
		return
	}
	inputPath := filepath.Join(s.opts.UploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, inputPath); err != nil {
		serErr(c, fmt.Errorf("saving upload: %w", err))
		return
	}

	job := s.runner.Submit(inputPath)
	s.logger.InfoContext(c.Request.Context(), "batch job submitted", "job_id", job.ID, "file", file.Filename)
	c.JSON(http.StatusAccepted, job.Snapshot())
}

func (s *Server) lookupJob(c *gin.Context) *batch.Job {
	job := s.runner.Store().Get(c.Param("id"))
	if job == nil {
		serErr(c, apperr.NotFound(errors.New("job not found")))
	}
	return job
}

func (s *Server) handleBatchStatus(c *gin.Context) {
	job := s.lookupJob(c)
	if job == nil {
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

func (s *Server) handleBatchResult(c *gin.Context) {
	job := s.lookupJob(c)
	if job == nil {
		return
	}
	v := job.Snapshot()
	if v.Status != batch.StatusDone || v.Result == nil {
		c.JSON(http.StatusConflict, gin.H{"detail": "job is " + string(v.Status), "status": v.Status})
		return
	}
	c.FileAttachment(v.Result.Output, v.Result.Filename)
}
