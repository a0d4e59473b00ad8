package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"logistria/internal/etl"
	"logistria/internal/service"
)

const (
	defaultPreviewRows = 20
	maxPreviewRows     = 200
)

func (s *server) targets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"targets": s.Imports.Targets(), "formats": s.Imports.ListSources()})
}

// readUpload binds the multipart "target" and "file" fields. The returned
// close func must be called once the body has been consumed.
func (s *server) readUpload(c *gin.Context) (etl.ImportRequest, func(), error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		switch {
		case isTooLarge(err):
			return etl.ImportRequest{}, nil, errUploadTooLarge
		case errors.Is(err, http.ErrMissingFile):
			return etl.ImportRequest{}, nil, &service.ValidationError{Fields: map[string]string{"file": "required"}}
		default:
			return etl.ImportRequest{}, nil, &service.ValidationError{Fields: map[string]string{"file": err.Error()}}
		}
	}
	f, err := header.Open()
	if err != nil {
		return etl.ImportRequest{}, nil, fmt.Errorf("open upload: %w", err)
	}
	req := etl.ImportRequest{
		Target:   c.PostForm("target"),
		FileName: header.Filename,
		Body:     f,
	}
	return req, func() { _ = f.Close() }, nil
}

func (s *server) importFile(c *gin.Context) {
	req, closeBody, err := s.readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeBody()

	result, err := s.Imports.Import(c.Request.Context(), principalFrom(c).UID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      result.RowsWritten,
		"collection": result.Collection,
		"target":     result.Target,
		"rowsRead":   result.RowsRead,
		"message":    fmt.Sprintf("Successfully imported %d records into %s", result.RowsWritten, result.Collection),
	})
}

func (s *server) previewImport(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPreviewRows)
	if err != nil {
		respondError(c, err)
		return
	}
	if limit <= 0 || limit > maxPreviewRows {
		limit = maxPreviewRows
	}

	req, closeBody, err := s.readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeBody()

	preview, err := s.Imports.Preview(c.Request.Context(), req, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *server) listRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		respondError(c, err)
		return
	}
	runs, err := s.Imports.ListRuns(c.Query("jobId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ── Saved jobs ─────────────────────────────────────────────

func (s *server) listJobs(c *gin.Context) {
	jobs, err := s.Imports.ListJobs()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *server) createJob(c *gin.Context) {
	var input service.CreateImportJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.Imports.CreateJob(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *server) getJob(c *gin.Context) {
	job, err := s.Imports.GetJob(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type updateJobInput struct {
	Enabled *bool `json:"enabled"`
}

func (s *server) updateJob(c *gin.Context) {
	var input updateJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Enabled == nil {
		respondError(c, &service.ValidationError{Fields: map[string]string{"enabled": "required"}})
		return
	}
	id := c.Param("id")
	if err := s.Imports.SetJobEnabled(c.Request.Context(), id, *input.Enabled); err != nil {
		respondError(c, err)
		return
	}
	s.getJob(c)
}

func (s *server) deleteJob(c *gin.Context) {
	if err := s.Imports.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) runJob(c *gin.Context) {
	result, err := s.Imports.RunJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      result.RowsWritten,
		"collection": result.Collection,
		"target":     result.Target,
		"rowsRead":   result.RowsRead,
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &service.ValidationError{Fields: map[string]string{key: "must be an integer"}}
	}
	return n, nil
}
