package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ExportHandler struct {
	service *services.ExportService
}

func NewExportHandler(service *services.ExportService) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: service is required")
	}
	return &ExportHandler{service: service}, nil
}

// Exports are buffered before writing so that a failure mid-generation can
// still produce a proper JSON error response.
func (h *ExportHandler) send(c *gin.Context, contentType, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// GET /api/projects/:id/export/testcases.csv
func (h *ExportHandler) TestCasesCSV(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.TestCasesCSV(requestContext(c), c.Param("id"), &buf); err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, contentTypeCSV, "testcases.csv", &buf)
}

// GET /api/projects/:id/export/testcases.xlsx
func (h *ExportHandler) TestCasesXLSX(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.TestCasesXLSX(requestContext(c), c.Param("id"), &buf); err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, contentTypeXLSX, "testcases.xlsx", &buf)
}

// GET /api/projects/:id/export/testruns.csv
func (h *ExportHandler) TestRunsCSV(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.TestRunsCSV(requestContext(c), c.Param("id"), &buf); err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, contentTypeCSV, "testruns.csv", &buf)
}

// GET /api/testruns/:id/export/results.csv
func (h *ExportHandler) TestResultsCSV(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.TestResultsCSV(requestContext(c), c.Param("id"), &buf); err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, contentTypeCSV, "results.csv", &buf)
}

// GET /api/projects/:id/export/stats.csv
func (h *ExportHandler) ProjectStatsCSV(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.ProjectStatsCSV(requestContext(c), c.Param("id"), &buf); err != nil {
		response.Error(c, err)
		return
	}
	h.send(c, contentTypeCSV, "stats.csv", &buf)
}
