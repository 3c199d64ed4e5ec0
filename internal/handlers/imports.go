package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/response"
)

// maxImportSize caps uploaded CSV files at 10 MiB.
const maxImportSize = 10 << 20

type ImportHandler struct {
	service *services.ImportService
}

func NewImportHandler(service *services.ImportService) (*ImportHandler, error) {
	if service == nil {
		return nil, errors.New("import handler: service is required")
	}
	return &ImportHandler{service: service}, nil
}

// POST /api/projects/:id/import/testcases
func (h *ImportHandler) TestCasesCSV(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("a CSV upload named 'file' is required"))
		return
	}
	if header.Size > maxImportSize {
		response.Error(c, apperrors.NewBadRequest(fmt.Sprintf("file exceeds the %d byte limit", maxImportSize)))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	report, err := h.service.TestCasesCSV(requestContext(c), actor, c.Param("id"), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
