package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/internal/storage"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/response"
)

// maxAttachmentSize caps issue attachment uploads at 5 MiB.
const maxAttachmentSize = 5 << 20

type IssueHandler struct {
	service *services.IssueService
	store   storage.BlobStore
}

func NewIssueHandler(service *services.IssueService, store storage.BlobStore) (*IssueHandler, error) {
	if service == nil {
		return nil, errors.New("issue handler: service is required")
	}
	return &IssueHandler{service: service, store: store}, nil
}

type createIssueRequest struct {
	ProjectID   string  `json:"project_id" validate:"required"`
	TestCaseID  *string `json:"testcase_id"`
	TestRunID   *string `json:"testrun_id"`
	Title       string  `json:"title" validate:"required,max=300"`
	Description string  `json:"description"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	IssueType   string  `json:"issue_type" validate:"omitempty,oneof=bug improvement task"`
	AssignedTo  *string `json:"assigned_to"`
}

type updateIssueRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=300"`
	Description *string `json:"description"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	IssueType   *string `json:"issue_type" validate:"omitempty,oneof=bug improvement task"`
	AssignedTo  *string `json:"assigned_to"`
	TestCaseID  *string `json:"testcase_id"`
	TestRunID   *string `json:"testrun_id"`
	Resolution  *string `json:"resolution"`
}

type setIssueStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress in_review done"`
}

// POST /api/issues
func (h *IssueHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body createIssueRequest
	if !bindAndValidate(c, &body) {
		return
	}

	issue, err := h.service.Create(requestContext(c), actor, services.CreateIssueInput{
		ProjectID:   body.ProjectID,
		TestCaseID:  body.TestCaseID,
		TestRunID:   body.TestRunID,
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		IssueType:   body.IssueType,
		AssignedTo:  body.AssignedTo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, issue)
}

// GET /api/issues
func (h *IssueHandler) List(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 100)

	issues, total, err := h.service.List(requestContext(c), services.IssueFilters{
		ProjectID:  c.Query("project_id"),
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		IssueType:  c.Query("issue_type"),
		AssignedTo: c.Query("assigned_to"),
		Query:      c.Query("q"),
	}, page, per)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, issues, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/issues/:id
func (h *IssueHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	issue, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, issue)
}

// PATCH /api/issues/:id
func (h *IssueHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateIssueRequest
	if !bindAndValidate(c, &body) {
		return
	}

	issue, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateIssueInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		IssueType:   body.IssueType,
		AssignedTo:  body.AssignedTo,
		TestCaseID:  body.TestCaseID,
		TestRunID:   body.TestRunID,
		Resolution:  body.Resolution,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, issue)
}

// PATCH /api/issues/:id/status
func (h *IssueHandler) SetStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body setIssueStatusRequest
	if !bindAndValidate(c, &body) {
		return
	}

	issue, err := h.service.SetStatus(requestContext(c), actor, c.Param("id"), body.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, issue)
}

// GET /api/issues/:id/history
func (h *IssueHandler) History(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	records, err := h.service.History(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}

// POST /api/issues/:id/attachments
func (h *IssueHandler) Upload(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if h.store == nil {
		response.Error(c, apperrors.New("UPLOADS_DISABLED", "attachment uploads are not configured", http.StatusServiceUnavailable))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("a file upload named 'file' is required"))
		return
	}
	if header.Size > maxAttachmentSize {
		response.Error(c, apperrors.NewBadRequest(fmt.Sprintf("file exceeds the %d byte limit", maxAttachmentSize)))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		response.Error(c, apperrors.NewBadRequest("only image attachments are accepted"))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	ctx := requestContext(c)
	key, size, err := h.store.Save(ctx, header.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}

	issue, err := h.service.AddAttachment(ctx, actor, c.Param("id"), services.Attachment{
		Name:        header.Filename,
		Path:        key,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		// keep storage consistent with the issue record
		_ = h.store.Delete(ctx, key)
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, issue)
}

// DELETE /api/issues/:id
func (h *IssueHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
