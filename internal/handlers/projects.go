package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type ProjectHandler struct {
	service *services.ProjectService
}

func NewProjectHandler(service *services.ProjectService) (*ProjectHandler, error) {
	if service == nil {
		return nil, errors.New("project handler: service is required")
	}
	return &ProjectHandler{service: service}, nil
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Key         string `json:"key" validate:"required,min=2,max=10"`
	Description string `json:"description" validate:"max=2000"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body createProjectRequest
	if !bindAndValidate(c, &body) {
		return
	}

	project, err := h.service.Create(requestContext(c), actor, services.CreateProjectInput{
		Name:        body.Name,
		Key:         body.Key,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 100)

	projects, total, err := h.service.List(requestContext(c), actor, page, per)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, projects, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	project, err := h.service.GetByID(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateProjectRequest
	if !bindAndValidate(c, &body) {
		return
	}

	project, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateProjectInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
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
