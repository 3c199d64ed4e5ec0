package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/permissions"
	"github.com/testtrack-io/testtrack/internal/services"
	apperrors "github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type AuditHandler struct {
	service *services.AuditService
}

func NewAuditHandler(service *services.AuditService) (*AuditHandler, error) {
	if service == nil {
		return nil, errors.New("audit handler: service is required")
	}
	return &AuditHandler{service: service}, nil
}

// GET /api/audit-logs
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if err := permissions.RequireAdmin(actor, permissions.ResourceAudit); err != nil {
		response.Error(c, err)
		return
	}

	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 50)

	filters := services.AuditFilters{
		ActorID: c.Query("actor_id"),
		Action:  c.Query("action"),
		Result:  c.Query("result"),
	}
	for name, dst := range map[string]**time.Time{"since": &filters.Since, "until": &filters.Until} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, apperrors.NewBadRequest(name+" must be an RFC 3339 timestamp"))
			return
		}
		*dst = &ts
	}

	logs, total, err := h.service.List(requestContext(c), services.AuditListOptions{
		Page:     page,
		PageSize: per,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}
