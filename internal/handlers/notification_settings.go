package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/internal/services"
	"github.com/testtrack-io/testtrack/pkg/response"
)

type NotificationSettingHandler struct {
	service *services.NotificationSettingService
}

func NewNotificationSettingHandler(service *services.NotificationSettingService) (*NotificationSettingHandler, error) {
	if service == nil {
		return nil, errors.New("notification setting handler: service is required")
	}
	return &NotificationSettingHandler{service: service}, nil
}

type updateNotificationSettingRequest struct {
	NotifyIssueAssigned    *bool `json:"notify_issue_assigned"`
	NotifyIssueUpdated     *bool `json:"notify_issue_updated"`
	NotifyTestRunAssigned  *bool `json:"notify_testrun_assigned"`
	NotifyTestRunCompleted *bool `json:"notify_testrun_completed"`
}

// GET /api/me/notification-settings
func (h *NotificationSettingHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	setting, err := h.service.Get(requestContext(c), actor, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, setting)
}

// PUT /api/me/notification-settings
func (h *NotificationSettingHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateNotificationSettingRequest
	if !bindAndValidate(c, &body) {
		return
	}

	setting, err := h.service.Update(requestContext(c), actor, actor.ID, services.UpdateNotificationSettingInput{
		NotifyIssueAssigned:    body.NotifyIssueAssigned,
		NotifyIssueUpdated:     body.NotifyIssueUpdated,
		NotifyTestRunAssigned:  body.NotifyTestRunAssigned,
		NotifyTestRunCompleted: body.NotifyTestRunCompleted,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, setting)
}
