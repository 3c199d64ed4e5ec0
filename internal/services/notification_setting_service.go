package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/testtrack-io/testtrack/internal/models"
	"github.com/testtrack-io/testtrack/internal/permissions"
)

// UpdateNotificationSettingInput carries the per-kind toggles. Nil fields
// keep the stored value.
type UpdateNotificationSettingInput struct {
	NotifyIssueAssigned    *bool
	NotifyIssueUpdated     *bool
	NotifyTestRunAssigned  *bool
	NotifyTestRunCompleted *bool
}

// NotificationSettingService manages per-user email preferences. Settings are
// strictly self-scoped: not even admins may read or change another user's
// preferences.
type NotificationSettingService struct {
	db *gorm.DB
}

// NewNotificationSettingService constructs a NotificationSettingService.
func NewNotificationSettingService(db *gorm.DB) (*NotificationSettingService, error) {
	if db == nil {
		return nil, errors.New("notification setting service: db is required")
	}
	return &NotificationSettingService{db: db}, nil
}

// Get returns the actor's settings. A user with no stored row gets the
// defaults with every kind enabled.
func (s *NotificationSettingService) Get(ctx context.Context, actor *models.User, userID string) (*models.NotificationSetting, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CheckSelfScope(actor, userID); err != nil {
		return nil, err
	}

	var setting models.NotificationSetting
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.NotificationSetting{
			UserID:                 userID,
			NotifyIssueAssigned:    true,
			NotifyIssueUpdated:     true,
			NotifyTestRunAssigned:  true,
			NotifyTestRunCompleted: true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notification setting service: get settings: %w", err)
	}
	return &setting, nil
}

// Update stores the actor's settings, creating the row on first use.
func (s *NotificationSettingService) Update(ctx context.Context, actor *models.User, userID string, input UpdateNotificationSettingInput) (*models.NotificationSetting, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CheckSelfScope(actor, userID); err != nil {
		return nil, err
	}

	var setting models.NotificationSetting
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.NotificationSetting{
			UserID:                 userID,
			NotifyIssueAssigned:    true,
			NotifyIssueUpdated:     true,
			NotifyTestRunAssigned:  true,
			NotifyTestRunCompleted: true,
		}
	case err != nil:
		return nil, fmt.Errorf("notification setting service: load settings: %w", err)
	}

	if input.NotifyIssueAssigned != nil {
		setting.NotifyIssueAssigned = *input.NotifyIssueAssigned
	}
	if input.NotifyIssueUpdated != nil {
		setting.NotifyIssueUpdated = *input.NotifyIssueUpdated
	}
	if input.NotifyTestRunAssigned != nil {
		setting.NotifyTestRunAssigned = *input.NotifyTestRunAssigned
	}
	if input.NotifyTestRunCompleted != nil {
		setting.NotifyTestRunCompleted = *input.NotifyTestRunCompleted
	}

	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return nil, fmt.Errorf("notification setting service: save settings: %w", err)
	}
	return &setting, nil
}
