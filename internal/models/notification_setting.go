package models

// NotificationSetting holds a user's email notification toggles. One row per
// user; readable and writable only by that user.
type NotificationSetting struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	NotifyIssueAssigned    bool `gorm:"default:true" json:"notify_issue_assigned"`
	NotifyIssueUpdated     bool `gorm:"default:true" json:"notify_issue_updated"`
	NotifyTestRunAssigned  bool `gorm:"default:true" json:"notify_testrun_assigned"`
	NotifyTestRunCompleted bool `gorm:"default:true" json:"notify_testrun_completed"`
}
