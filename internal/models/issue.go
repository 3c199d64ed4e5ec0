package models

import (
	"time"

	"gorm.io/datatypes"
)

// Kanban issue statuses.
const (
	IssueStatusTodo       = "todo"
	IssueStatusInProgress = "in_progress"
	IssueStatusInReview   = "in_review"
	IssueStatusDone       = "done"
)

// Issue types.
const (
	IssueTypeBug         = "bug"
	IssueTypeImprovement = "improvement"
	IssueTypeTask        = "task"
)

// Issue is a kanban card optionally linked to a test case or test run.
type Issue struct {
	BaseModel

	ProjectID  string  `gorm:"type:uuid;not null;index" json:"project_id"`
	TestCaseID *string `gorm:"type:uuid;index" json:"testcase_id,omitempty"`
	TestRunID  *string `gorm:"type:uuid;index" json:"testrun_id,omitempty"`

	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`

	Status    string `gorm:"default:todo;index" json:"status"`
	Priority  string `gorm:"default:medium" json:"priority"`
	IssueType string `gorm:"default:bug" json:"issue_type"`

	AssignedTo *string `gorm:"type:uuid;index" json:"assigned_to,omitempty"`
	Resolution string  `json:"resolution"`

	Attachments datatypes.JSON `json:"attachments"`

	CreatedBy  string     `gorm:"type:uuid;index" json:"created_by"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IssueHistory records one field change on an issue.
type IssueHistory struct {
	BaseModel

	IssueID   string `gorm:"type:uuid;not null;index" json:"issue_id"`
	FieldName string `gorm:"not null" json:"field_name"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	ChangedBy string `gorm:"type:uuid" json:"changed_by"`
}
