package models

import (
	"time"

	"gorm.io/datatypes"
)

// Test run statuses.
const (
	TestRunStatusPlanned    = "planned"
	TestRunStatusInProgress = "in_progress"
	TestRunStatusCompleted  = "completed"
	TestRunStatusArchived   = "archived"
)

// TestRun is an execution round over a selected set of test cases.
type TestRun struct {
	BaseModel

	ProjectID   string `gorm:"type:uuid;not null;index" json:"project_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	Status      string  `gorm:"default:planned;index" json:"status"`
	AssigneeID  *string `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	Environment string  `json:"environment"`
	Milestone   string  `json:"milestone"`

	TestCaseIDs datatypes.JSON `json:"test_case_ids"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedBy string `gorm:"type:uuid;index" json:"created_by"`
}
