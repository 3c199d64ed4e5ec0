package models

import "time"

// Test result statuses.
const (
	TestResultStatusUntested = "untested"
	TestResultStatusPassed   = "passed"
	TestResultStatusFailed   = "failed"
	TestResultStatusBlocked  = "blocked"
	TestResultStatusSkipped  = "skipped"
)

// TestResult records the outcome of a single test case within a run.
type TestResult struct {
	BaseModel

	TestRunID  string `gorm:"type:uuid;not null;index" json:"test_run_id"`
	TestCaseID string `gorm:"type:uuid;not null;index" json:"test_case_id"`

	Status        string  `gorm:"default:untested" json:"status"`
	ActualResult  string  `json:"actual_result"`
	Comment       string  `json:"comment"`
	DefectURL     string  `json:"defect_url"`
	ExecutionTime float64 `json:"execution_time"`

	ExecutedBy string     `gorm:"type:uuid" json:"executed_by"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}
