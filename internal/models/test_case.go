package models

// Priority levels shared by test cases and issues.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Test case types.
const (
	TestTypeFunctional  = "functional"
	TestTypeRegression  = "regression"
	TestTypeSmoke       = "smoke"
	TestTypeIntegration = "integration"
	TestTypePerformance = "performance"
)

// TestCase is a versioned test specification. Every update bumps Version and
// appends a TestCaseHistory snapshot.
type TestCase struct {
	BaseModel

	ProjectID string  `gorm:"type:uuid;not null;index" json:"project_id"`
	FolderID  *string `gorm:"type:uuid;index" json:"folder_id,omitempty"`

	Title          string `gorm:"not null" json:"title"`
	Description    string `json:"description"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`

	Priority string `gorm:"default:medium" json:"priority"`
	TestType string `gorm:"default:functional" json:"test_type"`
	Tags     string `json:"tags"`

	Version int `gorm:"default:1" json:"version"`

	OwnerID string `gorm:"type:uuid;index" json:"owner_id"`
}

// TestCaseHistory is an append-only snapshot taken before each test case update.
type TestCaseHistory struct {
	BaseModel

	TestCaseID string `gorm:"type:uuid;not null;index" json:"test_case_id"`
	Version    int    `gorm:"not null" json:"version"`

	Title          string `json:"title"`
	Description    string `json:"description"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	Priority       string `json:"priority"`
	TestType       string `json:"test_type"`
	Tags           string `json:"tags"`

	ChangedBy  string `gorm:"type:uuid" json:"changed_by"`
	ChangeNote string `json:"change_note"`
}
