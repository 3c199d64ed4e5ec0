package models

// TestFolder organises test cases inside a project. Folders nest through ParentID.
type TestFolder struct {
	BaseModel

	ProjectID string  `gorm:"type:uuid;not null;index" json:"project_id"`
	ParentID  *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	OwnerID string `gorm:"type:uuid;index" json:"owner_id"`
}
