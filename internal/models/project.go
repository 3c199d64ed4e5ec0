package models

// Project groups folders, test cases, runs, and issues under one key.
type Project struct {
	BaseModel

	Name        string `gorm:"not null;index" json:"name"`
	Key         string `gorm:"uniqueIndex;not null" json:"key"`
	Description string `json:"description"`

	OwnerID string `gorm:"type:uuid;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
