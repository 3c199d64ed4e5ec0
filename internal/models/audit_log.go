package models

import "gorm.io/datatypes"

// AuditLog records security-relevant actions. Writes are best-effort.
type AuditLog struct {
	BaseModel

	ActorID  string `gorm:"type:uuid;index" json:"actor_id"`
	Action   string `gorm:"not null;index" json:"action"`
	Resource string `json:"resource"`
	Result   string `json:"result"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`
}
