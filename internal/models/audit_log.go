package models

import (
	"gorm.io/datatypes"
)

// AuditLog is one append-only audit entry.
type AuditLog struct {
	BaseModel
	ActorID   string         `gorm:"size:64;index;not null" json:"actorId"`
	Action    string         `gorm:"size:50;index;not null" json:"action"`
	TargetID  string         `gorm:"size:64" json:"targetId"`
	AfterData datatypes.JSON `json:"afterData"`
}
