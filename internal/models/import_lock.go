package models

import (
	"time"
)

// ImportLock records one holder's ownership of a lock resource. Rows are never
// deleted; release and expiry only deactivate them.
//
// ActiveKey equals LockKey while the row is active and is NULL otherwise, so the
// unique index on it admits at most one active row per key on every dialect.
type ImportLock struct {
	BaseModel
	LockKey   string    `gorm:"size:64;not null;index:idx_import_lock_key_active" json:"lockKey"`
	HolderID  string    `gorm:"size:64;not null" json:"holderId"`
	IsActive  bool      `gorm:"not null;default:false;index:idx_import_lock_key_active" json:"isActive"`
	ActiveKey *string   `gorm:"size:64;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
}
