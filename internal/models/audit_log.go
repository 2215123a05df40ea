package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only record of admin-initiated side effects.
// Rows are never updated or deleted by the application.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AdminID uint64 `gorm:"not null;index"`                   // Acting admin.
	Action  string `gorm:"type:varchar(50);not null;index"`  // e.g. LOGIN, TOTP_CONFIGURED, RECOVER_USER_TOKEN.
	Outcome string `gorm:"type:varchar(20);not null"`        // success or failure.

	TargetType string `gorm:"type:varchar(50);not null;index:idx_audit_target"` // e.g. admin, user, group.
	TargetID   string `gorm:"type:varchar(255);index:idx_audit_target"`         // Public ID of the target.

	BeforeState datatypes.JSON `gorm:"type:json"` // State before the change.
	AfterState  datatypes.JSON `gorm:"type:json"` // State after the change.

	IPAddress string `gorm:"type:varchar(45)"` // Client IP of the acting admin.
	Reason    string `gorm:"type:text"`        // Admin-supplied explanation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Event timestamp.
}
