package models

import "time"

// Group represents a voting group joined via invite code.
type Group struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID    string `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID.
	Name       string `gorm:"type:varchar(100);index"`               // Display name.
	InviteCode string `gorm:"type:varchar(8);not null;uniqueIndex"`  // Join code, unique across all groups.

	AdminToken     string  `gorm:"type:text"`        // Salted hash of the group-admin token.
	AdminTokenSalt string  `gorm:"type:varchar(32)"` // Per-group token salt.
	CreatorID      *uint64 `gorm:"index"`            // Member who created the group, if any.

	InstanceAdminNotes string `gorm:"type:text"`          // Free-form notes set by instance admins.
	TotalSetsCreated   int    `gorm:"not null;default:0"` // Private question sets created so far.

	Members []User `gorm:"foreignKey:GroupID"` // Group members.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
