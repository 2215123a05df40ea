package models

import "time"

// Admin represents an instance administrator account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:varchar(50);not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`                    // Bcrypt password hash.

	TOTPSecret        string `gorm:"type:varchar(64)"`       // Active TOTP secret, set only after verified setup.
	PendingTOTPSecret string `gorm:"type:varchar(64)"`       // Secret awaiting setup verification.
	TOTPConfigured    bool   `gorm:"not null;default:false"` // Whether 2FA is required at login.

	Active      bool       `gorm:"not null;default:true"` // Whether the admin can sign in.
	LastLoginAt *time.Time ``                             // Last successful login.
	LastLoginIP string     `gorm:"type:varchar(45)"`      // Last observed login IP.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
