package models

import "time"

// AdminSession tracks one admin login session and its current refresh token.
// The refresh hash is swapped on every rotation; a stale hash means the
// presented token was already rotated and must be rejected.
type AdminSession struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SessionID string `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID carried in refresh JWT claims.
	AdminID   uint64 `gorm:"not null;index"`                        // Owning admin.

	RefreshHash string `gorm:"type:text;not null"` // Salted hash of the currently valid refresh token.
	RefreshSalt string `gorm:"type:text;not null"` // Per-session salt.

	ExpiresAt time.Time  `gorm:"not null"` // Refresh token lifetime bound.
	RevokedAt *time.Time ``                // Set on logout; revoked sessions never rotate.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
