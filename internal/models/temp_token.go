package models

import "time"

// ConsumedTempToken marks a pre-2FA temporary login token as spent.
// The temp JWT stays cryptographically valid until it expires, so a
// row here is what makes it single-use. Rows are pruned once the
// underlying token would have expired anyway.
type ConsumedTempToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	JTI     string `gorm:"column:jti;type:varchar(36);not null;uniqueIndex"` // JWT ID of the consumed token.
	AdminID uint64 `gorm:"not null;index"`                                   // Admin the token belonged to.

	ExpiresAt time.Time `gorm:"not null"`                // Original token expiry.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Consumption timestamp.
}
