package models

import "time"

// DeviceToken stores a push-notification device registration for a user.
// Delivery is owned by the external notification collaborator.
type DeviceToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index:idx_user_token,unique"`                   // Owning user.
	Token  string `gorm:"type:varchar(255);not null;index:idx_user_token,unique"` // Platform device token.

	Platform   string `gorm:"type:varchar(20);not null"` // ios, android, or web.
	DeviceName string `gorm:"type:varchar(100)"`         // Optional device label.

	IsActive bool `gorm:"not null;default:true;index"` // Inactive tokens are skipped by delivery.

	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // Registration timestamp.
	LastUsedAt time.Time `gorm:"not null;autoUpdateTime"` // Last delivery attempt.
}
