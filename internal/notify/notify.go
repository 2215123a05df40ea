// Package notify fans out daily-question events to registered devices.
// Actual push delivery is owned by an external collaborator; the
// default emitter just logs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Event kinds emitted by the service.
const (
	EventNewQuestion = "new_question"
)

// Event describes one notification to deliver to a group.
type Event struct {
	Kind         string
	GroupID      uint64
	QuestionID   string
	QuestionText string
	QuestionDate string
}

// Emitter delivers events. Implementations must be safe for concurrent
// use; delivery failures must not propagate to the caller's flow.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LogEmitter writes events to the application log. It stands in until a
// real push provider is wired.
type LogEmitter struct{}

// Emit implements Emitter.
func (LogEmitter) Emit(_ context.Context, event Event) {
	log.Infof("notify: %s group=%d question=%s date=%s", event.Kind, event.GroupID, event.QuestionID, event.QuestionDate)
}

// Registry manages device token registrations for push delivery.
type Registry struct {
	db *gorm.DB
}

// NewRegistry builds a registry on the shared database handle.
func NewRegistry(conn *gorm.DB) *Registry {
	return &Registry{db: conn}
}

// validPlatforms for device registration.
var validPlatforms = map[string]bool{"ios": true, "android": true, "web": true}

// Register stores or reactivates a device token for the user.
func (r *Registry) Register(userID uint64, token, platform, deviceName string) error {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if token == "" {
		return errors.New("notify: empty device token")
	}
	if !validPlatforms[platform] {
		return fmt.Errorf("notify: unknown platform %q", platform)
	}

	var existing models.DeviceToken
	errFind := r.db.Where("user_id = ? AND token = ?", userID, token).First(&existing).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row := models.DeviceToken{
			UserID:     userID,
			Token:      token,
			Platform:   platform,
			DeviceName: strings.TrimSpace(deviceName),
			IsActive:   true,
		}
		if errCreate := r.db.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("notify: register device: %w", errCreate)
		}
		return nil
	case errFind != nil:
		return fmt.Errorf("notify: lookup device: %w", errFind)
	}

	errUpdate := r.db.Model(&existing).Updates(map[string]any{
		"is_active":    true,
		"platform":     platform,
		"device_name":  strings.TrimSpace(deviceName),
		"last_used_at": time.Now().UTC(),
	}).Error
	if errUpdate != nil {
		return fmt.Errorf("notify: refresh device: %w", errUpdate)
	}
	return nil
}

// Unregister deactivates a device token without deleting its history.
func (r *Registry) Unregister(userID uint64, token string) error {
	errUpdate := r.db.Model(&models.DeviceToken{}).
		Where("user_id = ? AND token = ?", userID, strings.TrimSpace(token)).
		Update("is_active", false).Error
	if errUpdate != nil {
		return fmt.Errorf("notify: unregister device: %w", errUpdate)
	}
	return nil
}

// ActiveTokens returns the active device tokens of a group's members.
func (r *Registry) ActiveTokens(groupID uint64) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	errFind := r.db.
		Joins("JOIN users ON users.id = device_tokens.user_id").
		Where("users.group_id = ? AND users.suspended = ? AND device_tokens.is_active = ?", groupID, false, true).
		Find(&tokens).Error
	if errFind != nil {
		return nil, fmt.Errorf("notify: load tokens: %w", errFind)
	}
	return tokens, nil
}
