// Package audit records admin-initiated side effects to an append-only log.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/dontaskus/backend/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcome values for audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Well-known audit actions. Free-form actions are also accepted.
const (
	ActionLogin            = "LOGIN"
	ActionLoginFailed      = "LOGIN_FAILED"
	ActionLogout           = "LOGOUT"
	ActionRefresh          = "REFRESH"
	ActionPasswordChanged  = "PASSWORD_CHANGED"
	ActionTOTPConfigured   = "TOTP_CONFIGURED"
	ActionTOTPDisabled     = "TOTP_DISABLED"
	ActionTokenRejected    = "TOKEN_REJECTED"
	ActionRateLimited      = "RATE_LIMITED"
	ActionRecoverUserToken = "RECOVER_USER_TOKEN"
	ActionSuspendUser      = "SUSPEND_USER"
	ActionUnsuspendUser    = "UNSUSPEND_USER"
	ActionResetCycle       = "RESET_QUESTION_CYCLE"
	ActionRegenerate       = "REGENERATE_QUESTION"
	ActionAssignSet        = "ASSIGN_QUESTION_SET"
	ActionGroupNotes       = "UPDATE_GROUP_NOTES"
)

// Entry describes one auditable event.
type Entry struct {
	AdminID    uint64
	Action     string
	Outcome    string
	TargetType string
	TargetID   string
	Before     any
	After      any
	IPAddress  string
	Reason     string
}

// Recorder appends audit entries. Rows are never updated or deleted.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder builds a recorder on the shared database handle.
func NewRecorder(conn *gorm.DB) *Recorder {
	return &Recorder{db: conn}
}

// Record persists one audit entry.
func (r *Recorder) Record(entry Entry) error {
	row := models.AuditLog{
		AdminID:     entry.AdminID,
		Action:      entry.Action,
		Outcome:     entry.Outcome,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		BeforeState: marshalState(entry.Before),
		AfterState:  marshalState(entry.After),
		IPAddress:   entry.IPAddress,
		Reason:      entry.Reason,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return fmt.Errorf("audit: record %s: %w", entry.Action, err)
	}
	return nil
}

// MustRecord persists an entry and only logs on failure. Used on paths
// where auditing must not abort the operation it describes.
func (r *Recorder) MustRecord(entry Entry) {
	if err := r.Record(entry); err != nil {
		log.WithError(err).Warnf("failed to record audit entry %s", entry.Action)
	}
}

func marshalState(state any) datatypes.JSON {
	if state == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
