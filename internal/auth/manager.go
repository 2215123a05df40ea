// Package auth implements admin credential handling: password login,
// TOTP second factor, and one-time-use refresh token rotation.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/audit"
	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/security"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for any failed login factor. The
// caller cannot tell whether the username, password, or code was wrong.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidToken covers expired, revoked, reused, and malformed
// refresh or temporary tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// ErrTOTPNotConfigured indicates a 2FA operation on an account without
// a committed TOTP secret.
var ErrTOTPNotConfigured = errors.New("auth: totp not configured")

// minPasswordLength guards ChangePassword input.
const minPasswordLength = 8

// TokenPair is a freshly minted access/refresh token set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is the outcome of a password check. When the account has
// TOTP configured, only TempToken is set and the caller must complete
// the second factor.
type LoginResult struct {
	RequiresTOTP bool
	TempToken    string
	Pair         TokenPair
}

// Manager authenticates admins and manages their sessions.
type Manager struct {
	db     *gorm.DB
	jwt    *security.JWTManager
	audits *audit.Recorder
	now    func() time.Time
}

// NewManager builds a credential manager on the shared database handle.
func NewManager(conn *gorm.DB, jwtManager *security.JWTManager, recorder *audit.Recorder) *Manager {
	return &Manager{db: conn, jwt: jwtManager, audits: recorder, now: time.Now}
}

// Login checks the password factor. Unknown usernames and wrong
// passwords produce the same error and comparable timing.
func (m *Manager) Login(username, password, ip string) (LoginResult, error) {
	username = strings.TrimSpace(username)

	var admin models.Admin
	errFind := m.db.Where("username = ?", username).First(&admin).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return LoginResult{}, fmt.Errorf("auth: lookup admin: %w", errFind)
		}
		// Burn a bcrypt comparison so unknown usernames cost the same.
		security.VerifyPassword("$2a$12$vDDXz4ueVHkB9qLmTPRLUOBVbr0PeEGXsgypQ1QBXDvTyeTB9zW7C", password)
		m.auditLogin(0, username, ip, false)
		return LoginResult{}, ErrInvalidCredentials
	}

	if !admin.Active || !security.VerifyPassword(admin.Password, password) {
		m.auditLogin(admin.ID, username, ip, false)
		return LoginResult{}, ErrInvalidCredentials
	}

	if admin.TOTPConfigured {
		tempToken, errSign := m.jwt.SignTemp(admin.ID, admin.Username)
		if errSign != nil {
			return LoginResult{}, errSign
		}
		return LoginResult{RequiresTOTP: true, TempToken: tempToken}, nil
	}

	pair, errPair := m.openSession(&admin, ip)
	if errPair != nil {
		return LoginResult{}, errPair
	}
	return LoginResult{Pair: pair}, nil
}

// VerifyTOTP completes a 2FA login using the temporary token from the
// password step plus a current authenticator code.
func (m *Manager) VerifyTOTP(tempToken, code, ip string) (TokenPair, error) {
	claims, errParse := m.jwt.Parse(tempToken, security.TokenTypeTemp)
	if errParse != nil {
		return TokenPair{}, ErrInvalidToken
	}

	var admin models.Admin
	if errFind := m.db.First(&admin, claims.AdminID).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return TokenPair{}, fmt.Errorf("auth: lookup admin: %w", errFind)
		}
		return TokenPair{}, ErrInvalidCredentials
	}
	if !admin.Active || !admin.TOTPConfigured {
		return TokenPair{}, ErrInvalidCredentials
	}

	if !security.ValidateTOTP(admin.TOTPSecret, code) {
		m.auditLogin(admin.ID, admin.Username, ip, false)
		return TokenPair{}, ErrInvalidCredentials
	}
	if errConsume := m.consumeTempToken(claims, ip); errConsume != nil {
		return TokenPair{}, errConsume
	}
	return m.openSession(&admin, ip)
}

// consumeTempToken spends a temp token's jti. The JWT stays valid until
// it expires, so the jti row is what makes the token single-use: the
// second presentation fails on the unique index.
func (m *Manager) consumeTempToken(claims *security.AdminClaims, ip string) error {
	jti := strings.TrimSpace(claims.ID)
	if jti == "" || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}

	used := models.ConsumedTempToken{JTI: jti, AdminID: claims.AdminID, ExpiresAt: claims.ExpiresAt.Time.UTC()}
	if errCreate := m.db.Create(&used).Error; errCreate != nil {
		m.audits.MustRecord(audit.Entry{
			AdminID: claims.AdminID, Action: audit.ActionLoginFailed,
			Outcome: audit.OutcomeFailure, TargetType: "admin",
			TargetID: claims.Username, IPAddress: ip,
			Reason: "temp token reuse detected",
		})
		return ErrInvalidToken
	}

	errPrune := m.db.Where("expires_at < ?", m.now().UTC()).Delete(&models.ConsumedTempToken{}).Error
	if errPrune != nil {
		log.WithError(errPrune).Warn("failed to prune consumed temp tokens")
	}
	return nil
}

// Refresh rotates a refresh token. Each token is usable exactly once:
// a replay after rotation revokes the whole session and forces a new
// login.
func (m *Manager) Refresh(refreshToken, ip string) (TokenPair, error) {
	claims, errParse := m.jwt.Parse(refreshToken, security.TokenTypeRefresh)
	if errParse != nil {
		return TokenPair{}, ErrInvalidToken
	}

	var session models.AdminSession
	errFind := m.db.Where("session_id = ?", claims.SessionID).First(&session).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return TokenPair{}, fmt.Errorf("auth: lookup session: %w", errFind)
		}
		return TokenPair{}, ErrInvalidToken
	}

	now := m.now().UTC()
	if session.RevokedAt != nil || !session.ExpiresAt.After(now) {
		return TokenPair{}, ErrInvalidToken
	}
	if !security.VerifyToken(refreshToken, session.RefreshHash, session.RefreshSalt) {
		// Presented token was already rotated out. Treat as theft and
		// kill the session.
		m.revokeSession(&session, ip)
		return TokenPair{}, ErrInvalidToken
	}

	newRefresh, errSign := m.jwt.SignRefresh(session.AdminID, claims.Username, session.SessionID)
	if errSign != nil {
		return TokenPair{}, errSign
	}
	newSalt := uuid.NewString()
	newHash := security.HashToken(newRefresh, newSalt)

	// Compare-and-swap on the stored hash: of N concurrent refreshes
	// with the same token, exactly one lands.
	res := m.db.Model(&models.AdminSession{}).
		Where("id = ? AND refresh_hash = ? AND revoked_at IS NULL", session.ID, session.RefreshHash).
		Updates(map[string]any{
			"refresh_hash": newHash,
			"refresh_salt": newSalt,
			"expires_at":   now.Add(security.RefreshTokenExpiry),
		})
	if res.Error != nil {
		return TokenPair{}, fmt.Errorf("auth: rotate session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		m.revokeSession(&session, ip)
		return TokenPair{}, ErrInvalidToken
	}

	access, errAccess := m.jwt.SignAccess(session.AdminID, claims.Username)
	if errAccess != nil {
		return TokenPair{}, errAccess
	}
	m.audits.MustRecord(audit.Entry{
		AdminID: session.AdminID, Action: audit.ActionRefresh,
		Outcome: audit.OutcomeSuccess, TargetType: "admin_session",
		TargetID: session.SessionID, IPAddress: ip,
	})
	return TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes every active session for the admin.
func (m *Manager) Logout(adminID uint64, ip string) error {
	now := m.now().UTC()
	errUpdate := m.db.Model(&models.AdminSession{}).
		Where("admin_id = ? AND revoked_at IS NULL", adminID).
		Update("revoked_at", now).Error
	if errUpdate != nil {
		return fmt.Errorf("auth: revoke sessions: %w", errUpdate)
	}
	m.audits.MustRecord(audit.Entry{
		AdminID: adminID, Action: audit.ActionLogout,
		Outcome: audit.OutcomeSuccess, TargetType: "admin", IPAddress: ip,
	})
	return nil
}

// ChangePassword rotates the password after re-verifying the current
// one, then revokes all sessions.
func (m *Manager) ChangePassword(adminID uint64, current, next, ip string) error {
	if len(next) < minPasswordLength {
		return fmt.Errorf("auth: password must be at least %d characters", minPasswordLength)
	}

	var admin models.Admin
	if errFind := m.db.First(&admin, adminID).Error; errFind != nil {
		return fmt.Errorf("auth: lookup admin: %w", errFind)
	}
	if !security.VerifyPassword(admin.Password, current) {
		return ErrInvalidCredentials
	}

	hashed, errHash := security.HashPassword(next)
	if errHash != nil {
		return errHash
	}
	if errUpdate := m.db.Model(&admin).Update("password", hashed).Error; errUpdate != nil {
		return fmt.Errorf("auth: update password: %w", errUpdate)
	}
	if errLogout := m.Logout(adminID, ip); errLogout != nil {
		return errLogout
	}
	m.audits.MustRecord(audit.Entry{
		AdminID: adminID, Action: audit.ActionPasswordChanged,
		Outcome: audit.OutcomeSuccess, TargetType: "admin", IPAddress: ip,
	})
	return nil
}

// BeginTOTPSetup generates a pending secret and provisioning URI. The
// secret only takes effect once ConfirmTOTPSetup sees a valid code.
func (m *Manager) BeginTOTPSetup(adminID uint64) (secret, provisionURI string, err error) {
	var admin models.Admin
	if errFind := m.db.First(&admin, adminID).Error; errFind != nil {
		return "", "", fmt.Errorf("auth: lookup admin: %w", errFind)
	}

	secret, provisionURI, err = security.GenerateTOTPSecret(admin.Username)
	if err != nil {
		return "", "", err
	}
	if errUpdate := m.db.Model(&admin).Update("pending_totp_secret", secret).Error; errUpdate != nil {
		return "", "", fmt.Errorf("auth: store pending secret: %w", errUpdate)
	}
	return secret, provisionURI, nil
}

// ConfirmTOTPSetup commits the pending secret after the admin proves
// possession with a current code.
func (m *Manager) ConfirmTOTPSetup(adminID uint64, code, ip string) error {
	var admin models.Admin
	if errFind := m.db.First(&admin, adminID).Error; errFind != nil {
		return fmt.Errorf("auth: lookup admin: %w", errFind)
	}
	if admin.PendingTOTPSecret == "" {
		return ErrTOTPNotConfigured
	}
	if !security.ValidateTOTP(admin.PendingTOTPSecret, code) {
		return ErrInvalidCredentials
	}

	errUpdate := m.db.Model(&admin).Updates(map[string]any{
		"totp_secret":         admin.PendingTOTPSecret,
		"pending_totp_secret": "",
		"totp_configured":     true,
	}).Error
	if errUpdate != nil {
		return fmt.Errorf("auth: commit totp secret: %w", errUpdate)
	}
	m.audits.MustRecord(audit.Entry{
		AdminID: adminID, Action: audit.ActionTOTPConfigured,
		Outcome: audit.OutcomeSuccess, TargetType: "admin", IPAddress: ip,
	})
	return nil
}

// DisableTOTP removes the second factor after verifying both the
// password and a current code.
func (m *Manager) DisableTOTP(adminID uint64, password, code, ip string) error {
	var admin models.Admin
	if errFind := m.db.First(&admin, adminID).Error; errFind != nil {
		return fmt.Errorf("auth: lookup admin: %w", errFind)
	}
	if !admin.TOTPConfigured {
		return ErrTOTPNotConfigured
	}
	if !security.VerifyPassword(admin.Password, password) || !security.ValidateTOTP(admin.TOTPSecret, code) {
		return ErrInvalidCredentials
	}

	errUpdate := m.db.Model(&admin).Updates(map[string]any{
		"totp_secret":         "",
		"pending_totp_secret": "",
		"totp_configured":     false,
	}).Error
	if errUpdate != nil {
		return fmt.Errorf("auth: disable totp: %w", errUpdate)
	}
	m.audits.MustRecord(audit.Entry{
		AdminID: adminID, Action: audit.ActionTOTPDisabled,
		Outcome: audit.OutcomeSuccess, TargetType: "admin", IPAddress: ip,
	})
	return nil
}

// openSession creates the server-side session row and mints the token
// pair for a fully authenticated admin.
func (m *Manager) openSession(admin *models.Admin, ip string) (TokenPair, error) {
	now := m.now().UTC()
	sessionID := uuid.NewString()

	refresh, errRefresh := m.jwt.SignRefresh(admin.ID, admin.Username, sessionID)
	if errRefresh != nil {
		return TokenPair{}, errRefresh
	}
	salt := uuid.NewString()
	session := models.AdminSession{
		SessionID:   sessionID,
		AdminID:     admin.ID,
		RefreshHash: security.HashToken(refresh, salt),
		RefreshSalt: salt,
		ExpiresAt:   now.Add(security.RefreshTokenExpiry),
	}
	if errCreate := m.db.Create(&session).Error; errCreate != nil {
		return TokenPair{}, fmt.Errorf("auth: create session: %w", errCreate)
	}

	access, errAccess := m.jwt.SignAccess(admin.ID, admin.Username)
	if errAccess != nil {
		return TokenPair{}, errAccess
	}

	errTouch := m.db.Model(admin).Updates(map[string]any{
		"last_login_at": now,
		"last_login_ip": ip,
	}).Error
	if errTouch != nil {
		log.WithError(errTouch).Warn("failed to record last login")
	}
	m.auditLogin(admin.ID, admin.Username, ip, true)
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *Manager) revokeSession(session *models.AdminSession, ip string) {
	now := m.now().UTC()
	errUpdate := m.db.Model(&models.AdminSession{}).
		Where("id = ? AND revoked_at IS NULL", session.ID).
		Update("revoked_at", now).Error
	if errUpdate != nil {
		log.WithError(errUpdate).Warn("failed to revoke session after token reuse")
	}
	m.audits.MustRecord(audit.Entry{
		AdminID: session.AdminID, Action: audit.ActionRefresh,
		Outcome: audit.OutcomeFailure, TargetType: "admin_session",
		TargetID: session.SessionID, IPAddress: ip,
		Reason: "refresh token reuse detected",
	})
}

func (m *Manager) auditLogin(adminID uint64, username, ip string, success bool) {
	entry := audit.Entry{
		AdminID: adminID, TargetType: "admin", TargetID: username, IPAddress: ip,
	}
	if success {
		entry.Action = audit.ActionLogin
		entry.Outcome = audit.OutcomeSuccess
	} else {
		entry.Action = audit.ActionLoginFailed
		entry.Outcome = audit.OutcomeFailure
	}
	m.audits.MustRecord(entry)
}
