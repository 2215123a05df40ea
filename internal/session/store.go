// Package session manages opaque bearer tokens for group members.
//
// Tokens are shown to the player exactly once at issue time. The store
// persists only a salted SHA-256 hash, and the plaintext embeds the
// user's public ID so verification is a single indexed lookup rather
// than a table scan.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalidToken covers malformed, unknown, revoked, and expired
// session tokens. Callers must not distinguish between these cases.
var ErrInvalidToken = errors.New("session: invalid token")

// ErrSuspended indicates the token is valid but the account is suspended.
var ErrSuspended = errors.New("session: account suspended")

// Store issues and verifies member session tokens.
type Store struct {
	db     *gorm.DB
	expiry time.Duration
	now    func() time.Time
}

// NewStore builds a token store with the configured sliding expiry.
func NewStore(conn *gorm.DB, expiry time.Duration) *Store {
	return &Store{db: conn, expiry: expiry, now: time.Now}
}

// Issue mints a fresh session token for the user and persists its hash,
// replacing any previous token. The returned plaintext is never stored.
func (s *Store) Issue(user *models.User) (string, error) {
	plaintext, hash, salt, err := security.GenerateToken(user.UserID)
	if err != nil {
		return "", err
	}

	expiresAt := s.now().UTC().Add(s.expiry)
	errUpdate := s.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"session_token_hash":       hash,
			"session_token_salt":       salt,
			"session_token_expires_at": expiresAt,
		}).Error
	if errUpdate != nil {
		return "", fmt.Errorf("session: persist token: %w", errUpdate)
	}

	user.SessionTokenHash = hash
	user.SessionTokenSalt = salt
	user.SessionTokenExpiresAt = &expiresAt
	return plaintext, nil
}

// Verify resolves a token plaintext to its user. An expired token is
// indistinguishable from an unknown one. On success the expiry window
// is extended asynchronously; a failed extension never fails the
// request.
func (s *Store) Verify(plaintext string) (*models.User, error) {
	subject, errSubject := security.TokenSubject(plaintext)
	if errSubject != nil {
		return nil, ErrInvalidToken
	}

	var user models.User
	errFind := s.db.Where("user_id = ?", subject).First(&user).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session: lookup user: %w", errFind)
		}
		return nil, ErrInvalidToken
	}

	if !security.VerifyToken(plaintext, user.SessionTokenHash, user.SessionTokenSalt) {
		return nil, ErrInvalidToken
	}
	now := s.now().UTC()
	if user.SessionTokenExpiresAt == nil || !user.SessionTokenExpiresAt.After(now) {
		return nil, ErrInvalidToken
	}
	if user.Suspended {
		return nil, ErrSuspended
	}

	s.extendAsync(user.ID, now.Add(s.expiry))
	return &user, nil
}

// Revoke invalidates the user's current token immediately.
func (s *Store) Revoke(userID uint64) error {
	errUpdate := s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"session_token_hash":       "",
			"session_token_salt":       "",
			"session_token_expires_at": nil,
		}).Error
	if errUpdate != nil {
		return fmt.Errorf("session: revoke token: %w", errUpdate)
	}
	return nil
}

// Recover reissues a token for a locked-out member. The old token stops
// working the moment the new hash lands.
func (s *Store) Recover(user *models.User) (string, error) {
	return s.Issue(user)
}

// extendAsync pushes the expiry window forward without blocking the
// request. Losing this write only shortens the window to a previous
// still-valid value.
func (s *Store) extendAsync(userID uint64, newExpiry time.Time) {
	go func() {
		errUpdate := s.db.Model(&models.User{}).
			Where("id = ?", userID).
			Update("session_token_expires_at", newExpiry).Error
		if errUpdate != nil {
			log.WithError(errUpdate).Warn("failed to extend session expiry")
		}
	}()
}

// MaskToken renders a token safe for logs, keeping only a short prefix.
func MaskToken(plaintext string) string {
	trimmed := strings.TrimSpace(plaintext)
	if len(trimmed) <= 8 {
		return "****"
	}
	return trimmed[:8] + "****"
}
