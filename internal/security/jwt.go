package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claims carried by admin JWTs.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeTemp    = "temp"
)

// Lifetimes for the admin token family. Access expiry is configurable;
// these are the defaults and the fixed temp/refresh windows.
const (
	RefreshTokenExpiry = 7 * 24 * time.Hour
	TempTokenExpiry    = 5 * time.Minute
)

// ErrInvalidToken indicates a JWT that failed signature, expiry, or
// type validation.
var ErrInvalidToken = errors.New("security: invalid token")

// AdminClaims are the claims carried by admin access, refresh, and
// temporary (pre-2FA) tokens.
type AdminClaims struct {
	AdminID   uint64 `json:"admin_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	SessionID string `json:"session_id,omitempty"` // refresh tokens only
	jwt.RegisteredClaims
}

// JWTManager signs and parses admin JWTs with a shared HS256 secret.
type JWTManager struct {
	secret       []byte
	accessExpiry time.Duration
}

// NewJWTManager builds a manager from the configured secret and access
// token lifetime.
func NewJWTManager(secret string, accessExpiry time.Duration) (*JWTManager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("security: empty jwt secret")
	}
	if accessExpiry <= 0 {
		return nil, errors.New("security: non-positive access expiry")
	}
	return &JWTManager{secret: []byte(secret), accessExpiry: accessExpiry}, nil
}

// SignAccess mints an access token for a fully authenticated admin.
func (m *JWTManager) SignAccess(adminID uint64, username string) (string, error) {
	return m.sign(adminID, username, TokenTypeAccess, "", m.accessExpiry)
}

// SignRefresh mints a refresh token bound to a server-side session row.
func (m *JWTManager) SignRefresh(adminID uint64, username, sessionID string) (string, error) {
	return m.sign(adminID, username, TokenTypeRefresh, sessionID, RefreshTokenExpiry)
}

// SignTemp mints the short-lived token handed out between password and
// TOTP verification. Its jti lets the caller mark it consumed after one
// successful use.
func (m *JWTManager) SignTemp(adminID uint64, username string) (string, error) {
	return m.sign(adminID, username, TokenTypeTemp, "", TempTokenExpiry)
}

func (m *JWTManager) sign(adminID uint64, username, tokenType, sessionID string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AdminClaims{
		AdminID:   adminID,
		Username:  username,
		TokenType: tokenType,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Parse validates a JWT and requires it to carry the expected token type.
func (m *JWTManager) Parse(tokenString, expectedType string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
