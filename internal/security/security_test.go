package security

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hashed, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hashed == "correct horse battery staple" {
		t.Fatalf("expected hash to differ from plaintext")
	}
	if !VerifyPassword(hashed, "correct horse battery staple") {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword(hashed, "wrong password") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestGenerateToken_EmbedsSubject(t *testing.T) {
	plaintext, hash, salt, err := GenerateToken("user-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	subject, errSubject := TokenSubject(plaintext)
	if errSubject != nil {
		t.Fatalf("expected subject, got error %v", errSubject)
	}
	if subject != "user-abc" {
		t.Fatalf("expected subject=user-abc, got %q", subject)
	}
	if strings.Contains(hash, plaintext) {
		t.Fatalf("expected stored hash not to contain plaintext")
	}
	if !VerifyToken(plaintext, hash, salt) {
		t.Fatalf("expected token to verify against its hash")
	}
	if VerifyToken(plaintext+"x", hash, salt) {
		t.Fatalf("expected tampered token to fail")
	}
	if VerifyToken(plaintext, hash, "other-salt") {
		t.Fatalf("expected wrong salt to fail")
	}
}

func TestGenerateToken_UniquePerCall(t *testing.T) {
	first, _, _, err := GenerateToken("user-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _, _, err := GenerateToken("user-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens per call")
	}
}

func TestTokenSubject_Malformed(t *testing.T) {
	if _, err := TokenSubject("no-separator"); err == nil {
		t.Fatalf("expected error for token without separator")
	}
	if _, err := TokenSubject(".secret-only"); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestJWTManager_AccessRoundTrip(t *testing.T) {
	mgr, err := NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	signed, errSign := mgr.SignAccess(42, "root")
	if errSign != nil {
		t.Fatalf("expected no error, got %v", errSign)
	}

	claims, errParse := mgr.Parse(signed, TokenTypeAccess)
	if errParse != nil {
		t.Fatalf("expected no error, got %v", errParse)
	}
	if claims.AdminID != 42 || claims.Username != "root" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTManager_RejectsWrongType(t *testing.T) {
	mgr, err := NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	temp, errSign := mgr.SignTemp(42, "root")
	if errSign != nil {
		t.Fatalf("expected no error, got %v", errSign)
	}
	if _, errParse := mgr.Parse(temp, TokenTypeAccess); errParse == nil {
		t.Fatalf("expected temp token to be rejected as access")
	}
}

func TestJWTManager_TempTokenCarriesJTI(t *testing.T) {
	mgr, err := NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	temp, errSign := mgr.SignTemp(42, "root")
	if errSign != nil {
		t.Fatalf("expected no error, got %v", errSign)
	}
	claims, errParse := mgr.Parse(temp, TokenTypeTemp)
	if errParse != nil {
		t.Fatalf("expected no error, got %v", errParse)
	}
	if claims.ID == "" {
		t.Fatalf("expected temp token to carry a jti")
	}
}

func TestJWTManager_RefreshCarriesSessionID(t *testing.T) {
	mgr, err := NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	signed, errSign := mgr.SignRefresh(7, "root", "session-123")
	if errSign != nil {
		t.Fatalf("expected no error, got %v", errSign)
	}
	claims, errParse := mgr.Parse(signed, TokenTypeRefresh)
	if errParse != nil {
		t.Fatalf("expected no error, got %v", errParse)
	}
	if claims.SessionID != "session-123" {
		t.Fatalf("expected session_id=session-123, got %q", claims.SessionID)
	}
}

func TestValidateTOTP_AcceptsCurrentCode(t *testing.T) {
	secret, uri, err := GenerateTOTPSecret("root")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("expected otpauth uri, got %q", uri)
	}

	code, errCode := totp.GenerateCode(secret, time.Now().UTC())
	if errCode != nil {
		t.Fatalf("expected no error, got %v", errCode)
	}
	if !ValidateTOTP(secret, code) {
		t.Fatalf("expected current code to validate")
	}
	if ValidateTOTP(secret, "000000") && code != "000000" {
		t.Fatalf("expected bogus code to fail")
	}
}
