package security

import (
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpIssuer is the issuer label shown in authenticator apps.
const totpIssuer = "DontAskUs Admin"

// GenerateTOTPSecret creates a new TOTP secret for an admin account and
// returns the base32 secret plus the otpauth provisioning URI.
func GenerateTOTPSecret(username string) (secret, provisionURI string, err error) {
	key, errGen := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: username,
	})
	if errGen != nil {
		return "", "", fmt.Errorf("security: generate totp secret: %w", errGen)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP checks a 6-digit code against the secret, allowing one
// 30-second step of clock skew in either direction.
func ValidateTOTP(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, timeNow().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
