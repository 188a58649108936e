package models

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "WebPing"

// NewTOTPKey generates a fresh TOTP secret for the account.
func NewTOTPKey(username string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: username,
	})
}

// TOTPQRCode renders the key's otpauth URL as a PNG data URI.
func TOTPQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ValidTOTP reports whether code is valid for secret at time t, allowing one
// period of clock skew either way.
func ValidTOTP(secret, code string, t time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// CheckSecondFactor passes accounts without 2FA and otherwise requires a
// valid code.
func (u *User) CheckSecondFactor(code string) bool {
	if !u.TOTPEnabled {
		return true
	}
	return ValidTOTP(u.TOTPSecret, code, time.Now())
}
