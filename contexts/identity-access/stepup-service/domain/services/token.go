package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	domainerrors "warden/contexts/identity-access/stepup-service/domain/errors"
)

// TokenClaims is the capability embedded in a step-up token. The token
// authorizes exactly one privileged action within its scopes.
type TokenClaims struct {
	FamilyID  string    `json:"family_id"`
	UserID    string    `json:"user_id"`
	StepUpID  string    `json:"stepup_id"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignToken renders base64url(claims) + "." + base64url(hmac-sha256).
func SignToken(claims TokenClaims, secret []byte) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// ParseToken verifies the signature and decodes the claims. Expiry is
// the caller's check; a bad signature never yields claims.
func ParseToken(token string, secret []byte) (TokenClaims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 {
		return TokenClaims{}, domainerrors.ErrTokenInvalid
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return TokenClaims{}, domainerrors.ErrTokenInvalid
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return TokenClaims{}, domainerrors.ErrTokenInvalid
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return TokenClaims{}, domainerrors.ErrTokenInvalid
	}

	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return TokenClaims{}, domainerrors.ErrTokenInvalid
	}
	return claims, nil
}
