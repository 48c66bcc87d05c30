package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// StepUpSession moves strictly unverified -> verified -> consumed.
// Only the SHA-256 of the OTP is ever stored.
type StepUpSession struct {
	StepUpID       string
	FamilyID       string
	UserID         string
	Purpose        string
	Scopes         []string
	CodeHash       string
	ExpiresAt      time.Time
	VerifiedAt     *time.Time
	UsedAt         *time.Time
	FailedAttempts int
	CreatedAt      time.Time
}

func (s StepUpSession) Verified() bool {
	return s.VerifiedAt != nil
}

func (s StepUpSession) Used() bool {
	return s.UsedAt != nil
}

func (s StepUpSession) ExpiredAt(now time.Time) bool {
	return now.UTC().After(s.ExpiresAt)
}

func (s StepUpSession) GrantsScope(scope string) bool {
	for _, granted := range s.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
