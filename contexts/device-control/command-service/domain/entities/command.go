package entities

import (
	"encoding/json"
	"time"
)

type CommandStatus string

const (
	StatusQueued    CommandStatus = "QUEUED"
	StatusSent      CommandStatus = "SENT"
	StatusDelivered CommandStatus = "DELIVERED"
	StatusAcked     CommandStatus = "ACKED"
	StatusTimedOut  CommandStatus = "TIMED_OUT"
	StatusFailed    CommandStatus = "FAILED"
)

// Terminal reports whether the status ends the command lifecycle.
// ACKED is terminal success; TIMED_OUT and FAILED are terminal failures.
func (s CommandStatus) Terminal() bool {
	switch s {
	case StatusAcked, StatusTimedOut, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo encodes the lifecycle state machine. Retry resets to
// QUEUED; FAILED and TIMED_OUT may be entered from any live state.
func (s CommandStatus) CanTransitionTo(next CommandStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusQueued:
		return true
	case StatusSent:
		return s == StatusQueued
	case StatusDelivered:
		return s == StatusQueued || s == StatusSent
	case StatusAcked:
		return s == StatusSent || s == StatusDelivered
	case StatusTimedOut, StatusFailed:
		return true
	default:
		return false
	}
}

type DeviceCommand struct {
	CommandID     string
	FamilyID      string
	DeviceID      string
	IncidentID    string
	CommandType   string
	PayloadJSON   json.RawMessage
	Nonce         string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Status        CommandStatus
	SignatureHMAC string
	KeyVersion    int
	RetryCount    int
	UpdatedAt     time.Time
}

// ValidAt reports whether the command sits inside its validity window.
func (c DeviceCommand) ValidAt(now time.Time) bool {
	now = now.UTC()
	return !now.Before(c.IssuedAt) && !now.After(c.ExpiresAt)
}
