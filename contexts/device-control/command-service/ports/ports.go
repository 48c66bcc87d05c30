package ports

import (
	"context"
	"time"

	"warden/contexts/device-control/command-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type CommandFilter struct {
	DeviceID     string
	Statuses     []entities.CommandStatus
	IssuedBefore time.Time
	Limit        int
}

type CommandRepository interface {
	// SaveCommand creates the row; a duplicate (device_id, nonce) pair
	// yields ErrNonceConflict.
	SaveCommand(ctx context.Context, cmd entities.DeviceCommand) error
	UpdateCommand(ctx context.Context, cmd entities.DeviceCommand) error
	GetCommand(ctx context.Context, commandID string) (entities.DeviceCommand, error)
	ListCommands(ctx context.Context, filter CommandFilter) ([]entities.DeviceCommand, error)
}

// DeviceKeyProvider exposes the key registry to the protocol. Signing
// always uses the active key; verification gets active plus pending.
type DeviceKeyProvider interface {
	SigningKey(ctx context.Context, deviceID string) ([]byte, int, error)
	VerificationKeys(ctx context.Context, deviceID string) ([][]byte, error)
}

type CustodyRecorder interface {
	Record(ctx context.Context, familyID string, deviceID string, userID string, actor string, eventKey string, payload any) error
}

// Pusher is the opaque delivery channel. Failures surface only through
// the watchdog timeout, never synchronously to the issuer.
type Pusher interface {
	Push(ctx context.Context, deviceID string, commandID string) error
}

// NonceCache is the device-side replay memory. Remember returns false
// when the nonce was already seen inside its TTL window.
type NonceCache interface {
	Remember(ctx context.Context, deviceID string, nonce string, ttl time.Duration) (bool, error)
}

type Notifier interface {
	NotifyCritical(ctx context.Context, familyID string, deviceID string, commandID string, message string) error
	NotifySecurityAlert(ctx context.Context, familyID string, deviceID string, commandID string, message string) error
}

type CauseAnalysis struct {
	PredictedCause    string
	TamperProbability float64
}

// CauseOracle is the external analysis of a timed-out command. It is
// advisory: its failure never blocks the timeout transition.
type CauseOracle interface {
	Analyze(ctx context.Context, cmd entities.DeviceCommand, history []entities.DeviceCommand) (CauseAnalysis, error)
}
