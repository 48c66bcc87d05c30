package entities

import (
	"encoding/base64"
	"time"

	domainerrors "warden/contexts/device-control/key-registry-service/domain/errors"
)

// minKeyBytes rejects shared secrets too short to carry HMAC-SHA256
// security; 16 bytes is the floor the pairing flow guarantees.
const minKeyBytes = 16

// DeviceKey holds the active shared secret for a device plus an
// optional pending rotation key. Both verify during the rotation
// window so in-flight commands signed with the old key still clear.
type DeviceKey struct {
	DeviceID         string
	FamilyID         string
	SharedKeyB64     string
	KeyVersion       int
	NextSharedKeyB64 string
	NextKeyVersion   int
	UpdatedAt        time.Time
}

func (k DeviceKey) RotationPending() bool {
	return k.NextSharedKeyB64 != ""
}

func (k DeviceKey) ActiveKeyBytes() ([]byte, error) {
	return DecodeKey(k.SharedKeyB64)
}

func (k DeviceKey) PendingKeyBytes() ([]byte, error) {
	if !k.RotationPending() {
		return nil, domainerrors.ErrNoRotationPending
	}
	return DecodeKey(k.NextSharedKeyB64)
}

func DecodeKey(keyB64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil || len(raw) < minKeyBytes {
		return nil, domainerrors.ErrInvalidKey
	}
	return raw, nil
}
