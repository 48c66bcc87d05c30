package errors

import "errors"

var (
	ErrInvalidKey        = errors.New("device key material is invalid")
	ErrDeviceNotFound    = errors.New("device key not found")
	ErrDeviceExists      = errors.New("device is already paired")
	ErrRotationPending   = errors.New("key rotation is already pending")
	ErrNoRotationPending = errors.New("no key rotation is pending")
)
