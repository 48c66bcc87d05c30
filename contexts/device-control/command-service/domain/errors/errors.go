package errors

import "errors"

var (
	ErrInvalidCommand        = errors.New("command input is invalid")
	ErrCommandNotFound       = errors.New("command not found")
	ErrNonceConflict         = errors.New("nonce already used for this device")
	ErrIllegalTransition     = errors.New("command status transition is not allowed")
	ErrSignatureMismatch     = errors.New("command signature does not verify")
	ErrCommandExpired        = errors.New("command is outside its validity window")
	ErrNonceReplayed         = errors.New("command nonce was already seen")
	ErrDependencyUnavailable = errors.New("command dependency is unavailable")
)
