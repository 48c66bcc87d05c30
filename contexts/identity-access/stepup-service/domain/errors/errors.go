package errors

import "errors"

var (
	ErrInvalidRequest     = errors.New("step-up request is invalid")
	ErrSessionNotFound    = errors.New("step-up session not found")
	ErrSessionExpired     = errors.New("step-up session has expired")
	ErrCodeMismatch       = errors.New("step-up code does not match")
	ErrSessionLocked      = errors.New("step-up session is locked after repeated failures")
	ErrSessionNotVerified = errors.New("step-up session is not verified")
	ErrSessionVerified    = errors.New("step-up session was already verified")
	ErrSessionUsed        = errors.New("step-up session was already consumed")
	ErrTokenInvalid       = errors.New("step-up token signature is invalid")
	ErrTokenExpired       = errors.New("step-up token has expired")
	ErrScopeNotGranted    = errors.New("step-up token does not grant the required scope")
)
