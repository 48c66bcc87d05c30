package errors

import "errors"

var (
	ErrInvalidZone   = errors.New("zone definition is invalid")
	ErrInvalidSample = errors.New("location sample is invalid")
	ErrZoneNotFound  = errors.New("zone not found")
)
