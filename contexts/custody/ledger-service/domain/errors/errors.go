package errors

import "errors"

var (
	ErrInvalidEvent    = errors.New("custody event input is invalid")
	ErrChainConflict   = errors.New("custody chain position already taken")
	ErrChainContention = errors.New("custody chain append lost too many races")
	ErrChainBroken     = errors.New("custody chain integrity check failed")
	ErrNotFound        = errors.New("custody event not found")
)
