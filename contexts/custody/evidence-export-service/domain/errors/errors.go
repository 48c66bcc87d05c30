package errors

import "errors"

var (
	ErrInvalidExportRequest = errors.New("export request is invalid")
	ErrJobNotFound          = errors.New("export job not found")
)
