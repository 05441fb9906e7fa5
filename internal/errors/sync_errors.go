package errors

import "errors"

var (
	ErrValidation     = errors.New("command preconditions not met")
	ErrRequestFailed  = errors.New("request failed")
	ErrStaleState     = errors.New("token already transitioned")
	ErrDoctorNotFound = errors.New("doctor queue not found")
	ErrTokenNotFound  = errors.New("token not found")
	ErrNoSelection    = errors.New("no department/doctor selected")
)
