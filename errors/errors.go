package errors

import "fmt"

var (
	ErrUnauthenticated     = fmt.Errorf("unauthenticated")
	ErrForbiddenDomain     = fmt.Errorf("email outside the allowed domain")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity requirements")
	ErrUserAlreadyExists   = fmt.Errorf("user already exists")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
	ErrDuplicateConnection = fmt.Errorf("connection already registered")
	ErrProtocolViolation   = fmt.Errorf("malformed inbound payload")
	ErrPersistence         = fmt.Errorf("persistence failure")
	ErrChannelClosed       = fmt.Errorf("channel closed")
	ErrEmptyDenylist       = fmt.Errorf("no denylist entries have been found")
)
