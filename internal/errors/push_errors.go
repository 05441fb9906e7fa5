package errors

import "errors"

var (
	ErrTransport            = errors.New("push transport error")
	ErrMalformedPayload     = errors.New("malformed push payload")
	ErrMaxReconnectExceeded = errors.New("push reconnect attempts exhausted")
	ErrNoPushConnection     = errors.New("no push connection for the current selection")
	ErrIncompletePushPair   = errors.New("push pair requires both department and doctor")
)
