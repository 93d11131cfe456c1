package chat

import "errors"

var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrUnauthenticated = errors.New("session is not authenticated")
	ErrInvalidText     = errors.New("invalid message text")
	ErrPersistence     = errors.New("message store unavailable")
	ErrDelivery        = errors.New("delivery failed")
	ErrSessionClosed   = errors.New("session closed")
	ErrBadRequest      = errors.New("malformed event")
)
