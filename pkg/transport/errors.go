package transport

import "errors"

var (
	// ErrSessionClosed is returned when a message is posted to a session
	// whose stream has already ended.
	ErrSessionClosed = errors.New("session closed")
)
