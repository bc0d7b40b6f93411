package cnst

import "errors"

var (
	// ErrMalformedFrame is returned when an inbound frame is not a valid message
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingType is returned when a frame lacks the type tag
	ErrMissingType = errors.New("message has no type")
	// ErrRequestTimeout is returned when no reply arrived before the deadline.
	// The outcome is unknown: the backend may still have applied the message.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrSessionClosed is returned when an operation is attempted on a closed session
	ErrSessionClosed = errors.New("session closed")
	// ErrNotConnected is returned when the transport is required but not open
	ErrNotConnected = errors.New("not connected")
)
