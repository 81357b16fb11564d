package mirrorerrors

import "errors"

// Common errors
var (
	ErrClosed           = errors.New("closed")
	ErrPublishExhausted = errors.New("publish retries exhausted")
	ErrNotConnected     = errors.New("not connected")
)
