package session

import (
	"errors"
	"fmt"

	"wschat/internal/wire"
)

var (
	ErrClosed          = errors.New("session: closed")
	ErrAlreadyLoggedIn = errors.New("session: login already sent")
	ErrNotLoggedIn     = errors.New("session: not logged in")
	ErrKicked          = errors.New("session: identity logged in elsewhere")
	ErrNoTransport     = errors.New("session: nil transport")
)

// LoginError is reported when the server rejects the login.
type LoginError struct {
	Status uint8
	Reason string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("session: login rejected (status %d): %s", e.Status, e.Reason)
}

// FrameError is reported for an inbound frame that was dropped. Stage is
// "decode", "validate" or "handler".
type FrameError struct {
	Stage  string
	Header *wire.Header // nil when the header itself could not be decoded
	Err    error
}

func (e *FrameError) Error() string {
	if e.Header != nil {
		return fmt.Sprintf("session: dropped frame (%s) at %s: %v", e.Header, e.Stage, e.Err)
	}
	return fmt.Sprintf("session: dropped frame at %s: %v", e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
